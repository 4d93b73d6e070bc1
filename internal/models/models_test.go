package models

import (
	"errors"
	"testing"
)

func TestRegionOverlaps(t *testing.T) {
	base := Region{StartSymbol: 2, NumSymbols: 4, StartPRB: 10, NumPRBs: 5}
	tests := []struct {
		name  string
		other Region
		want  bool
	}{
		{"identical", base, true},
		{"touching in frequency", Region{StartSymbol: 2, NumSymbols: 4, StartPRB: 15, NumPRBs: 3}, false},
		{"touching in time", Region{StartSymbol: 6, NumSymbols: 2, StartPRB: 10, NumPRBs: 5}, false},
		{"corner overlap", Region{StartSymbol: 5, NumSymbols: 3, StartPRB: 14, NumPRBs: 4}, true},
		{"empty region", Region{StartSymbol: 2, NumSymbols: 0, StartPRB: 10, NumPRBs: 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Overlaps(tt.other); got != tt.want {
				t.Fatalf("Overlaps = %v, want %v", got, tt.want)
			}
			if got := tt.other.Overlaps(base); got != tt.want {
				t.Fatalf("reverse Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransportBlockBytes(t *testing.T) {
	r := Region{NumSymbols: 12, NumPRBs: 10}
	if got := TransportBlockBytes(r, 0); got != 42 {
		t.Fatalf("MCS 0 = %d, want 42", got)
	}
	if got := TransportBlockBytes(r, 99); got != TransportBlockBytes(r, 28) || got != 999 {
		t.Fatalf("MCS above table = %d, want 999", got)
	}
	if got := TransportBlockBytes(Region{}, 10); got != 0 {
		t.Fatalf("empty region = %d", got)
	}
	prev := 0
	for mcs := uint8(0); mcs <= 28; mcs++ {
		got := TransportBlockBytes(r, mcs)
		if got < prev && mcs != 10 && mcs != 17 {
			t.Fatalf("MCS %d carries less than MCS %d", mcs, mcs-1)
		}
		prev = got
	}
}

func TestCellConfigRequestValidate(t *testing.T) {
	valid := CellConfigRequest{Index: 1, PCI: 7, Numerology: 1, NumPRBs: 52, RA: DefaultRAConfig()}
	tests := []struct {
		name   string
		mutate func(*CellConfigRequest)
		want   error
	}{
		{"valid", func(*CellConfigRequest) {}, nil},
		{"index beyond max", func(r *CellConfigRequest) { r.Index = 4 }, ErrInvalidCellIndex},
		{"numerology", func(r *CellConfigRequest) { r.Numerology = 5 }, ErrInvalidCellConfig},
		{"no PRBs", func(r *CellConfigRequest) { r.NumPRBs = 0 }, ErrInvalidCellConfig},
		{"too many PRBs", func(r *CellConfigRequest) { r.NumPRBs = MaxPRBs + 1 }, ErrInvalidCellConfig},
		{"PCI", func(r *CellConfigRequest) { r.PCI = 1008 }, ErrInvalidCellConfig},
		{"msg3 delay beyond ring", func(r *CellConfigRequest) { r.RA.Msg3Delay = 16 }, ErrInvalidCellConfig},
		{"RAR wider than carrier", func(r *CellConfigRequest) { r.NumPRBs = 3 }, ErrInvalidCellConfig},
		{"RAR symbols", func(r *CellConfigRequest) { r.RA.RARSymbols = SymbolsPerSlot + 1 }, ErrInvalidCellConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate(4, 16)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate = %v, want %v", err, tt.want)
			}
		})
	}
}
