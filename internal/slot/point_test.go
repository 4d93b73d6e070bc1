package slot

import "testing"

func TestModulus(t *testing.T) {
	tests := []struct {
		numerology uint8
		want       uint32
	}{
		{0, 10240},
		{1, 20480},
		{2, 40960},
		{3, 81920},
		{4, 163840},
	}

	for _, tt := range tests {
		if got := Modulus(tt.numerology); got != tt.want {
			t.Errorf("Modulus(%d) = %d, want %d", tt.numerology, got, tt.want)
		}
	}
}

func TestPointOrderingAcrossWrap(t *testing.T) {
	last := NewPoint(1, Modulus(1)-1)
	first := last.Add(1)

	if first.Count() != 0 {
		t.Fatalf("Add across wrap: count = %d, want 0", first.Count())
	}
	if !first.After(last) {
		t.Errorf("expected %s to be after %s", first, last)
	}
	if !last.Before(first) {
		t.Errorf("expected %s to be before %s", last, first)
	}
	if d := first.Sub(last); d != 1 {
		t.Errorf("Sub across wrap = %d, want 1", d)
	}
}

func TestPointSub(t *testing.T) {
	base := NewPoint(0, 100)

	tests := []struct {
		name string
		n    int
	}{
		{"zero", 0},
		{"forward", 4},
		{"backward", -4},
		{"far forward", 5000},
		{"far backward", -5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := base.Add(tt.n).Sub(base)
			if got != tt.n {
				t.Errorf("Add(%d).Sub = %d", tt.n, got)
			}
		})
	}
}

func TestFromSFN(t *testing.T) {
	p := FromSFN(1, 512, 7)
	if p.SFN() != 512 || p.SlotIndex() != 7 {
		t.Fatalf("FromSFN round trip = %s", p)
	}
	if p.String() != "512.7" {
		t.Errorf("String() = %q, want 512.7", p.String())
	}
}

func TestZeroPointInvalid(t *testing.T) {
	var p Point
	if p.Valid() {
		t.Error("zero Point should be invalid")
	}
	if p.String() != "invalid" {
		t.Errorf("String() = %q", p.String())
	}
}

func TestNumerologyMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on numerology mismatch")
		}
	}()
	NewPoint(0, 1).Sub(NewPoint(1, 1))
}
