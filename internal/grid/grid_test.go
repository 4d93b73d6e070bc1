package grid

import (
	"testing"

	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/friendsincode/gnb_scheduler/internal/slot"
)

func region(sym, nsym, prb, nprb int) models.Region {
	return models.Region{StartSymbol: sym, NumSymbols: nsym, StartPRB: prb, NumPRBs: nprb}
}

func TestGridCommit(t *testing.T) {
	g := NewGrid(106)
	if !g.Commit(models.Grant{Kind: models.GrantData, RNTI: 1, Region: region(0, 14, 60, 10)}) {
		t.Fatal("first commit should succeed")
	}

	tests := []struct {
		name string
		r    models.Region
		ok   bool
	}{
		{"overlapping", region(5, 2, 65, 2), false},
		{"adjacent frequency", region(0, 14, 70, 10), true},
		{"crosses word boundary", region(0, 2, 50, 10), true},
		{"collides after word boundary", region(1, 1, 55, 10), false},
		{"outside grid", region(0, 1, 100, 10), false},
		{"too many symbols", region(10, 5, 0, 1), false},
		{"empty", region(0, 0, 0, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := g.UsedUnits()
			got := g.Commit(models.Grant{Kind: models.GrantData, Region: tt.r})
			if got != tt.ok {
				t.Fatalf("Commit(%s) = %v, want %v", tt.r, got, tt.ok)
			}
			if !got && g.UsedUnits() != before {
				t.Fatal("failed commit mutated the grid")
			}
		})
	}

	grants := g.Grants()
	for i := range grants {
		for j := i + 1; j < len(grants); j++ {
			if grants[i].Region.Overlaps(grants[j].Region) {
				t.Errorf("grants %d and %d overlap: %s / %s", i, j, grants[i].Region, grants[j].Region)
			}
		}
	}
}

func TestGridCollidesAndReset(t *testing.T) {
	g := NewGrid(52)
	g.Commit(models.Grant{Kind: models.GrantRAR, RNTI: 0x4601, Region: region(2, 12, 0, 4)})

	if !g.Collides(region(3, 1, 1, 1)) {
		t.Fatal("unit inside the RAR region reported free")
	}
	if g.Collides(region(0, 1, 1, 1)) {
		t.Error("symbol 0 should be free")
	}
	if n := g.UsedUnits(); n != 48 {
		t.Errorf("UsedUnits = %d, want 48", n)
	}

	g.Reset()
	if g.UsedUnits() != 0 || len(g.Grants()) != 0 {
		t.Fatal("Reset left committed units")
	}
}

func TestGridFindFree(t *testing.T) {
	g := NewGrid(20)
	g.Commit(models.Grant{Region: region(0, 14, 0, 3)})
	g.Commit(models.Grant{Region: region(4, 2, 5, 2)})

	r, ok := g.FindFree(2, 12, 4)
	if !ok {
		t.Fatal("expected a free region")
	}
	if r.StartPRB != 7 {
		t.Errorf("FindFree start PRB = %d, want 7", r.StartPRB)
	}

	r, ok = g.FindFree(0, 2, 4)
	if !ok || r.StartPRB != 3 {
		t.Errorf("FindFree over symbols 0-1 = %s, %v; want start PRB 3", r, ok)
	}

	if _, ok := g.FindFree(0, 14, 18); ok {
		t.Error("expected no room for 18 PRBs")
	}
	if r, ok := g.FindFree(0, 14, 13); !ok || r.StartPRB != 7 {
		t.Errorf("FindFree over all symbols = %s, %v; want start PRB 7", r, ok)
	}
}

func TestPoolKeepsLookaheadGrants(t *testing.T) {
	p := NewPool(4, 52)
	a := NewAllocator(p)
	s100 := slot.NewPoint(0, 100)

	p.Advance(s100)
	if !a.Allocate(s100.Add(3), models.Grant{Kind: models.GrantMsg3, Direction: models.Uplink, Region: region(0, 14, 0, 3)}) {
		t.Fatal("look-ahead allocation failed")
	}

	p.Advance(s100.Add(1))
	p.Advance(s100.Add(3))
	if got := len(a.Grants(s100.Add(3), models.Uplink)); got != 1 {
		t.Fatalf("pre-computed grant lost after advance, have %d grants", got)
	}

	// Slot 106 enters the window fresh.
	if got := len(a.Grants(s100.Add(6), models.Uplink)); got != 0 {
		t.Fatalf("new slot should be empty, has %d grants", got)
	}
}

func TestPoolSkipAheadResetsEverything(t *testing.T) {
	p := NewPool(4, 52)
	a := NewAllocator(p)
	start := slot.NewPoint(0, 0)
	p.Advance(start)
	a.Allocate(start.Add(2), models.Grant{Region: region(0, 1, 0, 1)})

	p.Advance(start.Add(50))
	for k := 0; k < 4; k++ {
		if n := len(a.Grants(start.Add(50+k), models.Downlink)); n != 0 {
			t.Errorf("slot +%d has %d stale grants", 50+k, n)
		}
	}
}

func TestPoolAcrossHyperFrameWrap(t *testing.T) {
	// 10240 % 3 == 1, so indexing by wrapped count alone would collide at the wrap.
	p := NewPool(3, 24)
	a := NewAllocator(p)
	sl := slot.NewPoint(0, slot.Modulus(0)-2)

	for i := 0; i < 6; i++ {
		p.Advance(sl)
		if !a.Allocate(sl.Add(2), models.Grant{Region: region(0, 1, i, 1)}) {
			t.Fatalf("allocation at %s failed", sl.Add(2))
		}
		sl = sl.Add(1)
	}
}

func TestPoolOutOfWindowPanics(t *testing.T) {
	p := NewPool(4, 52)
	s := slot.NewPoint(0, 10)
	p.Advance(s)

	tests := []struct {
		name string
		sl   slot.Point
	}{
		{"past", s.Add(-1)},
		{"beyond depth", s.Add(4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()
			p.Grid(tt.sl, models.Downlink)
		})
	}
}

func TestPoolAdvanceBackwardsPanics(t *testing.T) {
	p := NewPool(4, 52)
	p.Advance(slot.NewPoint(0, 10))
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	p.Advance(slot.NewPoint(0, 9))
}

func TestAllocatorConflicts(t *testing.T) {
	p := NewPool(2, 10)
	a := NewAllocator(p)
	s := slot.NewPoint(0, 1)
	p.Advance(s)

	g := models.Grant{Region: region(0, 14, 0, 10)}
	a.Allocate(s, g)
	if n := a.UsedUnits(s, models.Downlink); n != 140 {
		t.Fatalf("UsedUnits = %d, want 140", n)
	}
	if a.Allocate(s, g) {
		t.Fatal("second Allocate of the same region succeeded")
	}
	if n := a.Conflicts(); n != 1 {
		t.Errorf("Conflicts() = %d, want 1", n)
	}
	if n := a.Conflicts(); n != 0 {
		t.Errorf("Conflicts() after read = %d, want 0", n)
	}
}
