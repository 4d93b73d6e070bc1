package ra

import (
	"testing"

	"github.com/friendsincode/gnb_scheduler/internal/grid"
	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/friendsincode/gnb_scheduler/internal/slot"
)

func testConfig() models.RAConfig {
	return models.RAConfig{
		ResponseWindow:             4,
		MaxRARsPerSlot:             4,
		RARPRBs:                    4,
		RARSymbols:                 12,
		Msg3Delay:                  4,
		Msg3PRBs:                   3,
		ContentionResolutionWindow: 8,
		ConResPRBs:                 4,
	}
}

type harness struct {
	pool  *grid.Pool
	alloc *grid.Allocator
	sched *Scheduler
}

func newHarness(cfg models.RAConfig, numPRBs int) *harness {
	pool := grid.NewPool(8, numPRBs)
	return &harness{
		pool:  pool,
		alloc: grid.NewAllocator(pool),
		sched: NewScheduler(cfg, NewRNTIAllocator()),
	}
}

func (h *harness) step(sl slot.Point) Report {
	h.pool.Advance(sl)
	return h.sched.Run(h.alloc, sl)
}

func indication(sl slot.Point, preambles ...uint8) models.RachIndication {
	ind := models.RachIndication{Slot: sl}
	for _, p := range preambles {
		ind.Preambles = append(ind.Preambles, models.Preamble{Index: p, TimingAdvance: 12})
	}
	return ind
}

func grantsOf(grants []models.Grant, kind models.GrantKind) []models.Grant {
	var out []models.Grant
	for _, g := range grants {
		if g.Kind == kind {
			out = append(out, g)
		}
	}
	return out
}

func TestResponseWithinWindow(t *testing.T) {
	h := newHarness(testConfig(), 52)
	s100 := slot.NewPoint(0, 100)

	h.pool.Advance(s100)
	if rej := h.sched.HandleIndication(indication(s100, 7), s100); len(rej) != 0 {
		t.Fatalf("unexpected rejections: %+v", rej)
	}

	if r := h.sched.Run(h.alloc, s100); r.RARs != 0 {
		t.Fatal("RAR must not be sent in the detection slot")
	}

	r := h.step(s100.Add(1))
	if r.RARs != 1 {
		t.Fatalf("RARs at 101 = %d, want 1", r.RARs)
	}

	rars := grantsOf(h.alloc.Grants(s100.Add(1), models.Downlink), models.GrantRAR)
	if len(rars) != 1 || rars[0].Preamble != 7 || rars[0].RNTI != FirstTCRNTI {
		t.Fatalf("RAR grants = %+v", rars)
	}
	msg3 := grantsOf(h.alloc.Grants(s100.Add(5), models.Uplink), models.GrantMsg3)
	if len(msg3) != 1 || msg3[0].RNTI != FirstTCRNTI {
		t.Fatalf("Msg3 grants at 105 = %+v", msg3)
	}

	p, ok := h.sched.Lookup(FirstTCRNTI)
	if !ok || p.State != models.RAStateResponseScheduled {
		t.Fatalf("procedure = %+v, %v", p, ok)
	}
}

func TestExpiresWhenCapacityExhausted(t *testing.T) {
	h := newHarness(testConfig(), 24)
	s100 := slot.NewPoint(0, 100)

	h.pool.Advance(s100)
	h.sched.HandleIndication(indication(s100, 3), s100)
	h.sched.Run(h.alloc, s100)

	for k := 1; k <= 4; k++ {
		sl := s100.Add(k)
		h.pool.Advance(sl)
		h.alloc.Allocate(sl, models.Grant{Kind: models.GrantData, RNTI: 1, Region: models.Region{NumSymbols: 14, NumPRBs: 24}})
		r := h.sched.Run(h.alloc, sl)
		if r.RARs != 0 || r.Deferred != 1 {
			t.Fatalf("slot %s: RARs=%d deferred=%d", sl, r.RARs, r.Deferred)
		}
		if p, _ := h.sched.Lookup(FirstTCRNTI); p.State != models.RAStateDetected {
			t.Fatalf("slot %s: state %s, want detected", sl, p.State)
		}
	}

	r := h.step(s100.Add(5))
	if len(r.Outcomes) != 1 || r.Outcomes[0].Kind != OutcomeExpired {
		t.Fatalf("outcomes at 105 = %+v", r.Outcomes)
	}
	if r.Outcomes[0].Procedure.Reason != ReasonResponseWindow {
		t.Errorf("reason = %q", r.Outcomes[0].Procedure.Reason)
	}
	if h.sched.rntis.InUse(FirstTCRNTI) {
		t.Error("expired procedure kept its TC-RNTI")
	}

	// Reported once, then pruned.
	h.step(s100.Add(6))
	if _, ok := h.sched.Lookup(FirstTCRNTI); ok {
		t.Error("expired procedure still tracked")
	}
}

func TestEarliestDetectedServedFirst(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRARsPerSlot = 1
	h := newHarness(cfg, 52)
	s100 := slot.NewPoint(0, 100)
	s102 := s100.Add(2)

	h.pool.Advance(s102)
	// Submission order is the reverse of detection order.
	h.sched.HandleIndication(indication(s100.Add(1), 1), s102)
	h.sched.HandleIndication(indication(s100, 9), s102)

	r := h.sched.Run(h.alloc, s102)
	if r.RARs != 1 || r.Deferred != 1 {
		t.Fatalf("RARs=%d deferred=%d", r.RARs, r.Deferred)
	}
	rars := grantsOf(h.alloc.Grants(s102, models.Downlink), models.GrantRAR)
	if len(rars) != 1 || rars[0].Preamble != 9 {
		t.Fatalf("served %+v, want preamble 9 (detected at 100)", rars)
	}

	h.step(s100.Add(3))
	rars = grantsOf(h.alloc.Grants(s100.Add(3), models.Downlink), models.GrantRAR)
	if len(rars) != 1 || rars[0].Preamble != 1 {
		t.Fatalf("served %+v at 103, want preamble 1", rars)
	}
}

func TestTieBreakOnPreamble(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRARsPerSlot = 1
	h := newHarness(cfg, 52)
	s := slot.NewPoint(0, 40)

	h.pool.Advance(s)
	h.sched.HandleIndication(indication(s, 30, 4, 17), s)
	h.step(s.Add(1))

	rars := grantsOf(h.alloc.Grants(s.Add(1), models.Downlink), models.GrantRAR)
	if len(rars) != 1 || rars[0].Preamble != 4 {
		t.Fatalf("served %+v, want lowest preamble 4", rars)
	}
}

func TestMaxRARsPerSlot(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRARsPerSlot = 2
	h := newHarness(cfg, 52)
	s := slot.NewPoint(0, 0)

	h.pool.Advance(s)
	h.sched.HandleIndication(indication(s, 1, 2, 3), s)
	r := h.step(s.Add(1))
	if r.RARs != 2 || r.Deferred != 1 {
		t.Fatalf("RARs=%d deferred=%d", r.RARs, r.Deferred)
	}
	if r := h.step(s.Add(2)); r.RARs != 1 {
		t.Fatalf("second slot RARs = %d, want 1", r.RARs)
	}
}

func TestContentionResolution(t *testing.T) {
	h := newHarness(testConfig(), 52)
	s := slot.NewPoint(0, 200)

	h.pool.Advance(s)
	h.sched.HandleIndication(indication(s, 5), s)
	h.step(s.Add(1)) // RAR at 201, Msg3 at 205

	if !h.sched.ResolveContention(FirstTCRNTI) {
		t.Fatal("ResolveContention rejected a scheduled procedure")
	}

	h.step(s.Add(5))
	p, _ := h.sched.Lookup(FirstTCRNTI)
	if p.State != models.RAStateAwaitingContentionRes {
		t.Fatalf("state at Msg3 slot = %s", p.State)
	}

	r := h.step(s.Add(6))
	if r.ConRes != 1 || len(r.Outcomes) != 1 || r.Outcomes[0].Kind != OutcomeResolved {
		t.Fatalf("report at 206 = %+v", r)
	}
	if got := grantsOf(h.alloc.Grants(s.Add(6), models.Downlink), models.GrantConRes); len(got) != 1 {
		t.Fatalf("ConRes grants = %+v", got)
	}
	if !h.sched.rntis.InUse(FirstTCRNTI) {
		t.Error("resolved procedure must hand its TC-RNTI to the terminal")
	}
}

func TestContentionResolutionExpires(t *testing.T) {
	h := newHarness(testConfig(), 52)
	s := slot.NewPoint(0, 0)

	h.pool.Advance(s)
	h.sched.HandleIndication(indication(s, 5), s)
	h.step(s.Add(1)) // Msg3 at 5, deadline 13

	var expired bool
	for k := 2; k <= 14; k++ {
		r := h.step(s.Add(k))
		for _, o := range r.Outcomes {
			if o.Kind == OutcomeExpired {
				if k != 14 {
					t.Fatalf("expired at slot %d, want 14", k)
				}
				if o.Procedure.Reason != ReasonConResWindow {
					t.Errorf("reason = %q", o.Procedure.Reason)
				}
				expired = true
			}
		}
	}
	if !expired {
		t.Fatal("procedure never expired")
	}
}

func TestSkippedSlotsExpireContentionResolution(t *testing.T) {
	cfg := testConfig()
	cfg.ContentionResolutionWindow = 2

	tests := []struct {
		name    string
		steps   []int
		wantAt  int
		outcome OutcomeKind
	}{
		// Msg3 at 5, deadline 7.
		{"jump from RAR past deadline", []int{8}, 8, OutcomeExpired},
		{"jump from before Msg3 past deadline", []int{3, 9}, 9, OutcomeExpired},
		{"jump onto the deadline", []int{7}, 7, OutcomeResolved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(cfg, 52)
			s := slot.NewPoint(0, 0)
			h.pool.Advance(s)
			h.sched.HandleIndication(indication(s, 5), s)
			h.step(s.Add(1))
			if !h.sched.ResolveContention(FirstTCRNTI) {
				t.Fatal("ResolveContention rejected a scheduled procedure")
			}

			var last Report
			for _, k := range tt.steps {
				last = h.step(s.Add(k))
			}
			if len(last.Outcomes) != 1 || last.Outcomes[0].Kind != tt.outcome {
				t.Fatalf("outcomes at slot %d = %+v, want %s", tt.wantAt, last.Outcomes, tt.outcome)
			}
			conres := grantsOf(h.alloc.Grants(s.Add(tt.wantAt), models.Downlink), models.GrantConRes)
			if tt.outcome == OutcomeExpired {
				if len(conres) != 0 {
					t.Fatalf("ConRes placed after the window: %+v", conres)
				}
				if last.Outcomes[0].Procedure.Reason != ReasonConResWindow {
					t.Errorf("reason = %q", last.Outcomes[0].Procedure.Reason)
				}
				if h.sched.rntis.InUse(FirstTCRNTI) {
					t.Error("expired procedure kept its TC-RNTI")
				}
			} else if len(conres) != 1 {
				t.Fatalf("ConRes grants = %+v", conres)
			}
		})
	}
}

func TestDuplicatePreambleRejected(t *testing.T) {
	h := newHarness(testConfig(), 52)
	s := slot.NewPoint(0, 0)
	h.pool.Advance(s)

	rej := h.sched.HandleIndication(indication(s, 2, 2), s)
	if len(rej) != 1 || rej[0].Kind != OutcomeRejected {
		t.Fatalf("rejections = %+v", rej)
	}
	if n := h.sched.Outstanding(); n != 1 {
		t.Fatalf("Outstanding = %d, want 1", n)
	}
}

func TestResetReleasesIdentifiers(t *testing.T) {
	h := newHarness(testConfig(), 52)
	s := slot.NewPoint(0, 0)
	h.pool.Advance(s)
	h.sched.HandleIndication(indication(s, 1, 2, 3), s)

	if n := h.sched.Reset(); n != 3 {
		t.Fatalf("Reset = %d, want 3", n)
	}
	if live := h.sched.rntis.Live(); live != 0 {
		t.Fatalf("%d TC-RNTIs still live", live)
	}
	if r := h.step(s.Add(1)); r.RARs != 0 {
		t.Fatal("reset procedures were still served")
	}
}

func TestInvalidTransition(t *testing.T) {
	tests := []struct {
		from, to models.RAState
		ok       bool
	}{
		{models.RAStateDetected, models.RAStateResponseScheduled, true},
		{models.RAStateDetected, models.RAStateResolved, false},
		{models.RAStateResponseScheduled, models.RAStateAwaitingContentionRes, true},
		{models.RAStateAwaitingContentionRes, models.RAStateResolved, true},
		{models.RAStateResolved, models.RAStateExpired, false},
		{models.RAStateExpired, models.RAStateDetected, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			p := &procedure{state: tt.from}
			err := p.transitionTo(tt.to)
			if (err == nil) != tt.ok {
				t.Fatalf("transitionTo = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestRNTIAllocatorWrapsAndSkipsLive(t *testing.T) {
	a := NewRNTIAllocator()
	a.next = LastTCRNTI
	if !a.Reserve(FirstTCRNTI) {
		t.Fatal("Reserve failed")
	}

	r, err := a.Allocate()
	if err != nil || r != LastTCRNTI {
		t.Fatalf("Allocate = %s, %v", r, err)
	}
	r, err = a.Allocate()
	if err != nil || r != FirstTCRNTI+1 {
		t.Fatalf("Allocate after wrap = %s, %v; want %s", r, err, FirstTCRNTI+1)
	}
	if a.Reserve(FirstTCRNTI) {
		t.Error("Reserve of a live RNTI should fail")
	}
}
