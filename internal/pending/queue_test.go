package pending

import (
	"errors"
	"sync"
	"testing"

	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/friendsincode/gnb_scheduler/internal/slot"
)

func ueEvent(cell models.CellIndex, sl slot.Point, rnti models.RNTI) *UEEvent {
	return &UEEvent{UEEvent: models.UEEvent{
		Kind:   models.UEAdd,
		Cell:   cell,
		Slot:   sl,
		Config: models.UEConfig{RNTI: rnti},
	}}
}

func drainRNTIs(q *Queue, cell models.CellIndex, now slot.Point) []models.RNTI {
	var got []models.RNTI
	q.Drain(cell, now, func(ev Event) {
		got = append(got, ev.(*UEEvent).Config.RNTI)
	})
	return got
}

func TestQueueAppliesInSubmissionOrder(t *testing.T) {
	q := New(2, 0)
	now := slot.NewPoint(0, 100)

	for i := 1; i <= 5; i++ {
		if err := q.Push(ueEvent(0, now, models.RNTI(i))); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	got := drainRNTIs(q, 0, now)
	if len(got) != 5 {
		t.Fatalf("applied %d events, want 5", len(got))
	}
	for i, rnti := range got {
		if rnti != models.RNTI(i+1) {
			t.Fatalf("event %d has RNTI %d, want %d", i, rnti, i+1)
		}
	}
	if n := q.Len(0); n != 0 {
		t.Errorf("Len after drain = %d", n)
	}
}

func TestQueueKeepsFutureEventsInOrder(t *testing.T) {
	q := New(1, 0)
	s := slot.NewPoint(0, 100)

	q.Push(ueEvent(0, s.Add(2), 1))
	q.Push(ueEvent(0, s, 2))
	q.Push(ueEvent(0, s.Add(1), 3))
	q.Push(ueEvent(0, s.Add(2), 4))
	q.Push(ueEvent(0, slot.Point{}, 5))

	tests := []struct {
		now  slot.Point
		want []models.RNTI
	}{
		{s, []models.RNTI{2, 5}},
		{s.Add(1), []models.RNTI{3}},
		{s.Add(2), []models.RNTI{1, 4}},
		{s.Add(3), nil},
	}

	for _, tt := range tests {
		got := drainRNTIs(q, 0, tt.now)
		if len(got) != len(tt.want) {
			t.Fatalf("at %s applied %v, want %v", tt.now, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("at %s applied %v, want %v", tt.now, got, tt.want)
			}
		}
	}
}

func TestQueueDeferredBeforeNewer(t *testing.T) {
	q := New(1, 0)
	s := slot.NewPoint(0, 10)

	q.Push(ueEvent(0, s.Add(1), 1))
	drainRNTIs(q, 0, s)
	q.Push(ueEvent(0, s, 2))

	got := drainRNTIs(q, 0, s.Add(1))
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("applied %v, want [1 2]", got)
	}
}

func TestQueuePartitionsAreIndependent(t *testing.T) {
	q := New(3, 0)
	s := slot.NewPoint(1, 0)
	q.Push(ueEvent(0, s, 1))
	q.Push(ueEvent(2, s, 2))

	if got := drainRNTIs(q, 1, s); len(got) != 0 {
		t.Fatalf("cell 1 received %v", got)
	}
	if got := drainRNTIs(q, 2, s); len(got) != 1 || got[0] != 2 {
		t.Fatalf("cell 2 received %v", got)
	}
	if n := q.Len(0); n != 1 {
		t.Fatalf("cell 0 Len = %d, want 1", n)
	}
}

func TestQueueRejectsInvalidCell(t *testing.T) {
	q := New(2, 0)
	err := q.Push(ueEvent(7, slot.NewPoint(0, 0), 1))
	if !errors.Is(err, ErrInvalidCell) {
		t.Fatalf("Push to cell 7 = %v, want ErrInvalidCell", err)
	}
}

func TestQueueLimitsUndrainedEvents(t *testing.T) {
	q := New(2, 3)
	s := slot.NewPoint(0, 0)
	for i := 0; i < 3; i++ {
		if err := q.Push(ueEvent(0, s, models.RNTI(i+1))); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if err := q.Push(ueEvent(0, s, 4)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("push over limit = %v, want ErrQueueFull", err)
	}
	if err := q.Push(ueEvent(1, s, 5)); err != nil {
		t.Fatalf("other cell rejected: %v", err)
	}

	if got := drainRNTIs(q, 0, s); len(got) != 3 || got[2] != 3 {
		t.Fatalf("drained %v, want first three events", got)
	}
	if err := q.Push(ueEvent(0, s, 6)); err != nil {
		t.Fatalf("push after drain: %v", err)
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 500

	q := New(1, 0)
	now := slot.NewPoint(0, 0)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(ueEvent(0, now, models.RNTI(p*perProducer+i)))
			}
		}(p)
	}

	// Drain concurrently with the producers; each producer's events must
	// come out in the order that producer pushed them.
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	total := 0
	check := func(ev Event) {
		rnti := int(ev.(*UEEvent).Config.RNTI)
		p, i := rnti/perProducer, rnti%perProducer
		if i <= last[p] {
			t.Errorf("producer %d: event %d after %d", p, i, last[p])
		}
		last[p] = i
		total++
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		select {
		case <-done:
			q.Drain(0, now, check)
			if total != producers*perProducer {
				t.Fatalf("applied %d events, want %d", total, producers*perProducer)
			}
			return
		default:
			q.Drain(0, now, check)
		}
	}
}
