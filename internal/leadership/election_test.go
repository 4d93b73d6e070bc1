package leadership

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewElectionRejectsRenewalLongerThanLease(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LeaseDuration = time.Second
	cfg.RenewalInterval = 2 * time.Second

	_, err := NewElection(cfg, zerolog.Nop())
	if err == nil || !strings.Contains(err.Error(), "shorter than lease") {
		t.Fatalf("NewElection = %v", err)
	}
}

func TestNewElectionFailsWithoutRedis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	if _, err := NewElection(cfg, zerolog.Nop()); err == nil {
		t.Fatal("election created against unreachable Redis")
	}
}

func TestSetLeaderKeepsNewestChange(t *testing.T) {
	e := &Election{logger: zerolog.Nop(), leaderCh: make(chan bool, 1)}

	e.setLeader(true)
	e.setLeader(true) // unchanged, no signal
	e.setLeader(false)

	if e.IsLeader() {
		t.Fatal("still leader after losing leadership")
	}
	select {
	case got := <-e.LeaderCh():
		if got {
			t.Fatal("stale leadership status delivered")
		}
	default:
		t.Fatal("no leadership change delivered")
	}
	select {
	case got := <-e.LeaderCh():
		t.Fatalf("unexpected extra status %v", got)
	default:
	}
}

func TestObserveHoldsLeaseThroughTransientErrors(t *testing.T) {
	base := time.Unix(1700000000, 0)
	now := base
	e := &Election{
		logger:   zerolog.Nop(),
		leaderCh: make(chan bool, 1),
		config:   ElectionConfig{LeaseDuration: 6 * time.Second},
		now:      func() time.Time { return now },
	}

	steps := []struct {
		name    string
		at      time.Duration
		reached bool
		held    bool
		want    bool
	}{
		{"acquire", 0, true, true, true},
		{"redis down before deadline", 2 * time.Second, false, false, true},
		{"still down just before deadline", 6*time.Second - time.Millisecond, false, false, true},
		{"down at deadline", 6 * time.Second, false, false, false},
		{"reacquire", 7 * time.Second, true, true, true},
		{"renewed", 9 * time.Second, true, true, true},
		{"down after renewal", 14 * time.Second, false, false, true},
		{"taken by another instance", 15 * time.Second, true, false, false},
	}
	for _, st := range steps {
		now = base.Add(st.at)
		e.observe(st.reached, st.held, now)
		if got := e.IsLeader(); got != st.want {
			t.Fatalf("%s: leader = %v, want %v", st.name, got, st.want)
		}
	}
}
