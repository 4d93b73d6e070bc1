package eventbus

import (
	"strings"
	"testing"
	"time"

	"github.com/friendsincode/gnb_scheduler/internal/events"
	"github.com/rs/zerolog"
)

func TestMessageEnvelope(t *testing.T) {
	data, err := marshalMessage(events.EventRAExpired, events.Payload{"cell": 2, "reason": "response_window"}, "node-a")
	if err != nil {
		t.Fatal(err)
	}
	msg, err := unmarshalMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	if msg.EventType != events.EventRAExpired || msg.NodeID != "node-a" {
		t.Fatalf("envelope = %+v", msg)
	}
	if msg.MessageID == "" || msg.Timestamp.IsZero() {
		t.Fatal("message id or timestamp missing")
	}
	// JSON numbers decode as float64.
	if msg.Payload["cell"] != float64(2) || msg.Payload["reason"] != "response_window" {
		t.Fatalf("payload = %v", msg.Payload)
	}

	if _, err := unmarshalMessage([]byte(`{"payload":{}}`)); err == nil {
		t.Fatal("message without event type accepted")
	}
	if _, err := unmarshalMessage([]byte(`not json`)); err == nil {
		t.Fatal("garbage accepted")
	}
}

func TestGenerateNodeIDUnique(t *testing.T) {
	a, b := GenerateNodeID(), GenerateNodeID()
	if a == b {
		t.Fatalf("node ids collide: %s", a)
	}
}

func TestOpenBackends(t *testing.T) {
	bus, err := Open(Config{Backend: BackendMemory}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := bus.(*Memory); !ok {
		t.Fatalf("memory backend = %T", bus)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(Config{Backend: "kafka"}, zerolog.Nop()); err == nil || !strings.Contains(err.Error(), "kafka") {
		t.Fatalf("unknown backend error = %v", err)
	}
}

func TestRedisBusFallsBackToLocalDelivery(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 100 * time.Millisecond
	cfg.CheckInterval = time.Hour

	rb := NewRedisBus(cfg, "node-a", zerolog.Nop())
	defer rb.Close()

	if !rb.Degraded() {
		t.Fatal("bus not degraded with unreachable Redis")
	}

	sub := rb.Subscribe(events.EventCellConfigured)
	rb.Publish(events.EventCellConfigured, events.Payload{"cell": 1})

	select {
	case p := <-sub:
		if p["cell"] != 1 {
			t.Fatalf("payload = %v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("local subscriber not served in fallback mode")
	}
	rb.Unsubscribe(events.EventCellConfigured, sub)
}
