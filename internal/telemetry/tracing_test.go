package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, sdktrace.AlwaysSample().Description()},
		{2, sdktrace.AlwaysSample().Description()},
		{0, sdktrace.NeverSample().Description()},
		{-1, sdktrace.NeverSample().Description()},
		{0.25, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.25)).Description()},
	}
	for _, tt := range tests {
		if got := samplerFor(tt.rate).Description(); got != tt.want {
			t.Errorf("samplerFor(%v) = %s, want %s", tt.rate, got, tt.want)
		}
	}
}

func TestCellSlotSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx, tick := StartTick(context.Background(), 42, 1)
	_, span := StartCellSlot(ctx, 3, 1, "12.7")
	EndSpan(span, errors.New("sink stalled"))
	EndSpan(tick, nil)

	ended := rec.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(ended))
	}
	cell := ended[0]
	if cell.Name() != "slot.cell" || cell.Parent().SpanID() != ended[1].SpanContext().SpanID() {
		t.Fatalf("cell span = %s, parent %v", cell.Name(), cell.Parent().SpanID())
	}
	if cell.Status().Code != codes.Error {
		t.Fatalf("status = %v", cell.Status())
	}
	attrs := map[string]string{}
	for _, kv := range cell.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["gnb.cell"] != "3" || attrs["gnb.slot"] != "12.7" || attrs["gnb.numerology"] != "1" {
		t.Fatalf("attributes = %v", attrs)
	}
	if ended[1].Status().Code == codes.Error {
		t.Fatal("tick span marked as error")
	}
}
