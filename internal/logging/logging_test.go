package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestProductionWritesJSON(t *testing.T) {
	var out, extra bytes.Buffer
	logger, err := New(Options{Environment: "production", InstanceID: "gnb-a", Out: &out, Extra: &extra})
	if err != nil {
		t.Fatal(err)
	}

	logger.Debug().Msg("hidden")
	logger.Info().Str("component", "driver").Msg("tick")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &line); err != nil {
		t.Fatalf("output is not a single JSON line: %v (%q)", err, out.String())
	}
	if line["message"] != "tick" || line["component"] != "driver" || line["instance"] != "gnb-a" || line["service"] != "gnbsched" {
		t.Fatalf("line = %v", line)
	}
	if !strings.Contains(extra.String(), `"message":"tick"`) {
		t.Fatalf("extra writer missed the entry: %q", extra.String())
	}
}

func TestLevels(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		visible bool
		wantErr bool
	}{
		{"development logs debug", Options{Environment: "development"}, true, false},
		{"production hides debug", Options{Environment: "production"}, false, false},
		{"override to debug", Options{Environment: "production", Level: "DEBUG"}, true, false},
		{"override to warn", Options{Environment: "development", Level: "warn"}, false, false},
		{"unknown level", Options{Level: "chatty"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			tt.opts.Out = &out
			logger, err := New(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			logger.Debug().Msg("visible")
			if got := strings.Contains(out.String(), "visible"); got != tt.visible {
				t.Fatalf("debug visible = %v, want %v (%q)", got, tt.visible, out.String())
			}
		})
	}
}
