package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs(t *testing.T) {
	tests := []struct {
		name string
		in   []interface{}
		want []interface{}
	}{
		{"empty", nil, nil},
		{"plain", []interface{}{"route", "oral"}, []interface{}{"route", "oral"}},
		{"token", []interface{}{"apiToken", "abc"}, []interface{}{"apiToken", "[REDACTED]"}},
		{"odd length", []interface{}{"a", 1, "dangling"}, []interface{}{"a", 1, "dangling"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeKVs(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("sanitizeKVs() len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sanitizeKVs()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLogger_WarnRedacts(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.Warn("fetch failed", "authorization", "Bearer xyz", "status", 401)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["authorization"] != "[REDACTED]" {
		t.Errorf("authorization = %v, want [REDACTED]", fields["authorization"])
	}
	if fields["status"] != int64(401) {
		t.Errorf("status = %v, want 401", fields["status"])
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("discarded", "k", "v")
	l.With("run", 1).Debug("also discarded")
	l.Sync()
}
