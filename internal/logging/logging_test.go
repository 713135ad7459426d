package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// captureLogOutput captures log output for testing by temporarily
// redirecting the logger to write to a buffer
func captureLogOutput(f func()) string {
	var buf bytes.Buffer

	oldLogger := defaultLogger
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	defaultLogger = slog.New(handler)

	f()

	defaultLogger = oldLogger
	return buf.String()
}

func TestInitLoggerTo(t *testing.T) {
	tests := []struct {
		name     string
		level    Level
		format   Format
		logDebug bool
		wantJSON bool
	}{
		{"debug json", LevelDebug, FormatJSON, true, true},
		{"info text", LevelInfo, FormatText, false, false},
		{"invalid level falls back to info", Level(999), FormatJSON, false, true},
	}

	defer InitLogger(LevelWarn, FormatText)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			InitLoggerTo(&buf, tt.level, tt.format)
			Debug("dbg")
			Info("hello", "key", "value")

			out := buf.String()
			if got := strings.Contains(out, "dbg"); got != tt.logDebug {
				t.Errorf("debug logged = %v, want %v: %s", got, tt.logDebug, out)
			}
			if got := strings.HasPrefix(out, "{"); got != tt.wantJSON {
				t.Errorf("json output = %v, want %v: %s", got, tt.wantJSON, out)
			}
			if GetLogger() == nil {
				t.Error("GetLogger() = nil")
			}
		})
	}
}

func TestParseLevelAndFormat(t *testing.T) {
	levels := map[string]Level{"debug": LevelDebug, "INFO": LevelInfo, "": LevelInfo, "warning": LevelWarn, "error": LevelError}
	for in, want := range levels {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud) succeeded")
	}

	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat(" Text "); err != nil || f != FormatText {
		t.Errorf("ParseFormat(Text) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) succeeded")
	}
}

func TestBatchID(t *testing.T) {
	ctx := context.Background()
	if GetBatchID(ctx) != "" {
		t.Error("expected empty batch ID")
	}
	ctx = WithBatchID(ctx, "b-1")
	if GetBatchID(ctx) != "b-1" {
		t.Errorf("GetBatchID() = %q", GetBatchID(ctx))
	}

	output := captureLogOutput(func() {
		InfoContext(ctx, "with batch")
	})
	if !strings.Contains(output, `"batch_id":"b-1"`) {
		t.Errorf("expected batch_id in output: %s", output)
	}
}

func TestDomainHelpers(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
		want []string
	}{
		{
			name: "ScopeEvent",
			fn:   func() { ScopeEvent("end", 2, "vars", 3) },
			want: []string{`"msg":"scope_event"`, `"event":"end"`, `"depth":2`, `"vars":3`},
		},
		{
			name: "StatementRejected",
			fn: func() {
				StatementRejected("th1", "$p", "set.mm:4:1", errors.New("forward reference"))
			},
			want: []string{`"msg":"statement_rejected"`, `"label":"th1"`, `"error":"forward reference"`},
		},
		{
			name: "CheckpointEvent",
			fn: func() {
				CheckpointEvent(WithBatchID(context.Background(), "x"), "rollback", 4)
			},
			want: []string{`"msg":"checkpoint_event"`, `"event":"rollback"`, `"statements":4`, `"batch_id":"x"`},
		},
		{
			name: "LoadSummary",
			fn:   func() { LoadSummary("a.mm", 10, 1, 1500*time.Millisecond) },
			want: []string{`"msg":"load_summary"`, `"statements":10`, `"duration_ms":1500`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureLogOutput(tt.fn)
			for _, w := range tt.want {
				if !strings.Contains(output, w) {
					t.Errorf("output missing %s: %s", w, output)
				}
			}
		})
	}
}

func TestCollector(t *testing.T) {
	c := NewCollector(2)
	c.AddInfo("", "starting")
	c.AddError("a.mm:1:1", "first")
	if c.MaxErrorsReached() {
		t.Error("limit reached after one error")
	}
	c.AddError("a.mm:2:1", "second")
	c.AddError("a.mm:3:1", "third")

	if !c.MaxErrorsReached() {
		t.Error("limit not reached after three errors")
	}
	if c.ErrorCount() != 3 || c.InfoCount() != 1 {
		t.Errorf("counts = %d/%d, want 3/1", c.ErrorCount(), c.InfoCount())
	}
	msgs := c.Messages()
	if len(msgs) != 3 {
		t.Fatalf("kept %d messages, want 3", len(msgs))
	}
	if got := msgs[1].String(); got != "a.mm:1:1: error: first" {
		t.Errorf("message = %q", got)
	}
	if got := msgs[0].String(); got != "info: starting" {
		t.Errorf("message = %q", got)
	}
}

func TestCollectorLimits(t *testing.T) {
	if NewCollector(0).maxErrors != DefaultMaxErrors {
		t.Error("zero limit should use the default")
	}
	unlimited := NewCollector(-1)
	for i := 0; i < 500; i++ {
		unlimited.AddError("", "e")
	}
	if unlimited.MaxErrorsReached() || len(unlimited.Messages()) != 500 {
		t.Error("unlimited collector stopped early")
	}
}
