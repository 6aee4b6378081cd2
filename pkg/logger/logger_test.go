package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Level: zerolog.InfoLevel, Output: &buf})

	ctx := logg.WithRequestID(context.Background(), "req-1")
	ctx = logg.WithOrderID(ctx, "ORD-20260101-00042")
	logg.Info(ctx, "order placed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["request_id"] != "req-1" {
		t.Errorf("missing request_id, got %v", entry["request_id"])
	}
	if entry["order_id"] != "ORD-20260101-00042" {
		t.Errorf("missing order_id, got %v", entry["order_id"])
	}
	if entry["service"] != "test" {
		t.Errorf("missing service field, got %v", entry["service"])
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	t.Parallel()

	if got := ParseLevel(""); got != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %v", got)
	}
	if got := ParseLevel("bogus"); got != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %v", got)
	}
	if got := ParseLevel("debug"); got != zerolog.DebugLevel {
		t.Fatalf("expected debug, got %v", got)
	}
}
