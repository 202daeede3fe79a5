package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestFromContext_Default(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Error("expected default logger without a stored one")
	}
}

func TestFromContext_Stored(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil)).With("request_id", "abc")

	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("hello")

	if !bytes.Contains(buf.Bytes(), []byte("request_id=abc")) {
		t.Errorf("expected request id in output, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_FormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", "json")
	l.Info("dropped")
	l.Warn("kept", "geohash", "wydm9q")

	out := buf.String()
	if bytes.Contains(buf.Bytes(), []byte("dropped")) {
		t.Errorf("info line should be filtered at warn, got %q", out)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"geohash":"wydm9q"`)) {
		t.Errorf("expected JSON attribute, got %q", out)
	}

	buf.Reset()
	New(&buf, "info", "text").Info("hello", "count", 3)
	if !bytes.Contains(buf.Bytes(), []byte("count=3")) {
		t.Errorf("expected text output, got %q", buf.String())
	}
}
