package sse

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriter_PrepareSetsStreamHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	w.Prepare()

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}
	if !rec.Flushed {
		t.Error("headers not flushed eagerly")
	}
}

func TestWriter_SendWritesDataFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	w, _ := NewWriter(rec)
	w.Prepare()

	if err := w.Send(map[string]any{"type": "transcription", "delta": "hi"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, "data: {") {
		t.Errorf("body = %q, want data: frame", body)
	}
	if !strings.HasSuffix(body, "\n\n") {
		t.Errorf("frame not terminated by blank line: %q", body)
	}
	if !strings.Contains(body, `"delta":"hi"`) {
		t.Errorf("payload missing: %q", body)
	}
}

func TestWriter_CommentFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	w, _ := NewWriter(rec)

	if err := w.Comment("keepalive"); err != nil {
		t.Fatalf("Comment failed: %v", err)
	}
	if got := rec.Body.String(); got != ": keepalive\n\n" {
		t.Errorf("body = %q", got)
	}
}
