package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"finpod/internal/services"
)

func TestSynthesizeConcatenatesChunks(t *testing.T) {
	var (
		calls  atomic.Int32
		mu     sync.Mutex
		voices []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req speechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing authorization header")
		}
		mu.Lock()
		voices = append(voices, req.Voice)
		mu.Unlock()
		n := calls.Add(1)
		_, _ = w.Write([]byte{byte('0' + n)})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "tts-1", Voice: "alloy", Format: "mp3"}, WithChunkRunes(30))
	script := "First sentence is here. Second sentence follows.\n\nA closing paragraph ends it."
	var out bytes.Buffer
	n, err := client.Synthesize(context.Background(), script, Voice{}, &out)
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	want := len(SplitText(script, 30))
	if int(calls.Load()) != want || want < 2 {
		t.Fatalf("expected %d chunk requests, got %d", want, calls.Load())
	}
	if n != int64(want) || !strings.HasPrefix(out.String(), "12") {
		t.Fatalf("unexpected audio %q (n=%d)", out.String(), n)
	}
	mu.Lock()
	defer mu.Unlock()
	for _, v := range voices {
		if v != "alloy" {
			t.Fatalf("expected default voice, got %q", v)
		}
	}
}

func TestSynthesizeWritesNothingOnFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) > 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("audio"))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL}, WithChunkRunes(20))
	var out bytes.Buffer
	_, err := client.Synthesize(context.Background(), "One short sentence. Another short sentence.", Voice{Name: "nova"}, &out)
	if !services.IsRetryable(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no audio written, got %d bytes", out.Len())
	}
}

func TestSynthesizeRejectsChunkedContainerFormat(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("RIFF"))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Format: "wav"}, WithChunkRunes(20))
	var out bytes.Buffer
	_, err := client.Synthesize(context.Background(), "One short sentence. Another short sentence.", Voice{}, &out)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if calls.Load() != 0 || out.Len() != 0 {
		t.Fatalf("expected no requests or output, got %d calls and %d bytes", calls.Load(), out.Len())
	}

	if _, err := client.Synthesize(context.Background(), "Short.", Voice{}, &out); err != nil {
		t.Fatalf("single chunk wav should pass: %v", err)
	}
}

func TestSynthesizeClassifiesClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad voice", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL})
	_, err := client.Synthesize(context.Background(), "Hello.", Voice{}, &bytes.Buffer{})
	if services.Classify(err) != services.OutcomePermanent {
		t.Fatalf("expected permanent error, got %v", err)
	}
	var status *services.HTTPStatusError
	if !errors.As(err, &status) || status.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected HTTPStatusError, got %v", err)
	}
}

func TestSynthesizeRejectsEmptyScript(t *testing.T) {
	client := NewClient(Config{APIKey: "key", BaseURL: "http://127.0.0.1:1"})
	_, err := client.Synthesize(context.Background(), "   ", Voice{}, &bytes.Buffer{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSplitTextRespectsLimit(t *testing.T) {
	text := strings.Repeat("Revenue grew in every segment this quarter. ", 200)
	chunks := SplitText(text, MaxInputRunes)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if utf8.RuneCountInString(chunk) > MaxInputRunes {
			t.Fatalf("chunk %d exceeds limit: %d runes", i, utf8.RuneCountInString(chunk))
		}
		if !strings.HasSuffix(chunk, ".") {
			t.Fatalf("chunk %d does not end on a sentence: %q", i, chunk[len(chunk)-20:])
		}
	}
	if got := strings.Join(chunks, " "); got != strings.TrimSpace(text) {
		t.Fatal("chunks do not reassemble to the original text")
	}
}

func TestSplitTextShortInput(t *testing.T) {
	if got := SplitText("  Hello there.  ", 100); len(got) != 1 || got[0] != "Hello there." {
		t.Fatalf("unexpected chunks %q", got)
	}
	if got := SplitText("", 100); got != nil {
		t.Fatalf("expected nil chunks, got %q", got)
	}
}
