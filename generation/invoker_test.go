package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MasterofGames77/game-ai-assistant/settings"
)

// completionServer mocks an OpenAI-compatible /chat/completions endpoint.
// failures is the number of 500 responses before success.
func completionServer(t *testing.T, failures int, answer string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		n := calls.Add(1)
		if int(n) <= failures {
			http.Error(w, `{"error":{"message":"upstream unavailable"}}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-test",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": answer}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testInvoker(srvURL string) *Invoker {
	inv := NewInvoker("test-key", srvURL+"/v1", "test-model", "You are a test bot.")
	inv.backoff = func(int) time.Duration { return time.Millisecond }
	return inv
}

func TestGenerateSuccess(t *testing.T) {
	srv, calls := completionServer(t, 0, "The best build is sword and board.")
	inv := testInvoker(srv.URL)

	got, err := inv.Generate(context.Background(), "best build?", settings.Defaults("wingman"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "The best build is sword and board." {
		t.Errorf("answer = %q", got)
	}
	if calls.Load() != 1 {
		t.Errorf("backend called %d times, want 1", calls.Load())
	}
}

func TestGenerateRetriesTransient(t *testing.T) {
	srv, calls := completionServer(t, 2, "answer after retries")
	inv := testInvoker(srv.URL)

	got, err := inv.Generate(context.Background(), "q", settings.Defaults("wingman"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "answer after retries" {
		t.Errorf("answer = %q", got)
	}
	if calls.Load() != 3 {
		t.Errorf("backend called %d times, want 3", calls.Load())
	}
}

func TestGenerateExhaustsRetries(t *testing.T) {
	srv, calls := completionServer(t, 10, "never reached")
	inv := testInvoker(srv.URL)

	_, err := inv.Generate(context.Background(), "q", settings.Defaults("wingman"))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls.Load() != 3 {
		t.Errorf("backend called %d times, want 3 (bounded retry)", calls.Load())
	}
}

func TestGeneratePermanentErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"Incorrect API key provided"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()
	inv := testInvoker(srv.URL)

	_, err := inv.Generate(context.Background(), "q", settings.Defaults("wingman"))
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("backend called %d times, want 1 (no retry on permanent error)", calls.Load())
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	inv := NewInvoker("k", "", "m", "Persona text.")
	st := settings.Defaults("wingman")
	st.CustomSystemMessage = "This channel speedruns roguelikes."
	st.MaxMessageLength = 300

	got := inv.BuildSystemPrompt(st)
	if !strings.HasPrefix(got, "Persona text.") {
		t.Errorf("prompt missing persona: %q", got)
	}
	if !strings.Contains(got, "speedruns roguelikes") {
		t.Errorf("prompt missing custom system message: %q", got)
	}
	if !strings.Contains(got, "300 characters") {
		t.Errorf("prompt missing length hint: %q", got)
	}

	st.CustomSystemMessage = ""
	if strings.Contains(inv.BuildSystemPrompt(st), "\n\n\n") {
		t.Error("empty custom message left a gap in the prompt")
	}
}
