package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllama_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Stream {
			t.Error("request should not stream")
		}
		if req.Format != "json" {
			t.Errorf("format = %q, want json", req.Format)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q, want test-model", req.Model)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": `{"operations":[]}`,
			"done":     true,
		})
	}))
	defer server.Close()

	adapter := NewOllama(server.URL, "test-model", time.Second)
	resp, err := adapter.Complete(context.Background(), Request{Prompt: "Hi"})

	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp != `{"operations":[]}` {
		t.Errorf("unexpected response: %s", resp)
	}
}

func TestOllama_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	adapter := NewOllama(server.URL, "test", time.Second)
	_, err := adapter.Complete(context.Background(), Request{Prompt: "test"})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if statusErr.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", statusErr.Status)
	}
}

func TestOllama_DefaultValues(t *testing.T) {
	adapter := NewOllama("", "", 0)
	if adapter.baseURL != defaultOllamaURL {
		t.Errorf("baseURL = %q, want %q", adapter.baseURL, defaultOllamaURL)
	}
	if adapter.model != defaultOllamaModel {
		t.Errorf("model = %q, want %q", adapter.model, defaultOllamaModel)
	}
}

func TestGroq_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "clean it" {
			t.Errorf("messages = %+v, want system then user", req.Messages)
		}
		if req.Temperature != 0 {
			t.Errorf("temperature = %v, want 0", req.Temperature)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": `{"operations":[]}`}},
			},
		})
	}))
	defer server.Close()

	adapter, err := NewGroq(server.URL, "secret", "", time.Second)
	if err != nil {
		t.Fatalf("NewGroq failed: %v", err)
	}

	resp, err := adapter.Complete(context.Background(), Request{System: "rules", Prompt: "clean it"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp != `{"operations":[]}` {
		t.Errorf("unexpected response: %s", resp)
	}
}

func TestGroq_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	adapter, _ := NewGroq(server.URL, "secret", "", time.Second)
	_, err := adapter.Complete(context.Background(), Request{Prompt: "x"})

	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("error = %v, want ErrEmptyResponse", err)
	}
}

func TestGroq_RequiresAPIKey(t *testing.T) {
	if _, err := NewGroq("", "", "", 0); err == nil {
		t.Error("NewGroq without api key should fail")
	}
}

func TestGroq_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	adapter, _ := NewGroq(server.URL, "secret", "", 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := adapter.Complete(ctx, Request{Prompt: "x"})
	if err == nil {
		t.Fatal("Complete should fail when the context expires")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Complete took %v, want prompt return on timeout", elapsed)
	}
}
