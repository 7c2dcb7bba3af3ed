//go:build !integration

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"telegram-channel-autopilot/internal/domain"
)

func completionResponse(content string) string {
	return `{
		"id": "cmpl-1",
		"object": "chat.completion",
		"created": 1,
		"model": "deepseek-chat",
		"choices": [
			{"index": 0, "finish_reason": "stop",
			 "message": {"role": "assistant", "content": ` + mustJSON(content) + `}}
		]
	}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestDeepSeekAdapterGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("missing api key fails without a request", func(t *testing.T) {
		called := false
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer srv.Close()

		a := NewDeepSeekAdapter(srv.URL)
		if _, err := a.Generate(ctx, "p", "", "deepseek-chat"); !errors.Is(err, domain.ErrNoAPIKey) {
			t.Fatalf("err = %v, want ErrNoAPIKey", err)
		}
		if called {
			t.Error("no HTTP request expected without an api key")
		}
	})

	t.Run("success returns the completion content", func(t *testing.T) {
		var gotAuth, gotPath string
		var gotBody map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotPath = r.URL.Path
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(completionResponse("  Tomorrow the grid wakes up.  ")))
		}))
		defer srv.Close()

		a := NewDeepSeekAdapter(srv.URL)
		content, err := a.Generate(ctx, "write a post", "sk-test", "deepseek-chat")
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if content != "Tomorrow the grid wakes up." {
			t.Errorf("content = %q, want trimmed completion", content)
		}
		if gotAuth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", gotAuth)
		}
		if !strings.HasSuffix(gotPath, "/chat/completions") {
			t.Errorf("path = %q", gotPath)
		}
		if gotBody["model"] != "deepseek-chat" {
			t.Errorf("model = %v", gotBody["model"])
		}
		if gotBody["temperature"] != 0.7 {
			t.Errorf("temperature = %v", gotBody["temperature"])
		}
		if gotBody["max_tokens"] != float64(500) {
			t.Errorf("max_tokens = %v", gotBody["max_tokens"])
		}
		msgs, _ := gotBody["messages"].([]any)
		if len(msgs) != 2 {
			t.Fatalf("messages = %v, want system + user", msgs)
		}
		first, _ := msgs[0].(map[string]any)
		if first["role"] != "system" {
			t.Errorf("first message role = %v, want system", first["role"])
		}
	})

	t.Run("api error surfaces as upstream error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": {"message": "Authentication Fails", "type": "authentication_error"}}`))
		}))
		defer srv.Close()

		a := NewDeepSeekAdapter(srv.URL)
		_, err := a.Generate(ctx, "p", "sk-bad", "deepseek-chat")
		var uerr *domain.UpstreamError
		if !errors.As(err, &uerr) {
			t.Fatalf("err = %v (%T), want UpstreamError", err, err)
		}
		if !strings.Contains(uerr.Description, "Authentication Fails") {
			t.Errorf("description = %q", uerr.Description)
		}
	})

	t.Run("empty choices is an upstream error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"cmpl-1","object":"chat.completion","created":1,"model":"deepseek-chat","choices":[]}`))
		}))
		defer srv.Close()

		a := NewDeepSeekAdapter(srv.URL)
		_, err := a.Generate(ctx, "p", "sk-test", "deepseek-chat")
		var uerr *domain.UpstreamError
		if !errors.As(err, &uerr) {
			t.Fatalf("err = %v (%T), want UpstreamError", err, err)
		}
	})

	t.Run("blank completion content is an upstream error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(completionResponse("   ")))
		}))
		defer srv.Close()

		a := NewDeepSeekAdapter(srv.URL)
		_, err := a.Generate(ctx, "p", "sk-test", "deepseek-chat")
		var uerr *domain.UpstreamError
		if !errors.As(err, &uerr) {
			t.Fatalf("err = %v (%T), want UpstreamError", err, err)
		}
	})

	t.Run("unreachable server is a transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // refuse connections

		a := NewDeepSeekAdapter(srv.URL)
		_, err := a.Generate(ctx, "p", "sk-test", "deepseek-chat")
		var terr *domain.TransportError
		if !errors.As(err, &terr) {
			t.Fatalf("err = %v (%T), want TransportError", err, err)
		}
	})
}

func TestDeepSeekAdapterTestConnection(t *testing.T) {
	ctx := context.Background()

	t.Run("a valid key round-trips", func(t *testing.T) {
		var gotBody map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(completionResponse("API Connection Successful")))
		}))
		defer srv.Close()

		a := NewDeepSeekAdapter(srv.URL)
		if err := a.TestConnection(ctx, "sk-test"); err != nil {
			t.Fatalf("TestConnection: %v", err)
		}
		msgs, _ := gotBody["messages"].([]any)
		if len(msgs) == 0 {
			t.Fatal("no messages in the request body")
		}
	})

	t.Run("a rejected key surfaces the provider error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Authentication Fails","type":"authentication_error"}}`))
		}))
		defer srv.Close()

		a := NewDeepSeekAdapter(srv.URL)
		var uerr *domain.UpstreamError
		if err := a.TestConnection(ctx, "sk-bad"); !errors.As(err, &uerr) {
			t.Fatalf("err = %v, want UpstreamError", err)
		}
	})
}
