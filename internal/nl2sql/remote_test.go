package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func completionHandler(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		})
	}
}

func newTestTranslator(t *testing.T, serverURL string, mutate func(*RemoteConfig)) *RemoteTranslator {
	t.Helper()
	cfg := RemoteConfig{BaseURL: serverURL, Timeout: 2 * time.Second}
	if mutate != nil {
		mutate(&cfg)
	}
	translator, err := NewRemoteTranslator(cfg)
	if err != nil {
		t.Fatalf("NewRemoteTranslator() error = %v", err)
	}
	return translator
}

func TestRemoteTranslateSendsChatRequest(t *testing.T) {
	var captured chatRequest
	var authHeader, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		authHeader = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		completionHandler(t, "```sql\nSELECT fo.Order_Status, COUNT(*) FROM fact_operations fo GROUP BY 1;\n```")(w, r)
	}))
	defer server.Close()

	translator := newTestTranslator(t, server.URL, func(cfg *RemoteConfig) { cfg.Temperature = 0.1 })
	result, err := translator.Translate(context.Background(), Request{Question: "Count operations by order status", APIKey: " key-1 "})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}

	if path != "/openai/v1/chat/completions" {
		t.Fatalf("path = %q", path)
	}
	if authHeader != "Bearer key-1" {
		t.Fatalf("Authorization = %q", authHeader)
	}
	if captured.Model != "llama-3.3-70b-versatile" || captured.MaxTokens != 512 || captured.Temperature != 0.1 || captured.Stream {
		t.Fatalf("request = %+v", captured)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || !strings.Contains(captured.Messages[0].Content, "dim_vehicles") {
		t.Fatalf("messages = %+v", captured.Messages)
	}
	if captured.Messages[1].Content != `Convert to SQL: "Count operations by order status"` {
		t.Fatalf("user message = %q", captured.Messages[1].Content)
	}
	if result.SQL != "SELECT fo.Order_Status, COUNT(*) FROM fact_operations fo GROUP BY 1 LIMIT 100;" {
		t.Fatalf("SQL = %q", result.SQL)
	}
	if result.Source != SourceRemote || result.Provider != "groq" {
		t.Fatalf("result = %+v", result)
	}
}

func TestRemoteTranslateMapsFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
		status  int
	}{
		{
			name:    "unauthorized",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
			want:    ErrInvalidCredentials,
			status:  401,
		},
		{
			name:    "throttled",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
			want:    ErrRateLimited,
			status:  429,
		},
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) { http.Error(w, "boom", http.StatusBadGateway) },
			want:    ErrAPIError,
			status:  502,
		},
		{
			name:    "no choices",
			handler: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"choices":[]}`)) },
			want:    ErrEmptyCompletion,
			status:  200,
		},
		{
			name:    "blank content",
			handler: completionHandler(t, "   "),
			want:    ErrEmptyCompletion,
		},
		{
			name:    "undecodable body",
			handler: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`not json`)) },
			want:    ErrEmptyCompletion,
			status:  200,
		},
		{
			name:    "non select",
			handler: completionHandler(t, "DELETE FROM fact_operations;"),
			want:    ErrNonSelectBlocked,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := newTestTranslator(t, server.URL, nil).Translate(context.Background(), Request{Question: "q", APIKey: "k"})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Translate() error = %v, want %v", err, tt.want)
			}
			if tt.status != 0 && StatusOf(err) != tt.status {
				t.Fatalf("StatusOf() = %d, want %d", StatusOf(err), tt.status)
			}
		})
	}
}

func TestRemoteTranslateRequiresKey(t *testing.T) {
	translator := newTestTranslator(t, "https://api.groq.com", nil)
	_, err := translator.Translate(context.Background(), Request{Question: "q", APIKey: "  "})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("Translate() error = %v, want ErrMissingCredentials", err)
	}
}

func TestRemoteTranslateNetworkFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	_, err = newTestTranslator(t, "http://"+addr, nil).Translate(context.Background(), Request{Question: "q", APIKey: "k"})
	if !errors.Is(err, ErrNetworkFailure) {
		t.Fatalf("Translate() error = %v, want ErrNetworkFailure", err)
	}
}

func TestRemoteTranslateBlocksDisallowedOrigin(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { called = true }))
	defer server.Close()

	translator := newTestTranslator(t, server.URL, func(cfg *RemoteConfig) {
		cfg.AllowedOrigins = []string{"https://api.groq.com"}
	})
	_, err := translator.Translate(context.Background(), Request{Question: "q", APIKey: "k"})
	if !errors.Is(err, ErrCrossOriginBlocked) {
		t.Fatalf("Translate() error = %v, want ErrCrossOriginBlocked", err)
	}
	if called {
		t.Fatal("request should not reach a disallowed origin")
	}
}

func TestRemoteTranslateBlocksCrossOriginRedirect(t *testing.T) {
	other := httptest.NewServer(completionHandler(t, "SELECT 1"))
	defer other.Close()
	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, other.URL+r.URL.Path, http.StatusTemporaryRedirect)
	}))
	defer redirecting.Close()

	translator := newTestTranslator(t, redirecting.URL, func(cfg *RemoteConfig) {
		cfg.AllowedOrigins = []string{redirecting.URL}
	})
	_, err := translator.Translate(context.Background(), Request{Question: "q", APIKey: "k"})
	if !errors.Is(err, ErrCrossOriginBlocked) {
		t.Fatalf("Translate() error = %v, want ErrCrossOriginBlocked", err)
	}
}

func TestRemoteTranslateClientSideRateLimit(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, "SELECT 1"))
	defer server.Close()

	translator := newTestTranslator(t, server.URL, func(cfg *RemoteConfig) {
		cfg.RequestsPerSec = 0.001
		cfg.Burst = 1
	})
	if _, err := translator.Translate(context.Background(), Request{Question: "q", APIKey: "k"}); err != nil {
		t.Fatalf("first Translate() error = %v", err)
	}
	_, err := translator.Translate(context.Background(), Request{Question: "q", APIKey: "k"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("second Translate() error = %v, want ErrRateLimited", err)
	}
}

func TestRemoteTranslateReturnsContextError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := newTestTranslator(t, server.URL, nil).Translate(ctx, Request{Question: "q", APIKey: "k"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Translate() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestNewRemoteTranslatorDefaults(t *testing.T) {
	translator, err := NewRemoteTranslator(RemoteConfig{})
	if err != nil {
		t.Fatalf("NewRemoteTranslator() error = %v", err)
	}
	if translator.Endpoint() != "https://api.groq.com/openai/v1/chat/completions" {
		t.Fatalf("Endpoint() = %q", translator.Endpoint())
	}
	if translator.Model() != "llama-3.3-70b-versatile" {
		t.Fatalf("Model() = %q", translator.Model())
	}
}
