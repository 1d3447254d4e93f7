package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://api.groq.com"
	defaultPath      = "/openai/v1/chat/completions"
	defaultModel     = "llama-3.3-70b-versatile"
	defaultMaxTokens = 512
	providerName     = "groq"
)

type RemoteConfig struct {
	BaseURL     string
	Path        string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	// AllowedOrigins lists the scheme://host[:port] origins the translator
	// may talk to, redirects included. Empty allows any origin.
	AllowedOrigins []string
	// RequestsPerSec and Burst bound outgoing calls. Zero disables the
	// client-side limit.
	RequestsPerSec float64
	Burst          int
	HTTPClient     *http.Client
}

// RemoteTranslator asks an OpenAI-compatible chat completion endpoint for SQL.
type RemoteTranslator struct {
	endpoint    string
	model       string
	temperature float64
	maxTokens   int
	allowed     map[string]struct{}
	limiter     *rate.Limiter
	client      *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type crossOriginError struct {
	origin string
}

func (e *crossOriginError) Error() string {
	return fmt.Sprintf("origin %s is not allowed", e.origin)
}

func NewRemoteTranslator(cfg RemoteConfig) (*RemoteTranslator, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = defaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	endpoint := baseURL + path
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	t := &RemoteTranslator{
		endpoint:    endpoint,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
	if len(cfg.AllowedOrigins) > 0 {
		t.allowed = map[string]struct{}{}
		for _, origin := range cfg.AllowedOrigins {
			if normalized := normalizeOrigin(origin); normalized != "" {
				t.allowed[normalized] = struct{}{}
			}
		}
	}
	if cfg.RequestsPerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst)
	}

	client := &http.Client{Timeout: timeout}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		client = &copied
	}
	client.CheckRedirect = t.checkRedirect
	t.client = client
	return t, nil
}

func (t *RemoteTranslator) Endpoint() string {
	return t.endpoint
}

func (t *RemoteTranslator) Model() string {
	return t.model
}

func (t *RemoteTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		return Result{}, newError(KindMissingCredentials, 0, nil)
	}
	if err := t.checkOrigin(t.endpoint); err != nil {
		return Result{}, newError(KindCrossOriginBlocked, 0, err)
	}
	if t.limiter != nil && !t.limiter.Allow() {
		return Result{}, newError(KindRateLimited, 0, errors.New("client-side request budget exhausted"))
	}

	body, err := json.Marshal(chatRequest{
		Model: t.model,
		Messages: []chatMessage{
			{Role: "system", Content: schemaPrompt},
			{Role: "user", Content: userPrompt(req.Question)},
		},
		Temperature: t.temperature,
		MaxTokens:   t.maxTokens,
		Stream:      false,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		var originErr *crossOriginError
		if errors.As(err, &originErr) {
			return Result{}, newError(KindCrossOriginBlocked, 0, originErr)
		}
		return Result{}, newError(KindNetworkFailure, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, newError(KindNetworkFailure, resp.StatusCode, fmt.Errorf("read chat response body: %w", err))
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return Result{}, newError(KindInvalidCredentials, resp.StatusCode, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{}, newError(KindRateLimited, resp.StatusCode, nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Result{}, newError(KindAPIError, resp.StatusCode, fmt.Errorf("body=%s", truncate(string(rawRespBody), 256)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Result{}, newError(KindEmptyCompletion, resp.StatusCode, fmt.Errorf("decode chat completion response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return Result{}, newError(KindEmptyCompletion, resp.StatusCode, errors.New("no choices"))
	}

	sql, err := Sanitize(parsed.Choices[0].Message.Content)
	if err != nil {
		return Result{}, err
	}
	return Result{
		SQL:      sql,
		Source:   SourceRemote,
		Provider: providerName,
		Model:    t.model,
	}, nil
}

func (t *RemoteTranslator) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	if originOf(req.URL) != originOf(via[0].URL) {
		return &crossOriginError{origin: originOf(req.URL)}
	}
	return nil
}

func (t *RemoteTranslator) checkOrigin(rawURL string) error {
	if len(t.allowed) == 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	origin := originOf(parsed)
	if _, ok := t.allowed[origin]; !ok {
		return &crossOriginError{origin: origin}
	}
	return nil
}

func originOf(u *url.URL) string {
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func normalizeOrigin(value string) string {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return originOf(parsed)
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max] + "..."
}
