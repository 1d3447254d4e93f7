package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("bytells-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Dataset.Source != DatasetSynthetic {
		t.Fatalf("Dataset.Source = %q", cfg.Dataset.Source)
	}
	if cfg.Dataset.Size != 200 {
		t.Fatalf("Dataset.Size = %d", cfg.Dataset.Size)
	}
	if cfg.Query.Engine != QueryEngineMock {
		t.Fatalf("Query.Engine = %q", cfg.Query.Engine)
	}
	if cfg.Query.ExecutionDelay != 400*time.Millisecond {
		t.Fatalf("Query.ExecutionDelay = %s", cfg.Query.ExecutionDelay)
	}
	if cfg.AI.Model != "llama-3.3-70b-versatile" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.MaxTokens != 512 {
		t.Fatalf("AI.MaxTokens = %d", cfg.AI.MaxTokens)
	}
	if cfg.AI.Temperature != 0.1 {
		t.Fatalf("AI.Temperature = %v", cfg.AI.Temperature)
	}
	if cfg.ObjectStore.Enabled {
		t.Fatal("ObjectStore.Enabled should default to false")
	}
}

func TestLoadTestProfileDisablesDelays(t *testing.T) {
	cfg, err := Load("bytells-api", mapLookup(map[string]string{"BYTELLS_PROFILE": "test"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Query.ExecutionDelay != 0 {
		t.Fatalf("Query.ExecutionDelay = %s", cfg.Query.ExecutionDelay)
	}
	if cfg.Dataset.Seed != 42 {
		t.Fatalf("Dataset.Seed = %d", cfg.Dataset.Seed)
	}
	if cfg.AI.TranslateEnabled {
		t.Fatal("AI.TranslateEnabled should be false in test profile")
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("bytells-api", mapLookup(map[string]string{"BYTELLS_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if len(cfg.CORS.AllowedOrigins) != 0 {
		t.Fatalf("CORS.AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	cfg, err := Load("bytells-api", mapLookup(map[string]string{
		"BYTELLS_PROFILE":                "test",
		"BYTELLS_SERVICE_NAME":           "bytells-custom",
		"BYTELLS_HTTP_ADDR":              ":9999",
		"BYTELLS_HTTP_READ_TIMEOUT":      "2s",
		"BYTELLS_DATASET_SEED":           "7",
		"BYTELLS_DATASET_SIZE":           "50",
		"BYTELLS_QUERY_EXECUTION_DELAY":  "250ms",
		"BYTELLS_AI_BASE_URL":            "https://llm.example.com",
		"BYTELLS_AI_PATH":                "/v1/chat/completions",
		"BYTELLS_AI_API_KEY":             "secret-key",
		"BYTELLS_AI_MODEL":               "llama-3.1-8b-instant",
		"BYTELLS_AI_TEMPERATURE":         "0.3",
		"BYTELLS_AI_MAX_TOKENS":          "256",
		"BYTELLS_AI_TIMEOUT":             "21s",
		"BYTELLS_AI_ALLOWED_ORIGINS":     "https://llm.example.com, https://backup.example.com",
		"BYTELLS_AI_REQUESTS_PER_SEC":    "0.5",
		"BYTELLS_AI_BURST":               "1",
		"BYTELLS_OBJECTSTORE_ENABLED":    "true",
		"BYTELLS_OBJECTSTORE_BUCKET":     "fleet",
		"BYTELLS_SNAPSHOT_SCHEDULE":      "@every 1h",
		"BYTELLS_CORS_ALLOWED_ORIGINS":   "https://ops.example.com",
		"BYTELLS_RATE_LIMIT_BURST":       "3",
		"BYTELLS_LOG_LEVEL":              "error",
		"BYTELLS_AUTH_REQUIRED":          "true",
		"BYTELLS_AUTH_STATIC_KEYS":       "k1:ops:analyst",
		"BYTELLS_QUERY_ENGINE":           "DuckDB",
		"BYTELLS_DATASET_MAX_OPEN_CONNS": "4",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "bytells-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" || cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP = %+v", cfg.HTTP)
	}
	if cfg.Dataset.Seed != 7 || cfg.Dataset.Size != 50 || cfg.Dataset.MaxOpenConns != 4 {
		t.Fatalf("Dataset = %+v", cfg.Dataset)
	}
	if cfg.Query.Engine != QueryEngineDuckDB {
		t.Fatalf("Query.Engine = %q", cfg.Query.Engine)
	}
	if cfg.Query.ExecutionDelay != 250*time.Millisecond {
		t.Fatalf("Query = %+v", cfg.Query)
	}
	if cfg.AI.Model != "llama-3.1-8b-instant" || cfg.AI.MaxTokens != 256 || cfg.AI.Temperature != 0.3 {
		t.Fatalf("AI = %+v", cfg.AI)
	}
	if len(cfg.AI.AllowedOrigins) != 2 || cfg.AI.AllowedOrigins[1] != "https://backup.example.com" {
		t.Fatalf("AI.AllowedOrigins = %v", cfg.AI.AllowedOrigins)
	}
	if cfg.AI.RequestsPerSec != 0.5 || cfg.AI.Burst != 1 {
		t.Fatalf("AI rate = %v/%d", cfg.AI.RequestsPerSec, cfg.AI.Burst)
	}
	if cfg.Snapshot.Schedule != "@every 1h" {
		t.Fatalf("Snapshot.Schedule = %q", cfg.Snapshot.Schedule)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required || cfg.Auth.StaticKeys != "k1:ops:analyst" {
		t.Fatalf("Auth = %+v", cfg.Auth)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "profile", env: map[string]string{"BYTELLS_PROFILE": "staging"}, wantErr: "BYTELLS_PROFILE"},
		{name: "duration", env: map[string]string{"BYTELLS_AI_TIMEOUT": "soon"}, wantErr: "BYTELLS_AI_TIMEOUT"},
		{name: "bool", env: map[string]string{"BYTELLS_AUTH_REQUIRED": "maybe"}, wantErr: "BYTELLS_AUTH_REQUIRED"},
		{name: "seed", env: map[string]string{"BYTELLS_DATASET_SEED": "abc"}, wantErr: "BYTELLS_DATASET_SEED"},
		{name: "log level", env: map[string]string{"BYTELLS_LOG_LEVEL": "loud"}, wantErr: "BYTELLS_LOG_LEVEL"},
		{name: "dataset source", env: map[string]string{"BYTELLS_DATASET_SOURCE": "csv"}, wantErr: "BYTELLS_DATASET_SOURCE"},
		{name: "postgres without dsn", env: map[string]string{"BYTELLS_DATASET_SOURCE": "postgres"}, wantErr: "BYTELLS_DATASET_DSN"},
		{name: "engine", env: map[string]string{"BYTELLS_QUERY_ENGINE": "sqlite"}, wantErr: "BYTELLS_QUERY_ENGINE"},
		{name: "duckdb without store", env: map[string]string{"BYTELLS_QUERY_ENGINE": "duckdb"}, wantErr: "OBJECTSTORE"},
		{name: "negative delay", env: map[string]string{"BYTELLS_QUERY_EXECUTION_DELAY": "-1s"}, wantErr: "delays"},
		{name: "empty size", env: map[string]string{"BYTELLS_DATASET_SIZE": "0"}, wantErr: "dataset size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("bytells-api", mapLookup(tt.env))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRequiresLookup(t *testing.T) {
	if _, err := Load("bytells-api", nil); err == nil {
		t.Fatal("expected error for nil lookup")
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
