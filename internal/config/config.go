package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type DatasetSource string

const (
	DatasetSynthetic DatasetSource = "synthetic"
	DatasetPostgres  DatasetSource = "postgres"
)

type QueryEngineKind string

const (
	QueryEngineMock   QueryEngineKind = "mock"
	QueryEngineDuckDB QueryEngineKind = "duckdb"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Dataset       DatasetConfig
	Query         QueryConfig
	AI            AIConfig
	ObjectStore   ObjectStoreConfig
	Snapshot      SnapshotConfig
	CORS          CORSConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatasetConfig struct {
	Source          DatasetSource
	Seed            int64
	Size            int
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type QueryConfig struct {
	Engine         QueryEngineKind
	ExecutionDelay time.Duration
}

type AIConfig struct {
	TranslateEnabled bool
	BaseURL          string
	Path             string
	APIKey           string
	Model            string
	Temperature      float64
	MaxTokens        int
	Timeout          time.Duration
	AllowedOrigins   []string
	RequestsPerSec   float64
	Burst            int
}

type ObjectStoreConfig struct {
	Enabled          bool
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type SnapshotConfig struct {
	Schedule  string
	CreatedBy string
}

type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         int
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

// LoadFromEnv reads an optional .env file from the working directory before
// consulting the process environment. Variables already set in the
// environment win over the file.
func LoadFromEnv(serviceName string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("BYTELLS_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid BYTELLS_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	var datasetSource, queryEngine string
	appliers := []func() error{
		func() error { return applyString(lookup, "BYTELLS_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "BYTELLS_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "BYTELLS_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "BYTELLS_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "BYTELLS_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "BYTELLS_DATASET_SOURCE", &datasetSource) },
		func() error { return applyInt64(lookup, "BYTELLS_DATASET_SEED", &cfg.Dataset.Seed) },
		func() error { return applyInt(lookup, "BYTELLS_DATASET_SIZE", &cfg.Dataset.Size) },
		func() error { return applyString(lookup, "BYTELLS_DATASET_DSN", &cfg.Dataset.DSN) },
		func() error { return applyInt(lookup, "BYTELLS_DATASET_MAX_OPEN_CONNS", &cfg.Dataset.MaxOpenConns) },
		func() error { return applyInt(lookup, "BYTELLS_DATASET_MAX_IDLE_CONNS", &cfg.Dataset.MaxIdleConns) },
		func() error {
			return applyDuration(lookup, "BYTELLS_DATASET_CONN_MAX_IDLE_TIME", &cfg.Dataset.ConnMaxIdleTime)
		},
		func() error {
			return applyDuration(lookup, "BYTELLS_DATASET_CONN_MAX_LIFETIME", &cfg.Dataset.ConnMaxLifetime)
		},
		func() error { return applyString(lookup, "BYTELLS_QUERY_ENGINE", &queryEngine) },
		func() error { return applyDuration(lookup, "BYTELLS_QUERY_EXECUTION_DELAY", &cfg.Query.ExecutionDelay) },
		func() error { return applyBool(lookup, "BYTELLS_AI_TRANSLATE_ENABLED", &cfg.AI.TranslateEnabled) },
		func() error { return applyString(lookup, "BYTELLS_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "BYTELLS_AI_PATH", &cfg.AI.Path) },
		func() error { return applyString(lookup, "BYTELLS_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "BYTELLS_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyFloat(lookup, "BYTELLS_AI_TEMPERATURE", &cfg.AI.Temperature) },
		func() error { return applyInt(lookup, "BYTELLS_AI_MAX_TOKENS", &cfg.AI.MaxTokens) },
		func() error { return applyDuration(lookup, "BYTELLS_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyList(lookup, "BYTELLS_AI_ALLOWED_ORIGINS", &cfg.AI.AllowedOrigins) },
		func() error { return applyFloat(lookup, "BYTELLS_AI_REQUESTS_PER_SEC", &cfg.AI.RequestsPerSec) },
		func() error { return applyInt(lookup, "BYTELLS_AI_BURST", &cfg.AI.Burst) },
		func() error { return applyBool(lookup, "BYTELLS_OBJECTSTORE_ENABLED", &cfg.ObjectStore.Enabled) },
		func() error { return applyString(lookup, "BYTELLS_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "BYTELLS_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "BYTELLS_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error {
			return applyString(lookup, "BYTELLS_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID)
		},
		func() error {
			return applyString(lookup, "BYTELLS_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "BYTELLS_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "BYTELLS_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "BYTELLS_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error { return applyString(lookup, "BYTELLS_SNAPSHOT_SCHEDULE", &cfg.Snapshot.Schedule) },
		func() error { return applyString(lookup, "BYTELLS_SNAPSHOT_CREATED_BY", &cfg.Snapshot.CreatedBy) },
		func() error { return applyList(lookup, "BYTELLS_CORS_ALLOWED_ORIGINS", &cfg.CORS.AllowedOrigins) },
		func() error { return applyInt(lookup, "BYTELLS_CORS_MAX_AGE", &cfg.CORS.MaxAge) },
		func() error {
			return applyFloat(lookup, "BYTELLS_RATE_LIMIT_REQUESTS_PER_SEC", &cfg.RateLimit.RequestsPerSecond)
		},
		func() error { return applyInt(lookup, "BYTELLS_RATE_LIMIT_BURST", &cfg.RateLimit.Burst) },
		func() error { return applyBool(lookup, "BYTELLS_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "BYTELLS_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "BYTELLS_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "BYTELLS_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	if datasetSource != "" {
		cfg.Dataset.Source = DatasetSource(strings.ToLower(datasetSource))
	}
	if queryEngine != "" {
		cfg.Query.Engine = QueryEngineKind(strings.ToLower(queryEngine))
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	switch cfg.Dataset.Source {
	case DatasetSynthetic:
		if cfg.Dataset.Size <= 0 {
			return Config{}, fmt.Errorf("dataset size must be > 0")
		}
	case DatasetPostgres:
		if cfg.Dataset.DSN == "" {
			return Config{}, fmt.Errorf("BYTELLS_DATASET_DSN is required for postgres dataset source")
		}
	default:
		return Config{}, fmt.Errorf("invalid BYTELLS_DATASET_SOURCE: %q", cfg.Dataset.Source)
	}
	switch cfg.Query.Engine {
	case QueryEngineMock:
	case QueryEngineDuckDB:
		if !cfg.ObjectStore.Enabled {
			return Config{}, fmt.Errorf("duckdb query engine requires BYTELLS_OBJECTSTORE_ENABLED=true")
		}
	default:
		return Config{}, fmt.Errorf("invalid BYTELLS_QUERY_ENGINE: %q", cfg.Query.Engine)
	}
	if cfg.Query.ExecutionDelay < 0 {
		return Config{}, fmt.Errorf("BYTELLS_QUERY_EXECUTION_DELAY must be >= 0")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "bytells-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Dataset: DatasetConfig{
			Source:          DatasetSynthetic,
			Seed:            time.Now().UTC().UnixNano(),
			Size:            200,
			DSN:             "",
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Query: QueryConfig{
			Engine:         QueryEngineMock,
			ExecutionDelay: 400 * time.Millisecond,
		},
		AI: AIConfig{
			TranslateEnabled: true,
			BaseURL:          "https://api.groq.com",
			Path:             "/openai/v1/chat/completions",
			Model:            "llama-3.3-70b-versatile",
			Temperature:      0.1,
			MaxTokens:        512,
			Timeout:          15 * time.Second,
			AllowedOrigins:   []string{"https://api.groq.com"},
			RequestsPerSec:   2,
			Burst:            4,
		},
		ObjectStore: ObjectStoreConfig{
			Enabled:          false,
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "bytells",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Snapshot: SnapshotConfig{
			Schedule:  "",
			CreatedBy: "bytells-api",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:*"},
			MaxAge:         300,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Dataset.Seed = 42
		cfg.Query.ExecutionDelay = 0
		cfg.AI.TranslateEnabled = false
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
		cfg.CORS.AllowedOrigins = nil
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	values := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		values = append(values, item)
	}
	*dst = values
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
