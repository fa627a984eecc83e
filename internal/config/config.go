package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	BackendMemory = "memory"
	BackendS3     = "s3"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	ObjectStore   ObjectStoreConfig
	Upload        UploadConfig
	Prompt        PromptConfig
	Model         ModelConfig
	Executor      ExecutorConfig
	Session       SessionConfig
	Janitor       JanitorConfig
	UI            UIConfig
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

type ObjectStoreConfig struct {
	Backend          string
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type UploadConfig struct {
	MaxRows    int
	MaxColumns int
	MaxBytes   int64
}

type PromptConfig struct {
	SampleValues   int
	MaxQuestionLen int
}

type ModelConfig struct {
	BaseURL     string
	APIKey      string
	Name        string
	Temperature float64
	Timeout     time.Duration
}

type ExecutorConfig struct {
	Timeout       time.Duration
	RowLimit      int
	MemoryLimitMB int
	MaxConcurrent int
}

type SessionConfig struct {
	TTL         time.Duration
	MaxSessions int
}

type JanitorConfig struct {
	SweepInterval time.Duration
	ScanInterval  time.Duration
	OrphanAge     time.Duration
}

type UIConfig struct {
	PreviewRows int
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("TABLETALK_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid TABLETALK_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "TABLETALK_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLETALK_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLETALK_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLETALK_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLETALK_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLETALK_OBJECTSTORE_BACKEND", &cfg.ObjectStore.Backend); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLETALK_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLETALK_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLETALK_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLETALK_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLETALK_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLETALK_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLETALK_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLETALK_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLETALK_UPLOAD_MAX_ROWS", &cfg.Upload.MaxRows); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLETALK_UPLOAD_MAX_COLUMNS", &cfg.Upload.MaxColumns); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "TABLETALK_UPLOAD_MAX_BYTES", &cfg.Upload.MaxBytes); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLETALK_PROMPT_SAMPLE_VALUES", &cfg.Prompt.SampleValues); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLETALK_PROMPT_MAX_QUESTION_LEN", &cfg.Prompt.MaxQuestionLen); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLETALK_MODEL_BASE_URL", &cfg.Model.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLETALK_MODEL_API_KEY", &cfg.Model.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLETALK_MODEL_NAME", &cfg.Model.Name); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "TABLETALK_MODEL_TEMPERATURE", &cfg.Model.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLETALK_MODEL_TIMEOUT", &cfg.Model.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLETALK_EXECUTOR_TIMEOUT", &cfg.Executor.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLETALK_EXECUTOR_ROW_LIMIT", &cfg.Executor.RowLimit); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLETALK_EXECUTOR_MEMORY_LIMIT_MB", &cfg.Executor.MemoryLimitMB); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLETALK_EXECUTOR_MAX_CONCURRENT", &cfg.Executor.MaxConcurrent); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLETALK_SESSION_TTL", &cfg.Session.TTL); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLETALK_SESSION_MAX_SESSIONS", &cfg.Session.MaxSessions); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLETALK_JANITOR_SWEEP_INTERVAL", &cfg.Janitor.SweepInterval); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLETALK_JANITOR_SCAN_INTERVAL", &cfg.Janitor.ScanInterval); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLETALK_JANITOR_ORPHAN_AGE", &cfg.Janitor.OrphanAge); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLETALK_UI_PREVIEW_ROWS", &cfg.UI.PreviewRows); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLETALK_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "TABLETALK_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLETALK_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLETALK_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	switch cfg.ObjectStore.Backend {
	case BackendMemory, BackendS3:
	default:
		return Config{}, fmt.Errorf("invalid TABLETALK_OBJECTSTORE_BACKEND: %q", cfg.ObjectStore.Backend)
	}
	if cfg.Upload.MaxRows <= 0 || cfg.Upload.MaxColumns <= 0 {
		return Config{}, fmt.Errorf("upload limits must be positive")
	}
	if cfg.Executor.Timeout <= 0 {
		return Config{}, fmt.Errorf("executor timeout must be positive")
	}
	if cfg.Executor.MaxConcurrent <= 0 {
		return Config{}, fmt.Errorf("executor max concurrent must be positive")
	}
	if cfg.Session.TTL <= 0 {
		return Config{}, fmt.Errorf("session ttl must be positive")
	}
	if cfg.Janitor.SweepInterval <= 0 || cfg.Janitor.ScanInterval <= 0 {
		return Config{}, fmt.Errorf("janitor intervals must be positive")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "tabletalk-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		ObjectStore: ObjectStoreConfig{
			Backend:          BackendMemory,
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "tabletalk",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Upload: UploadConfig{
			MaxRows:    500,
			MaxColumns: 20,
			MaxBytes:   5 << 20,
		},
		Prompt: PromptConfig{
			SampleValues:   2,
			MaxQuestionLen: 1000,
		},
		Model: ModelConfig{
			BaseURL:     "https://api.openai.com",
			Name:        "gpt-5",
			Temperature: 0,
			Timeout:     20 * time.Second,
		},
		Executor: ExecutorConfig{
			Timeout:       10 * time.Second,
			RowLimit:      500,
			MemoryLimitMB: 256,
			MaxConcurrent: 4,
		},
		Session: SessionConfig{
			TTL:         2 * time.Hour,
			MaxSessions: 256,
		},
		Janitor: JanitorConfig{
			SweepInterval: time.Minute,
			ScanInterval:  10 * time.Minute,
			OrphanAge:     30 * time.Minute,
		},
		UI: UIConfig{
			PreviewRows: 10,
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
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.Backend = BackendS3
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
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
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
