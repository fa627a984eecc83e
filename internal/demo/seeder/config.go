package seeder

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	APIBaseURL      string
	APIKey          string
	OutputDir       string
	Rows            int
	Seed            int64
	HTTPTimeout     time.Duration
	WriteFiles      bool
	RunConversation bool
	Questions       []string
}

func DefaultConfig() Config {
	return Config{
		APIBaseURL:      "http://localhost:8080",
		APIKey:          "",
		OutputDir:       "demo-data",
		Rows:            200,
		Seed:            42,
		HTTPTimeout:     60 * time.Second,
		WriteFiles:      true,
		RunConversation: true,
		Questions: []string{
			"What is the average income?",
			"Show number of customers by region.",
			"Give me a bar chart of sales per category.",
			"Compare male vs female loan approval rates.",
		},
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "TABLETALK_DEMO_API_URL", &cfg.APIBaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLETALK_DEMO_API_KEY", &cfg.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLETALK_DEMO_OUTPUT_DIR", &cfg.OutputDir); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLETALK_DEMO_ROWS", &cfg.Rows); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "TABLETALK_DEMO_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLETALK_DEMO_HTTP_TIMEOUT", &cfg.HTTPTimeout); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLETALK_DEMO_WRITE_FILES", &cfg.WriteFiles); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLETALK_DEMO_RUN_CONVERSATION", &cfg.RunConversation); err != nil {
		return Config{}, err
	}

	if cfg.Rows <= 0 {
		return Config{}, fmt.Errorf("TABLETALK_DEMO_ROWS must be > 0")
	}
	if cfg.Rows > 500 {
		return Config{}, fmt.Errorf("TABLETALK_DEMO_ROWS must be <= 500 so the upload stays under the row cap")
	}
	if cfg.HTTPTimeout <= 0 {
		return Config{}, fmt.Errorf("TABLETALK_DEMO_HTTP_TIMEOUT must be > 0")
	}
	if cfg.RunConversation && strings.TrimSpace(cfg.APIBaseURL) == "" {
		return Config{}, fmt.Errorf("TABLETALK_DEMO_API_URL is required")
	}
	if cfg.WriteFiles && strings.TrimSpace(cfg.OutputDir) == "" {
		return Config{}, fmt.Errorf("TABLETALK_DEMO_OUTPUT_DIR is required")
	}

	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.OutputDir = strings.TrimSpace(cfg.OutputDir)
	return cfg, nil
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
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
