package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadDefaultsDevProfile(t *testing.T) {
	cfg, err := Load("tabletalk-api", mapLookup(nil))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q, want %q", cfg.HTTP.Address, ":8080")
	}
	if cfg.ObjectStore.Backend != BackendMemory {
		t.Fatalf("ObjectStore.Backend = %q, want %q", cfg.ObjectStore.Backend, BackendMemory)
	}
	if cfg.Upload.MaxRows != 500 || cfg.Upload.MaxColumns != 20 {
		t.Fatalf("Upload limits = %d/%d, want 500/20", cfg.Upload.MaxRows, cfg.Upload.MaxColumns)
	}
	if cfg.Upload.MaxBytes != 5<<20 {
		t.Fatalf("Upload.MaxBytes = %d, want %d", cfg.Upload.MaxBytes, int64(5<<20))
	}
	if cfg.Executor.Timeout != 10*time.Second {
		t.Fatalf("Executor.Timeout = %v, want %v", cfg.Executor.Timeout, 10*time.Second)
	}
	if cfg.Executor.MaxConcurrent != 4 {
		t.Fatalf("Executor.MaxConcurrent = %d, want 4", cfg.Executor.MaxConcurrent)
	}
	if cfg.Model.Temperature != 0 {
		t.Fatalf("Model.Temperature = %v, want 0", cfg.Model.Temperature)
	}
	if cfg.Session.TTL != 2*time.Hour {
		t.Fatalf("Session.TTL = %v, want %v", cfg.Session.TTL, 2*time.Hour)
	}
	if cfg.Janitor.SweepInterval != time.Minute || cfg.Janitor.OrphanAge != 30*time.Minute {
		t.Fatalf("Janitor = %+v", cfg.Janitor)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required = true, want false in dev")
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"TABLETALK_HTTP_ADDR":               ":9090",
		"TABLETALK_UPLOAD_MAX_ROWS":         "250",
		"TABLETALK_UPLOAD_MAX_BYTES":        "1048576",
		"TABLETALK_MODEL_NAME":              "gpt-4o-mini",
		"TABLETALK_MODEL_TEMPERATURE":       "0.3",
		"TABLETALK_MODEL_TIMEOUT":           "5s",
		"TABLETALK_EXECUTOR_ROW_LIMIT":      "100",
		"TABLETALK_EXECUTOR_MAX_CONCURRENT": "2",
		"TABLETALK_SESSION_TTL":             "30m",
		"TABLETALK_JANITOR_SWEEP_INTERVAL":  "15s",
		"TABLETALK_LOG_JSON":                "false",
		"TABLETALK_LOG_LEVEL":               "error",
	})

	cfg, err := Load("tabletalk-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":9090" {
		t.Fatalf("HTTP.Address = %q, want %q", cfg.HTTP.Address, ":9090")
	}
	if cfg.Upload.MaxRows != 250 {
		t.Fatalf("Upload.MaxRows = %d, want 250", cfg.Upload.MaxRows)
	}
	if cfg.Upload.MaxBytes != 1<<20 {
		t.Fatalf("Upload.MaxBytes = %d, want %d", cfg.Upload.MaxBytes, int64(1<<20))
	}
	if cfg.Model.Name != "gpt-4o-mini" {
		t.Fatalf("Model.Name = %q, want %q", cfg.Model.Name, "gpt-4o-mini")
	}
	if cfg.Model.Temperature != 0.3 {
		t.Fatalf("Model.Temperature = %v, want 0.3", cfg.Model.Temperature)
	}
	if cfg.Model.Timeout != 5*time.Second {
		t.Fatalf("Model.Timeout = %v, want %v", cfg.Model.Timeout, 5*time.Second)
	}
	if cfg.Executor.RowLimit != 100 {
		t.Fatalf("Executor.RowLimit = %d, want 100", cfg.Executor.RowLimit)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Fatalf("Session.TTL = %v, want %v", cfg.Session.TTL, 30*time.Minute)
	}
	if cfg.Janitor.SweepInterval != 15*time.Second {
		t.Fatalf("Janitor.SweepInterval = %v, want %v", cfg.Janitor.SweepInterval, 15*time.Second)
	}
	if cfg.Observability.LogJSON {
		t.Fatal("Observability.LogJSON = true, want false")
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("Observability.LogLevel = %v, want %v", cfg.Observability.LogLevel, slog.LevelError)
	}
}

func TestLoadTestProfile(t *testing.T) {
	cfg, err := Load("tabletalk-api", mapLookup(map[string]string{
		"TABLETALK_PROFILE": "test",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileTest {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileTest)
	}
	if cfg.HTTP.Address != ":18080" {
		t.Fatalf("HTTP.Address = %q, want %q", cfg.HTTP.Address, ":18080")
	}
	if cfg.Observability.LogLevel != slog.LevelWarn {
		t.Fatalf("Observability.LogLevel = %v, want %v", cfg.Observability.LogLevel, slog.LevelWarn)
	}
}

func TestLoadProdProfile(t *testing.T) {
	cfg, err := Load("tabletalk-api", mapLookup(map[string]string{
		"TABLETALK_PROFILE": "prod",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required = false, want true in prod")
	}
	if cfg.ObjectStore.Backend != BackendS3 {
		t.Fatalf("ObjectStore.Backend = %q, want %q", cfg.ObjectStore.Backend, BackendS3)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL = false, want true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket = true, want false in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("Observability.LogLevel = %v, want %v", cfg.Observability.LogLevel, slog.LevelInfo)
	}
}

func TestLoadRejectsInvalidProfile(t *testing.T) {
	_, err := Load("tabletalk-api", mapLookup(map[string]string{
		"TABLETALK_PROFILE": "staging",
	}))
	if err == nil {
		t.Fatal("Load() error = nil, want invalid profile error")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"bad duration", map[string]string{"TABLETALK_EXECUTOR_TIMEOUT": "soon"}},
		{"bad int", map[string]string{"TABLETALK_UPLOAD_MAX_ROWS": "many"}},
		{"bad bool", map[string]string{"TABLETALK_LOG_JSON": "yep"}},
		{"bad float", map[string]string{"TABLETALK_MODEL_TEMPERATURE": "warm"}},
		{"bad level", map[string]string{"TABLETALK_LOG_LEVEL": "loud"}},
		{"bad backend", map[string]string{"TABLETALK_OBJECTSTORE_BACKEND": "tape"}},
		{"zero ttl", map[string]string{"TABLETALK_SESSION_TTL": "0s"}},
		{"zero concurrency", map[string]string{"TABLETALK_EXECUTOR_MAX_CONCURRENT": "0"}},
		{"zero sweep interval", map[string]string{"TABLETALK_JANITOR_SWEEP_INTERVAL": "0s"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load("tabletalk-api", mapLookup(tc.env)); err == nil {
				t.Fatalf("Load() error = nil, want error for %s", tc.name)
			}
		})
	}
}

func TestLoadRequiresServiceName(t *testing.T) {
	_, err := Load("", mapLookup(map[string]string{"TABLETALK_SERVICE_NAME": "  "}))
	if err == nil || !strings.Contains(err.Error(), "service name") {
		t.Fatalf("Load() error = %v, want service name error", err)
	}
}
