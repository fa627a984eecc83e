package seeder

import (
	"strings"
	"testing"
	"time"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(nil))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8080" {
		t.Fatalf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.Rows != 200 {
		t.Fatalf("Rows = %d, want 200", cfg.Rows)
	}
	if len(cfg.Questions) != 4 {
		t.Fatalf("Questions = %d, want 4", len(cfg.Questions))
	}
	if !cfg.WriteFiles || !cfg.RunConversation {
		t.Fatalf("WriteFiles = %v RunConversation = %v, want both true", cfg.WriteFiles, cfg.RunConversation)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{
		"TABLETALK_DEMO_API_URL":          "http://api:9090/",
		"TABLETALK_DEMO_API_KEY":          "k1",
		"TABLETALK_DEMO_ROWS":             "50",
		"TABLETALK_DEMO_SEED":             "99",
		"TABLETALK_DEMO_HTTP_TIMEOUT":     "5s",
		"TABLETALK_DEMO_WRITE_FILES":      "false",
		"TABLETALK_DEMO_RUN_CONVERSATION": "true",
	}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.APIBaseURL != "http://api:9090" {
		t.Fatalf("APIBaseURL = %q, want trailing slash trimmed", cfg.APIBaseURL)
	}
	if cfg.APIKey != "k1" || cfg.Rows != 50 || cfg.Seed != 99 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Fatalf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if cfg.WriteFiles {
		t.Fatal("WriteFiles = true, want false")
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "zero rows",
			env:  map[string]string{"TABLETALK_DEMO_ROWS": "0"},
			want: "TABLETALK_DEMO_ROWS",
		},
		{
			name: "rows above upload cap",
			env:  map[string]string{"TABLETALK_DEMO_ROWS": "501"},
			want: "TABLETALK_DEMO_ROWS",
		},
		{
			name: "bad bool",
			env:  map[string]string{"TABLETALK_DEMO_WRITE_FILES": "nope"},
			want: "TABLETALK_DEMO_WRITE_FILES",
		},
		{
			name: "bad timeout",
			env:  map[string]string{"TABLETALK_DEMO_HTTP_TIMEOUT": "fast"},
			want: "TABLETALK_DEMO_HTTP_TIMEOUT",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfigFromEnv(mapLookup(tc.env))
			if err == nil {
				t.Fatal("LoadConfigFromEnv() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want mention of %s", err, tc.want)
			}
		})
	}
}
