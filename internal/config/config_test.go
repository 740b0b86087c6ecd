package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"advisorgate/internal/usage"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_LISTEN_ADDR", "")
	t.Setenv("PROVIDER_BASE_URL", "https://example.test/v1/")
	t.Setenv("PROVIDER_TIMEOUT_SECONDS", "15")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, https://b.test,")

	cfg := Load()
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.Provider.BaseURL != "https://example.test/v1" {
		t.Fatalf("BaseURL = %q", cfg.Provider.BaseURL)
	}
	if cfg.Provider.Timeout != 15*time.Second {
		t.Fatalf("Timeout = %s, want 15s", cfg.Provider.Timeout)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.test" {
		t.Fatalf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	if cfg.ResyncSchedule != "@every 30m" {
		t.Fatalf("ResyncSchedule = %q", cfg.ResyncSchedule)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{DatabaseURL: "mysql://nope"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}

	cfg = &Config{
		DatabaseURL: "postgres://u:p@localhost:5432/app",
		Auth:        AuthConfig{JWTSecret: "s"},
		Provider:    ProviderConfig{APIKey: "k"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateDatabase(t *testing.T) {
	for _, dsn := range []string{"", "  ", "mysql://nope", "localhost:5432"} {
		if err := (&Config{DatabaseURL: dsn}).ValidateDatabase(); err == nil {
			t.Fatalf("ValidateDatabase(%q) = nil, want error", dsn)
		}
	}
	for _, dsn := range []string{"postgres://u:p@db/app", "postgresql://db/app"} {
		if err := (&Config{DatabaseURL: dsn}).ValidateDatabase(); err != nil {
			t.Fatalf("ValidateDatabase(%q) = %v", dsn, err)
		}
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	writeFile(t, path, "free:\n  standard: 3\n  deep: 0\n  tools: 5\npremium:\n  standard: 10\n  deep: 4\n  tools: 30\n")

	got, err := LoadLimits(path)
	if err != nil {
		t.Fatalf("LoadLimits: %v", err)
	}
	want := usage.Limits{
		Free:    usage.PlanLimits{Standard: 3, Deep: 0, Tools: 5},
		Premium: usage.PlanLimits{Standard: 10, Deep: 4, Tools: 30},
	}
	if got != want {
		t.Fatalf("LoadLimits = %+v, want %+v", got, want)
	}
}

func TestLoadLimitsRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"unknown field": "free:\n  standard: 2\n  ultra: 9\n",
		"negative":      "free:\n  standard: -1\n  deep: 0\n  tools: 1\npremium:\n  standard: 1\n  deep: 0\n  tools: 1\n",
		"not yaml":      "free: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			writeFile(t, path, body)
			if _, err := LoadLimits(path); err == nil {
				t.Fatalf("LoadLimits should reject %q", body)
			}
		})
	}
}

func TestLimitsWatcherReloadKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	writeFile(t, path, "free:\n  standard: 1\n  deep: 0\n  tools: 1\npremium:\n  standard: 5\n  deep: 1\n  tools: 9\n")

	w, err := NewLimitsWatcher(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLimitsWatcher: %v", err)
	}
	if got := w.Current().Free.Standard; got != 1 {
		t.Fatalf("initial free standard = %d, want 1", got)
	}

	writeFile(t, path, "free: [")
	if err := w.Reload(); err == nil {
		t.Fatalf("Reload should fail on invalid yaml")
	}
	if got := w.Current().Free.Standard; got != 1 {
		t.Fatalf("after bad reload free standard = %d, want 1", got)
	}

	writeFile(t, path, "free:\n  standard: 4\n  deep: 0\n  tools: 1\npremium:\n  standard: 5\n  deep: 1\n  tools: 9\n")
	if err := w.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := w.Current().Free.Standard; got != 4 {
		t.Fatalf("after reload free standard = %d, want 4", got)
	}
}

func TestLimitsWatcherWithoutFileUsesDefaults(t *testing.T) {
	w, err := NewLimitsWatcher("", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLimitsWatcher: %v", err)
	}
	if w.Current() != usage.DefaultLimits() {
		t.Fatalf("Current() = %+v, want defaults", w.Current())
	}
}
