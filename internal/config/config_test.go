package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvLineChannelAccessToken, "test_token")
	t.Setenv(EnvLineChannelSecret, "test_secret")
	t.Setenv(EnvDataDir, t.TempDir())
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LineChannelToken != "test_token" {
		t.Errorf("Expected token 'test_token', got '%s'", cfg.LineChannelToken)
	}
	if cfg.LineChannelSecret != "test_secret" {
		t.Errorf("Expected secret 'test_secret', got '%s'", cfg.LineChannelSecret)
	}

	// Defaults
	if cfg.Port != "3978" {
		t.Errorf("Expected default port '3978', got '%s'", cfg.Port)
	}
	if cfg.BotName != "Muffin" {
		t.Errorf("Expected default bot name 'Muffin', got '%s'", cfg.BotName)
	}
	if cfg.SessionBackend != SessionBackendSQLite {
		t.Errorf("Expected sqlite backend, got %q", cfg.SessionBackend)
	}
	if cfg.NLUConfidenceThreshold != 0.5 {
		t.Errorf("Expected threshold 0.5, got %v", cfg.NLUConfidenceThreshold)
	}
	if cfg.ClassifierTimeout != ClassifierRequest {
		t.Errorf("Expected classifier timeout %v, got %v", ClassifierRequest, cfg.ClassifierTimeout)
	}
	if cfg.StoreTimeout != StoreRequest {
		t.Errorf("Expected store timeout %v, got %v", StoreRequest, cfg.StoreTimeout)
	}
	if len(cfg.NLUProviders) != len(knownProviders) {
		t.Errorf("Expected all providers by default, got %v", cfg.NLUProviders)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(EnvNLUProviders, " Gemini , local ,")
	t.Setenv(EnvGeminiIntentModels, "gemini-2.5-flash,gemini-2.5-flash-lite")
	t.Setenv(EnvClassifierTimeout, "3s")
	t.Setenv(EnvNLUSpellCorrection, "true")
	t.Setenv(EnvSessionBackend, "MEMORY")
	t.Setenv(EnvWebhookConcurrency, "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if got := strings.Join(cfg.NLUProviders, ","); got != "gemini,local" {
		t.Errorf("NLUProviders = %q, want %q", got, "gemini,local")
	}
	if len(cfg.GeminiIntentModels) != 2 {
		t.Errorf("GeminiIntentModels = %v, want 2 entries", cfg.GeminiIntentModels)
	}
	if cfg.ClassifierTimeout != 3*time.Second {
		t.Errorf("ClassifierTimeout = %v, want 3s", cfg.ClassifierTimeout)
	}
	if !cfg.NLUSpellCorrection {
		t.Error("NLUSpellCorrection should be enabled")
	}
	if cfg.SessionBackend != SessionBackendMemory {
		t.Errorf("SessionBackend = %q, want memory", cfg.SessionBackend)
	}
	if cfg.Bot.WebhookConcurrency != 2 {
		t.Errorf("WebhookConcurrency = %d, want 2", cfg.Bot.WebhookConcurrency)
	}
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		LineEnabled:            true,
		LineChannelToken:       "token",
		LineChannelSecret:      "secret",
		Port:                   "3978",
		MotelTimezone:          "Pacific/Auckland",
		DataDir:                t.TempDir(),
		SessionBackend:         SessionBackendSQLite,
		SessionRetention:       time.Hour,
		StoreTimeout:           time.Second,
		NLUProviders:           []string{ProviderLocal},
		NLUConfidenceThreshold: 0.5,
		ClassifierTimeout:      time.Second,
		LLMRetryMaxAttempts:    1,
		Bot:                    DefaultBotConfig(),
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:   "emulator only without LINE credentials",
			mutate: func(c *Config) { c.LineEnabled, c.EmulatorEnabled, c.LineChannelToken, c.LineChannelSecret = false, true, "", "" },
		},
		{
			name:        "missing LINE token",
			mutate:      func(c *Config) { c.LineChannelToken = "" },
			errContains: EnvLineChannelAccessToken,
		},
		{
			name:        "no transport",
			mutate:      func(c *Config) { c.LineEnabled = false },
			errContains: "at least one transport",
		},
		{
			name:        "unknown backend",
			mutate:      func(c *Config) { c.SessionBackend = "redis" },
			errContains: EnvSessionBackend,
		},
		{
			name:        "unknown provider",
			mutate:      func(c *Config) { c.NLUProviders = []string{"watson"} },
			errContains: "watson",
		},
		{
			name:        "threshold out of range",
			mutate:      func(c *Config) { c.NLUConfidenceThreshold = 1.5 },
			errContains: EnvNLUConfidenceThreshold,
		},
		{
			name:        "relative LUIS URL",
			mutate:      func(c *Config) { c.LUISModelURL = "/luis/v2.0/apps/x" },
			errContains: EnvLUISModelURL,
		},
		{
			name:        "bad timezone",
			mutate:      func(c *Config) { c.MotelTimezone = "Mars/Olympus_Mons" },
			errContains: EnvMotelTimezone,
		},
		{
			name:        "R2 without bucket",
			mutate:      func(c *Config) { c.R2Enabled, c.R2AccountID, c.R2AccessKeyID, c.R2SecretAccessKey = true, "a", "b", "c" },
			errContains: EnvR2BucketName,
		},
		{
			name:        "R2 on memory backend",
			mutate:      func(c *Config) { c.R2Enabled, c.SessionBackend = true, SessionBackendMemory },
			errContains: "requires the sqlite session backend",
		},
		{
			name:        "sentry without DSN",
			mutate:      func(c *Config) { c.SentryEnabled = true },
			errContains: EnvSentryDSN,
		},
		{
			name:        "metrics auth without password",
			mutate:      func(c *Config) { c.MetricsAuthEnabled = true },
			errContains: EnvMetricsPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errContains == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.errContains)
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.errContains)
			}
		})
	}
}

func TestHasLLMProvider(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	if cfg.HasLLMProvider() {
		t.Error("no keys configured, expected false")
	}

	cfg.GroqAPIKey = "key"
	if cfg.HasLLMProvider() {
		t.Error("groq keyed but not selected, expected false")
	}

	cfg.NLUProviders = []string{ProviderGroq, ProviderLocal}
	if !cfg.HasLLMProvider() {
		t.Error("groq keyed and selected, expected true")
	}
}

func TestLocation(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	if got := cfg.Location().String(); got != "Pacific/Auckland" {
		t.Errorf("Location() = %q, want Pacific/Auckland", got)
	}
}
