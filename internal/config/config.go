// Package config provides application configuration management.
// It loads settings from a .env file and MUFFIN_* environment variables and
// validates them before the server starts.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone database for scratch images

	"github.com/joho/godotenv"
)

// Session backends.
const (
	SessionBackendSQLite = "sqlite"
	SessionBackendMemory = "memory"
)

// NLU provider names accepted in MUFFIN_NLU_PROVIDERS.
const (
	ProviderGemini   = "gemini"
	ProviderGroq     = "groq"
	ProviderCerebras = "cerebras"
	ProviderLUIS     = "luis"
	ProviderLocal    = "local"
)

var knownProviders = []string{ProviderGemini, ProviderGroq, ProviderCerebras, ProviderLUIS, ProviderLocal}

// Config holds all application configuration
type Config struct {
	// LINE transport
	LineEnabled       bool
	LineChannelToken  string
	LineChannelSecret string

	// Emulator transport (JSON endpoint for local testing)
	EmulatorEnabled bool

	// Server
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
	BotName         string
	BotIconURL      string
	MotelTimezone   string

	// Sessions
	DataDir          string
	SessionBackend   string
	SessionRetention time.Duration
	StoreTimeout     time.Duration

	// NLU
	NLUProviders           []string // Tried in order; unconfigured providers are skipped
	NLUConfidenceThreshold float64
	NLUSpellCorrection     bool
	ClassifierTimeout      time.Duration
	LUISModelURL           string
	GeminiAPIKey           string
	GroqAPIKey             string
	CerebrasAPIKey         string
	GeminiIntentModels     []string // Empty = package defaults
	GroqIntentModels       []string
	CerebrasIntentModels   []string
	LLMRetryMaxAttempts    int
	LLMRetryInitialDelay   time.Duration
	LLMRetryMaxDelay       time.Duration

	// R2 snapshots of the session database
	R2Enabled          bool
	R2AccountID        string
	R2AccessKeyID      string
	R2SecretAccessKey  string
	R2BucketName       string
	R2SnapshotKey      string
	R2LockKey          string
	R2LockTTL          time.Duration
	R2SnapshotInterval time.Duration
	R2ScheduleKey      string

	// Sentry
	SentryEnabled     bool
	SentryDSN         string
	SentryEnvironment string
	SentrySampleRate  float64

	// Better Stack
	BetterStackEnabled  bool
	BetterStackToken    string
	BetterStackEndpoint string

	// Metrics Basic Auth
	MetricsAuthEnabled bool
	MetricsUsername    string
	MetricsPassword    string

	Bot BotConfig
}

// Mode selects which settings Validate requires.
type Mode int

const (
	// ServerMode requires a transport and its credentials.
	ServerMode Mode = iota
	// ToolMode is for offline CLIs that never serve chat traffic.
	ToolMode
)

// Load reads configuration for the server.
func Load() (*Config, error) {
	return LoadForMode(ServerMode)
}

// LoadForMode reads configuration from environment variables.
// It attempts to load a .env file first; a missing file is not an error.
func LoadForMode(mode Mode) (*Config, error) {
	_ = godotenv.Load()

	bot := DefaultBotConfig()
	bot.WebhookTimeout = getDurationEnv(EnvWebhookTimeout, bot.WebhookTimeout)
	bot.WebhookConcurrency = getIntEnv(EnvWebhookConcurrency, bot.WebhookConcurrency)
	bot.MaxInputRunes = getIntEnv(EnvMaxInputRunes, bot.MaxInputRunes)
	bot.UserRateLimitBurst = getFloatEnv(EnvUserRateBurst, bot.UserRateLimitBurst)
	bot.UserRateLimitRefillPerSec = getFloatEnv(EnvUserRateRefill, bot.UserRateLimitRefillPerSec)
	bot.NLUBurstTokens = getFloatEnv(EnvNLURateBurst, bot.NLUBurstTokens)
	bot.NLURefillPerHour = getFloatEnv(EnvNLURateRefill, bot.NLURefillPerHour)
	bot.NLUDailyLimit = getIntEnv(EnvNLURateDaily, bot.NLUDailyLimit)
	bot.GlobalRateLimitRPS = getFloatEnv(EnvGlobalRateRPS, bot.GlobalRateLimitRPS)

	cfg := &Config{
		LineEnabled:       getBoolEnv(EnvLineEnabled, true),
		LineChannelToken:  getEnv(EnvLineChannelAccessToken, ""),
		LineChannelSecret: getEnv(EnvLineChannelSecret, ""),

		EmulatorEnabled: getBoolEnv(EnvEmulatorEnabled, false),

		Port:            getEnv(EnvPort, "3978"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),
		BotName:         getEnv(EnvBotName, "Muffin"),
		BotIconURL:      getEnv(EnvBotIconURL, ""),
		MotelTimezone:   getEnv(EnvMotelTimezone, "Pacific/Auckland"),

		DataDir:          getEnv(EnvDataDir, getDefaultDataDir()),
		SessionBackend:   strings.ToLower(getEnv(EnvSessionBackend, SessionBackendSQLite)),
		SessionRetention: getDurationEnv(EnvSessionRetention, 90*24*time.Hour),
		StoreTimeout:     getDurationEnv(EnvStoreTimeout, StoreRequest),

		NLUProviders:           lowerAll(getListEnv(EnvNLUProviders, knownProviders)),
		NLUConfidenceThreshold: getFloatEnv(EnvNLUConfidenceThreshold, 0.5),
		NLUSpellCorrection:     getBoolEnv(EnvNLUSpellCorrection, false),
		ClassifierTimeout:      getDurationEnv(EnvClassifierTimeout, ClassifierRequest),
		LUISModelURL:           getEnv(EnvLUISModelURL, ""),
		GeminiAPIKey:           getEnv(EnvGeminiAPIKey, ""),
		GroqAPIKey:             getEnv(EnvGroqAPIKey, ""),
		CerebrasAPIKey:         getEnv(EnvCerebrasAPIKey, ""),
		GeminiIntentModels:     getListEnv(EnvGeminiIntentModels, nil),
		GroqIntentModels:       getListEnv(EnvGroqIntentModels, nil),
		CerebrasIntentModels:   getListEnv(EnvCerebrasIntentModels, nil),
		LLMRetryMaxAttempts:    getIntEnv(EnvLLMRetryMaxAttempts, 2),
		LLMRetryInitialDelay:   getDurationEnv(EnvLLMRetryInitialDelay, 500*time.Millisecond),
		LLMRetryMaxDelay:       getDurationEnv(EnvLLMRetryMaxDelay, 3*time.Second),

		R2Enabled:          getBoolEnv(EnvR2Enabled, false),
		R2AccountID:        getEnv(EnvR2AccountID, ""),
		R2AccessKeyID:      getEnv(EnvR2AccessKeyID, ""),
		R2SecretAccessKey:  getEnv(EnvR2SecretAccessKey, ""),
		R2BucketName:       getEnv(EnvR2BucketName, ""),
		R2SnapshotKey:      getEnv(EnvR2SnapshotKey, "snapshots/sessions.db.zst"),
		R2LockKey:          getEnv(EnvR2LockKey, "locks/snapshot.lock"),
		R2LockTTL:          getDurationEnv(EnvR2LockTTL, SnapshotLockTTL),
		R2SnapshotInterval: getDurationEnv(EnvR2SnapshotInterval, SnapshotUploadInterval),
		R2ScheduleKey:      getEnv(EnvR2ScheduleKey, "state/snapshot-schedule.json"),

		SentryEnabled:     getBoolEnv(EnvSentryEnabled, false),
		SentryDSN:         getEnv(EnvSentryDSN, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),

		BetterStackEnabled:  getBoolEnv(EnvBetterStackEnabled, false),
		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),

		MetricsAuthEnabled: getBoolEnv(EnvMetricsAuthEnabled, false),
		MetricsUsername:    getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword:    getEnv(EnvMetricsPassword, ""),

		Bot: bot,
	}
	if mode == ToolMode {
		// Tools never serve chat; emulator-only needs no LINE credentials.
		cfg.LineEnabled = false
		cfg.EmulatorEnabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required values are set and feature flags are consistent.
func (c *Config) Validate() error {
	var errs []error

	if !c.LineEnabled && !c.EmulatorEnabled {
		errs = append(errs, errors.New("at least one transport must be enabled (LINE or emulator)"))
	}
	if c.LineEnabled {
		if c.LineChannelToken == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvLineChannelAccessToken))
		}
		if c.LineChannelSecret == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvLineChannelSecret))
		}
	}
	if c.Port == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPort))
	}
	if _, err := time.LoadLocation(c.MotelTimezone); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", EnvMotelTimezone, err))
	}

	switch c.SessionBackend {
	case SessionBackendSQLite:
		if c.DataDir == "" {
			errs = append(errs, fmt.Errorf("%s is required for the sqlite session backend", EnvDataDir))
		}
	case SessionBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q", EnvSessionBackend, SessionBackendSQLite, SessionBackendMemory, c.SessionBackend))
	}
	if c.SessionRetention <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvSessionRetention, c.SessionRetention))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvStoreTimeout, c.StoreTimeout))
	}

	for _, p := range c.NLUProviders {
		if !slices.Contains(knownProviders, p) {
			errs = append(errs, fmt.Errorf("%s: unknown provider %q", EnvNLUProviders, p))
		}
	}
	if c.NLUConfidenceThreshold < 0 || c.NLUConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", EnvNLUConfidenceThreshold, c.NLUConfidenceThreshold))
	}
	if c.ClassifierTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvClassifierTimeout, c.ClassifierTimeout))
	}
	if c.LUISModelURL != "" {
		if u, err := url.Parse(c.LUISModelURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL", EnvLUISModelURL))
		}
	}
	if c.LLMRetryMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", EnvLLMRetryMaxAttempts, c.LLMRetryMaxAttempts))
	}

	if c.R2Enabled {
		if c.SessionBackend != SessionBackendSQLite {
			errs = append(errs, fmt.Errorf("%s requires the sqlite session backend", EnvR2Enabled))
		}
		for key, val := range map[string]string{
			EnvR2AccountID:       c.R2AccountID,
			EnvR2AccessKeyID:     c.R2AccessKeyID,
			EnvR2SecretAccessKey: c.R2SecretAccessKey,
			EnvR2BucketName:      c.R2BucketName,
		} {
			if val == "" {
				errs = append(errs, fmt.Errorf("%s is required when %s=true", key, EnvR2Enabled))
			}
		}
		if c.R2LockTTL <= 0 || c.R2SnapshotInterval <= 0 {
			errs = append(errs, errors.New("R2 lock TTL and snapshot interval must be positive"))
		}
	}

	if c.SentryEnabled && c.SentryDSN == "" {
		errs = append(errs, fmt.Errorf("%s is required when %s=true", EnvSentryDSN, EnvSentryEnabled))
	}
	if c.BetterStackEnabled && (c.BetterStackToken == "" || c.BetterStackEndpoint == "") {
		errs = append(errs, fmt.Errorf("%s and %s are required when %s=true", EnvBetterStackToken, EnvBetterStackEndpoint, EnvBetterStackEnabled))
	}
	if c.MetricsAuthEnabled && c.MetricsPassword == "" {
		errs = append(errs, fmt.Errorf("%s is required when %s=true", EnvMetricsPassword, EnvMetricsAuthEnabled))
	}

	if err := c.Bot.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bot config: %w", err))
	}

	return errors.Join(errs...)
}

// SQLitePath returns the full path to the session database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "sessions.db")
}

// HasLLMProvider reports whether any LLM provider is both selected and keyed.
func (c *Config) HasLLMProvider() bool {
	return c.providerReady(ProviderGemini, c.GeminiAPIKey) ||
		c.providerReady(ProviderGroq, c.GroqAPIKey) ||
		c.providerReady(ProviderCerebras, c.CerebrasAPIKey)
}

// UsesProvider reports whether name is listed in MUFFIN_NLU_PROVIDERS.
func (c *Config) UsesProvider(name string) bool {
	return slices.Contains(c.NLUProviders, name)
}

func (c *Config) providerReady(name, key string) bool {
	return key != "" && c.UsesProvider(name)
}

// Location returns the motel's time zone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.MotelTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated value, trimming and dropping blanks.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return slices.Clone(defaultValue)
	}
	var out []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func lowerAll(items []string) []string {
	for i, item := range items {
		items[i] = strings.ToLower(item)
	}
	return items
}

func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}
