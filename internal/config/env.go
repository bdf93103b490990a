// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// LINE transport
	EnvLineEnabled            = "MUFFIN_LINE_ENABLED"
	EnvLineChannelAccessToken = "MUFFIN_LINE_CHANNEL_ACCESS_TOKEN"
	EnvLineChannelSecret      = "MUFFIN_LINE_CHANNEL_SECRET"

	// Emulator transport
	EnvEmulatorEnabled = "MUFFIN_EMULATOR_ENABLED"

	// Server
	EnvPort            = "MUFFIN_PORT"
	EnvLogLevel        = "MUFFIN_LOG_LEVEL"
	EnvShutdownTimeout = "MUFFIN_SHUTDOWN_TIMEOUT"
	EnvBotName         = "MUFFIN_BOT_NAME"
	EnvBotIconURL      = "MUFFIN_BOT_ICON_URL"
	EnvMotelTimezone   = "MUFFIN_MOTEL_TIMEZONE"

	// Sessions
	EnvDataDir          = "MUFFIN_DATA_DIR"
	EnvSessionBackend   = "MUFFIN_SESSION_BACKEND"
	EnvSessionRetention = "MUFFIN_SESSION_RETENTION"
	EnvStoreTimeout     = "MUFFIN_STORE_TIMEOUT"

	// Webhook
	EnvWebhookTimeout     = "MUFFIN_WEBHOOK_TIMEOUT"
	EnvWebhookConcurrency = "MUFFIN_WEBHOOK_CONCURRENCY"
	EnvMaxInputRunes      = "MUFFIN_MAX_INPUT_RUNES"

	// Rate Limits
	EnvGlobalRateRPS  = "MUFFIN_GLOBAL_RATE_RPS"
	EnvUserRateBurst  = "MUFFIN_USER_RATE_BURST"
	EnvUserRateRefill = "MUFFIN_USER_RATE_REFILL"
	EnvNLURateBurst   = "MUFFIN_NLU_RATE_BURST"
	EnvNLURateRefill  = "MUFFIN_NLU_RATE_REFILL"
	EnvNLURateDaily   = "MUFFIN_NLU_RATE_DAILY"

	// NLU
	EnvNLUProviders           = "MUFFIN_NLU_PROVIDERS"
	EnvNLUConfidenceThreshold = "MUFFIN_NLU_CONFIDENCE_THRESHOLD"
	EnvNLUSpellCorrection     = "MUFFIN_NLU_SPELL_CORRECTION"
	EnvClassifierTimeout      = "MUFFIN_CLASSIFIER_TIMEOUT"
	EnvLUISModelURL           = "MUFFIN_LUIS_MODEL_URL"
	EnvGeminiAPIKey           = "MUFFIN_GEMINI_API_KEY"
	EnvGroqAPIKey             = "MUFFIN_GROQ_API_KEY"
	EnvCerebrasAPIKey         = "MUFFIN_CEREBRAS_API_KEY"
	EnvGeminiIntentModels     = "MUFFIN_GEMINI_INTENT_MODELS"
	EnvGroqIntentModels       = "MUFFIN_GROQ_INTENT_MODELS"
	EnvCerebrasIntentModels   = "MUFFIN_CEREBRAS_INTENT_MODELS"
	EnvLLMRetryMaxAttempts    = "MUFFIN_LLM_RETRY_MAX_ATTEMPTS"
	EnvLLMRetryInitialDelay   = "MUFFIN_LLM_RETRY_INITIAL_DELAY"
	EnvLLMRetryMaxDelay       = "MUFFIN_LLM_RETRY_MAX_DELAY"

	// R2 Snapshot Feature
	EnvR2Enabled          = "MUFFIN_R2_ENABLED"
	EnvR2AccountID        = "MUFFIN_R2_ACCOUNT_ID"
	EnvR2AccessKeyID      = "MUFFIN_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey  = "MUFFIN_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName       = "MUFFIN_R2_BUCKET_NAME"
	EnvR2SnapshotKey      = "MUFFIN_R2_SNAPSHOT_KEY"
	EnvR2LockKey          = "MUFFIN_R2_LOCK_KEY"
	EnvR2LockTTL          = "MUFFIN_R2_LOCK_TTL"
	EnvR2SnapshotInterval = "MUFFIN_R2_SNAPSHOT_INTERVAL"
	EnvR2ScheduleKey      = "MUFFIN_R2_SCHEDULE_KEY"

	// Sentry Feature
	EnvSentryEnabled     = "MUFFIN_SENTRY_ENABLED"
	EnvSentryDSN         = "MUFFIN_SENTRY_DSN"
	EnvSentryEnvironment = "MUFFIN_SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "MUFFIN_SENTRY_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackEnabled  = "MUFFIN_BETTERSTACK_ENABLED"
	EnvBetterStackToken    = "MUFFIN_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "MUFFIN_BETTERSTACK_ENDPOINT"

	// Metrics Auth Feature
	EnvMetricsAuthEnabled = "MUFFIN_METRICS_AUTH_ENABLED"
	EnvMetricsUsername    = "MUFFIN_METRICS_USERNAME"
	EnvMetricsPassword    = "MUFFIN_METRICS_PASSWORD"
)
