package nlu

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/kewalaka/muffinbot/internal/config"
	"github.com/kewalaka/muffinbot/internal/metrics"
)

// ProviderSettings is the per-provider part of the NLU configuration.
type ProviderSettings struct {
	APIKey  string
	Models  []string // Empty = package defaults
	BaseURL string   // Overrides the provider endpoint (tests, proxies)
}

// Settings configures the classifier chain and corrector.
type Settings struct {
	Providers      []Provider // Order of the chain; local is always last
	Gemini         ProviderSettings
	Groq           ProviderSettings
	Cerebras       ProviderSettings
	LUISModelURL   string
	Retry          RetryConfig
	SpellCorrector bool
	HTTPClient     *http.Client // For LUIS; nil = http.DefaultClient
}

// SettingsFromConfig maps the application config to Settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	providers := make([]Provider, 0, len(cfg.NLUProviders))
	for _, p := range cfg.NLUProviders {
		providers = append(providers, Provider(p))
	}
	return Settings{
		Providers:      providers,
		Gemini:         ProviderSettings{APIKey: cfg.GeminiAPIKey, Models: cfg.GeminiIntentModels},
		Groq:           ProviderSettings{APIKey: cfg.GroqAPIKey, Models: cfg.GroqIntentModels},
		Cerebras:       ProviderSettings{APIKey: cfg.CerebrasAPIKey, Models: cfg.CerebrasIntentModels},
		LUISModelURL:   cfg.LUISModelURL,
		SpellCorrector: cfg.NLUSpellCorrection,
		Retry: RetryConfig{
			MaxAttempts:  cfg.LLMRetryMaxAttempts,
			InitialDelay: cfg.LLMRetryInitialDelay,
			MaxDelay:     cfg.LLMRetryMaxDelay,
		},
	}
}

func (s Settings) provider(p Provider) (ProviderSettings, []string) {
	switch p {
	case ProviderGemini:
		return s.Gemini, orDefault(s.Gemini.Models, DefaultGeminiModels)
	case ProviderGroq:
		return s.Groq, orDefault(s.Groq.Models, DefaultGroqModels)
	case ProviderCerebras:
		return s.Cerebras, orDefault(s.Cerebras.Models, DefaultCerebrasModels)
	default:
		return ProviderSettings{}, nil
	}
}

func orDefault(models, defaults []string) []string {
	if len(models) > 0 {
		return models
	}
	return defaults
}

// NewClassifier builds the chain: one classifier per configured provider
// and model in s.Providers order, then the local classifier. Providers
// without credentials are skipped with a log line.
func NewClassifier(ctx context.Context, s Settings, opts ...ChainOption) (*Chain, error) {
	var remotes []Classifier

	for _, p := range s.Providers {
		switch {
		case p == ProviderLocal:
			continue
		case p == ProviderLUIS:
			c, err := newLUISClassifier(s.LUISModelURL, s.HTTPClient)
			if err != nil {
				return nil, err
			}
			if c == nil {
				slog.WarnContext(ctx, "LUIS listed but no model URL configured")
				continue
			}
			remotes = append(remotes, c)
		default:
			ps, models := s.provider(p)
			if ps.APIKey == "" {
				slog.InfoContext(ctx, "Classifier provider skipped, no API key", "provider", p)
				continue
			}
			for _, m := range models {
				c, err := newRemoteClassifier(ctx, p, ps, m)
				if err != nil {
					slog.WarnContext(ctx, "Failed to create classifier", "provider", p, "model", m, "error", err)
					continue
				}
				remotes = append(remotes, c)
			}
		}
	}

	local, err := NewUtteranceClassifier(nil)
	if err != nil {
		return nil, err
	}

	chain := NewChain(remotes, local, s.Retry, opts...)
	slog.InfoContext(ctx, "Classifier configured", "chain", chain.Providers())
	return chain, nil
}

func newRemoteClassifier(ctx context.Context, p Provider, ps ProviderSettings, model string) (Classifier, error) {
	if p == ProviderGemini {
		return newGeminiClassifier(ctx, ps.APIKey, model)
	}
	return newOpenAIClassifier(p, ps.APIKey, model, ps.BaseURL)
}

// NewCorrector builds the spell corrector from the LLM providers in
// s.Providers order. Returns nil when correction is off or no LLM is keyed.
func NewCorrector(ctx context.Context, s Settings, m *metrics.Metrics) *FallbackCorrector {
	if !s.SpellCorrector {
		return nil
	}

	var correctors []Corrector
	for _, p := range s.Providers {
		ps, models := s.provider(p)
		if ps.APIKey == "" || len(models) == 0 {
			continue
		}
		// The lightest model of each provider is enough for spelling.
		model := models[len(models)-1]
		var (
			c   Corrector
			err error
		)
		if p == ProviderGemini {
			c, err = newGeminiCorrector(ctx, ps.APIKey, model)
		} else {
			c, err = newOpenAICorrector(p, ps.APIKey, model, ps.BaseURL)
		}
		if err != nil {
			slog.WarnContext(ctx, "Failed to create corrector", "provider", p, "error", err)
			continue
		}
		correctors = append(correctors, c)
	}

	if len(correctors) == 0 {
		slog.InfoContext(ctx, "Spell correction enabled but no LLM provider configured")
		return nil
	}
	return NewFallbackCorrector(correctors, s.Retry, m)
}
