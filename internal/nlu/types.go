// Package nlu classifies user text into motel intents and extracts entities.
//
// Providers:
//   - Gemini: google.golang.org/genai function calling (mode ANY)
//   - Groq/Cerebras: github.com/openai/openai-go/v3 (OpenAI-compatible, tool choice required)
//   - LUIS: v2 prediction endpoint over HTTP
//   - Local: BM25 over example utterances, always available
//
// Remote providers are chained: each is retried with backoff, then the next
// provider is tried, and the local classifier answers last.
package nlu

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"
)

// Intent is a classified user goal.
type Intent string

// Known intents. None means the classifier found no match.
const (
	Greeting          Intent = "Greeting"
	Help              Intent = "Help"
	ThingsToDo        Intent = "ThingsToDo"
	CheckAvailability Intent = "CheckAvailability"
	None              Intent = "None"
)

// Intents lists the intents handlers can serve, in declaration order.
var Intents = []Intent{Greeting, Help, ThingsToDo, CheckAvailability}

// EntityCheckIn is the entity type holding the desired arrival date phrase.
const EntityCheckIn = "Date.CheckIn"

// Provider identifies a classifier backend.
type Provider string

// Providers.
const (
	ProviderGemini   Provider = "gemini"
	ProviderGroq     Provider = "groq"
	ProviderCerebras Provider = "cerebras"
	ProviderLUIS     Provider = "luis"
	ProviderLocal    Provider = "local"
)

// ProviderEndpoint is the base URL of each OpenAI-compatible provider.
var ProviderEndpoint = map[Provider]string{
	ProviderGroq:     "https://api.groq.com/openai/v1/",
	ProviderCerebras: "https://api.cerebras.ai/v1/",
}

// IsOpenAICompatible reports whether p speaks the OpenAI chat API.
func (p Provider) IsOpenAICompatible() bool {
	_, ok := ProviderEndpoint[p]
	return ok
}

func (p Provider) String() string {
	return string(p)
}

// IntentScore is one ranked intent.
type IntentScore struct {
	Name  Intent
	Score float64 // In [0,1]
}

// Entity is a typed span of the classified text. Start and End are rune
// offsets (End exclusive), -1 when the provider gives no span.
type Entity struct {
	Type  string
	Value string
	Start int
	End   int
}

// Result is the outcome of one classification.
type Result struct {
	Intents  []IntentScore // Descending by score
	Entities []Entity
	Provider Provider
	Model    string
}

// Top returns the highest scoring intent, or the zero value when there is none.
func (r *Result) Top() IntentScore {
	if r == nil || len(r.Intents) == 0 {
		return IntentScore{}
	}
	return r.Intents[0]
}

// Entity returns the first entity of the given type.
func (r *Result) Entity(entityType string) (Entity, bool) {
	if r == nil {
		return Entity{}, false
	}
	for _, e := range r.Entities {
		if e.Type == entityType {
			return e, true
		}
	}
	return Entity{}, false
}

// Classifier turns user text into a Result.
type Classifier interface {
	// Classify analyzes text. A nil Result with a nil error is never returned.
	Classify(ctx context.Context, text string) (*Result, error)
	// IsEnabled returns true if the classifier is initialized.
	IsEnabled() bool
	// Close releases resources.
	Close() error
	// Provider returns the backend for logs and metrics.
	Provider() Provider
}

// RetryConfig defines retry behavior for remote classifier calls.
// Uses Full Jitter exponential backoff.
type RetryConfig struct {
	MaxAttempts  int // Including the first attempt
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Retry defaults.
const (
	DefaultMaxRetryAttempts  = 2
	DefaultInitialRetryDelay = 500 * time.Millisecond
	DefaultMaxRetryDelay     = 3 * time.Second
)

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultMaxRetryAttempts,
		InitialDelay: DefaultInitialRetryDelay,
		MaxDelay:     DefaultMaxRetryDelay,
	}
}

// Default model chains. The first model is primary.
var (
	DefaultGeminiModels   = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}
	DefaultGroqModels     = []string{"meta-llama/llama-4-maverick-17b-128e-instruct", "llama-3.3-70b-versatile"}
	DefaultCerebrasModels = []string{"llama-3.3-70b", "llama-3.1-8b"}
)

// parseIntent maps a case-insensitive name to a known intent, None otherwise.
func parseIntent(name string) Intent {
	for _, in := range Intents {
		if strings.EqualFold(name, string(in)) {
			return in
		}
	}
	return None
}

// clampScore keeps provider scores inside [0,1].
func clampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

// locatePhrase returns the entity for phrase with its rune span in text,
// matched case-insensitively. The span is -1,-1 when phrase does not occur.
func locatePhrase(text, entityType, phrase string) Entity {
	e := Entity{Type: entityType, Value: phrase, Start: -1, End: -1}
	if phrase == "" {
		return e
	}
	lowerText, lowerPhrase := strings.ToLower(text), strings.ToLower(phrase)
	var idx int
	if len(lowerText) == len(text) && len(lowerPhrase) == len(phrase) {
		idx = strings.Index(lowerText, lowerPhrase)
	} else {
		idx = strings.Index(text, phrase)
	}
	if idx < 0 {
		return e
	}
	e.Start = utf8.RuneCountInString(text[:idx])
	e.End = e.Start + utf8.RuneCountInString(phrase)
	e.Value = text[idx : idx+len(phrase)]
	return e
}
