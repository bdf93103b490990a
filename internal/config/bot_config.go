package config

import (
	"errors"
	"fmt"
	"time"
)

// LINE Messaging API limits.
const (
	LINEMaxMessagesPerReply  = 5
	LINEMaxTextMessageLength = 5000
)

// BotConfig holds conversation-handling limits shared by the transports.
type BotConfig struct {
	WebhookTimeout      time.Duration // Timeout for one webhook event (see timeouts.go)
	WebhookConcurrency  int           // Conversations processed in parallel per webhook batch
	MaxMessagesPerReply int           // LINE API limit: 5
	MaxEventsPerWebhook int           // Events beyond this are dropped
	MinReplyTokenLength int
	MaxInputRunes       int // Longer user text is truncated before classification

	// Per-conversation message rate (token bucket)
	UserRateLimitBurst        float64
	UserRateLimitRefillPerSec float64

	// Per-conversation classifier quota (hourly bucket + daily window)
	NLUBurstTokens   float64
	NLURefillPerHour float64
	NLUDailyLimit    int

	GlobalRateLimitRPS float64
}

// DefaultBotConfig returns the defaults used when no environment overrides are present.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		WebhookTimeout:            WebhookProcessing,
		WebhookConcurrency:        8,
		MaxMessagesPerReply:       LINEMaxMessagesPerReply,
		MaxEventsPerWebhook:       100,
		MinReplyTokenLength:       10,
		MaxInputRunes:             2000,
		UserRateLimitBurst:        10,
		UserRateLimitRefillPerSec: 0.5,
		NLUBurstTokens:            40,
		NLURefillPerHour:          20,
		NLUDailyLimit:             200,
		GlobalRateLimitRPS:        80,
	}
}

// Validate checks the limits for consistency.
func (c BotConfig) Validate() error {
	var errs []error

	if c.WebhookTimeout <= 0 {
		errs = append(errs, fmt.Errorf("webhook timeout must be positive, got %v", c.WebhookTimeout))
	}
	if c.WebhookConcurrency < 1 {
		errs = append(errs, fmt.Errorf("webhook concurrency must be positive, got %d", c.WebhookConcurrency))
	}
	if c.MaxMessagesPerReply < 1 || c.MaxMessagesPerReply > LINEMaxMessagesPerReply {
		errs = append(errs, fmt.Errorf("max messages per reply must be 1-%d, got %d", LINEMaxMessagesPerReply, c.MaxMessagesPerReply))
	}
	if c.MaxEventsPerWebhook < 1 {
		errs = append(errs, fmt.Errorf("max events per webhook must be positive, got %d", c.MaxEventsPerWebhook))
	}
	if c.MaxInputRunes < 1 {
		errs = append(errs, fmt.Errorf("max input runes must be positive, got %d", c.MaxInputRunes))
	}
	if c.UserRateLimitBurst <= 0 || c.UserRateLimitRefillPerSec <= 0 {
		errs = append(errs, errors.New("user rate limit burst and refill must be positive"))
	}
	if c.NLUBurstTokens <= 0 || c.NLURefillPerHour <= 0 {
		errs = append(errs, errors.New("NLU rate limit burst and refill must be positive"))
	}
	if c.NLUDailyLimit < 0 {
		errs = append(errs, fmt.Errorf("NLU daily limit cannot be negative, got %d", c.NLUDailyLimit))
	}
	if c.GlobalRateLimitRPS <= 0 {
		errs = append(errs, fmt.Errorf("global rate limit RPS must be positive, got %f", c.GlobalRateLimitRPS))
	}

	return errors.Join(errs...)
}
