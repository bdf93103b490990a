package nlu

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorAction
	}{
		{"nil", nil, ActionFail},
		{"canceled", context.Canceled, ActionFail},
		{"deadline", context.DeadlineExceeded, ActionRetry},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ActionRetry},
		{"status 429", WrapError(errors.New("x"), ProviderGroq, 429), ActionRetry},
		{"status 503", WrapError(errors.New("x"), ProviderGroq, 503), ActionRetry},
		{"status 401", WrapError(errors.New("x"), ProviderGroq, 401), ActionFail},
		{"status 400", WrapError(errors.New("x"), ProviderGemini, 400), ActionFail},
		{"quota message", errors.New("daily limit reached"), ActionFallback},
		{"rate limit message", errors.New("Rate limit exceeded"), ActionRetry},
		{"overloaded message", errors.New("model overloaded"), ActionRetry},
		{"forbidden message", errors.New("permission denied"), ActionFail},
		{"unknown", errors.New("something odd"), ActionRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "canceled"},
		{WrapError(errors.New("x"), ProviderGroq, 429), "rate_limit"},
		{WrapError(errors.New("x"), ProviderGroq, 500), "server_error"},
		{WrapError(errors.New("x"), ProviderGroq, 403), "auth_error"},
		{errors.New("quota exceeded"), "quota_exhausted"},
		{errors.New("connection reset"), "transient_error"},
		{errors.New("invalid argument"), "error"},
	}
	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestProviderError(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")
	err := WrapError(base, ProviderGemini, 502)
	if !errors.Is(err, base) {
		t.Error("ProviderError should unwrap to the cause")
	}
	if got := err.Error(); got != "boom (status: 502)" {
		t.Errorf("Error() = %q", got)
	}
	if WrapError(nil, ProviderGemini, 500) != nil {
		t.Error("WrapError(nil) should be nil")
	}
}
