package nlu

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// ErrorAction is what the chain does after a provider error.
type ErrorAction int

const (
	// ActionRetry retries the same provider after backoff.
	ActionRetry ErrorAction = iota
	// ActionFallback moves to the next provider immediately.
	ActionFallback
	// ActionFail stops retrying this provider.
	ActionFail
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFallback:
		return "fallback"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// ProviderError carries the HTTP status of a failed provider call.
type ProviderError struct {
	Err        error
	StatusCode int
	Provider   Provider
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return e.Err.Error() + " (status: " + strconv.Itoa(e.StatusCode) + ")"
	}
	return e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError attaches provider and status code to err.
func WrapError(err error, provider Provider, statusCode int) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Err: err, StatusCode: statusCode, Provider: provider}
}

// ClassifyError decides the action for err:
//   - transient errors (429, 5xx, timeouts, network) → retry
//   - quota exhaustion → fallback
//   - client errors (400, 401, 403, 404, 422) and cancellation → fail
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionFail
	}
	if errors.Is(err, context.Canceled) {
		return ActionFail
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ActionRetry
	}

	var perr *ProviderError
	if errors.As(err, &perr) && perr.StatusCode > 0 {
		return classifyStatusCode(perr.StatusCode)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "quota", "daily limit", "monthly limit", "billing"):
		return ActionFallback
	case containsAny(msg, "rate limit", "too many requests", "resource_exhausted", "429"):
		return ActionRetry
	case containsAny(msg, "unavailable", "internal server error", "bad gateway",
		"gateway timeout", "overloaded", "capacity", "500", "502", "503", "504"):
		return ActionRetry
	case containsAny(msg, "timeout", "deadline", "connection", "408", "409"):
		return ActionRetry
	case containsAny(msg, "401", "unauthorized", "unauthenticated", "api key",
		"403", "forbidden", "permission denied",
		"404", "not found",
		"400", "invalid", "bad request", "malformed",
		"422", "unprocessable"):
		return ActionFail
	}

	return ActionRetry
}

func classifyStatusCode(statusCode int) ErrorAction {
	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusConflict,
		statusCode >= 500 && statusCode < 600:
		return ActionRetry
	case statusCode >= 400 && statusCode < 500:
		return ActionFail
	default:
		return ActionRetry
	}
}

// errorStatus maps err to a metric status label.
func errorStatus(err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	var perr *ProviderError
	if errors.As(err, &perr) {
		switch {
		case perr.StatusCode == http.StatusTooManyRequests:
			return "rate_limit"
		case perr.StatusCode >= 500:
			return "server_error"
		case perr.StatusCode == http.StatusUnauthorized || perr.StatusCode == http.StatusForbidden:
			return "auth_error"
		case perr.StatusCode == http.StatusBadRequest:
			return "invalid_request"
		}
	}

	switch ClassifyError(err) {
	case ActionFallback:
		return "quota_exhausted"
	case ActionRetry:
		return "transient_error"
	default:
		return "error"
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
