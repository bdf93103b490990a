// Package ctxutil provides type-safe context value management.
// Uses private key types to prevent collisions.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	userIDKey         contextKey = "ctxutil.userID"
	conversationIDKey contextKey = "ctxutil.conversationID"
	requestIDKey      contextKey = "ctxutil.requestID"
	transportKey      contextKey = "ctxutil.transport"
)

// WithUserID adds the sender's user ID to the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID retrieves the user ID from the context.
// Returns the user ID if found, empty string otherwise.
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey).(string); ok {
		return userID
	}
	return ""
}

// WithConversationID adds the conversation key to the context.
// For LINE this is the user, group or room ID; for the emulator it is the
// client-supplied conversation ID. Sessions are keyed by it.
func WithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, conversationIDKey, conversationID)
}

// GetConversationID retrieves the conversation key from the context.
func GetConversationID(ctx context.Context) string {
	if id, ok := ctx.Value(conversationIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID adds a request ID to the context for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
// Returns the request ID and true if found, empty string and false otherwise.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok
}

// WithTransport records which transport ("line", "emulator") delivered the turn.
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, transportKey, transport)
}

// GetTransport retrieves the transport name, or empty string.
func GetTransport(ctx context.Context) string {
	if transport, ok := ctx.Value(transportKey).(string); ok {
		return transport
	}
	return ""
}

// PreserveTracing creates a detached context that preserves tracing values.
// The new context is independent of the parent's cancellation and deadlines.
//
// Only tracing values are copied so the parent context is not retained
// (Go issue #64478). Use for work that must outlive the HTTP request, such as
// LINE webhook processing that continues after 200 OK is sent.
func PreserveTracing(ctx context.Context) context.Context {
	newCtx := context.Background()

	if userID := GetUserID(ctx); userID != "" {
		newCtx = WithUserID(newCtx, userID)
	}
	if id := GetConversationID(ctx); id != "" {
		newCtx = WithConversationID(newCtx, id)
	}
	if requestID, ok := GetRequestID(ctx); ok && requestID != "" {
		newCtx = WithRequestID(newCtx, requestID)
	}
	if transport := GetTransport(ctx); transport != "" {
		newCtx = WithTransport(newCtx, transport)
	}

	return newCtx
}
