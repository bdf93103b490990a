// Package webhook receives conversation events over HTTP: the LINE Messaging
// API webhook and a JSON endpoint for local testing.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"golang.org/x/sync/errgroup"

	"github.com/kewalaka/muffinbot/internal/bot"
	"github.com/kewalaka/muffinbot/internal/config"
	"github.com/kewalaka/muffinbot/internal/ctxutil"
	"github.com/kewalaka/muffinbot/internal/logger"
	"github.com/kewalaka/muffinbot/internal/metrics"
	"github.com/kewalaka/muffinbot/internal/ratelimit"
	"github.com/kewalaka/muffinbot/internal/sentry"
)

// loadingSeconds matches config.WebhookProcessing; LINE caps it at 60.
const loadingSeconds int32 = 60

// EventProcessor turns LINE events into reply messages. *bot.Processor
// implements it.
type EventProcessor interface {
	ProcessMessage(ctx context.Context, event webhook.MessageEvent) ([]messaging_api.MessageInterface, error)
	ProcessFollow(ctx context.Context, event webhook.FollowEvent) ([]messaging_api.MessageInterface, error)
	ProcessJoin(ctx context.Context, event webhook.JoinEvent) ([]messaging_api.MessageInterface, error)
}

// Handler handles LINE webhook events
type Handler struct {
	channelSecret string
	client        Replier
	processor     EventProcessor
	metrics       *metrics.Metrics
	logger        *logger.Logger
	rateLimiter   *ratelimit.Limiter // Global rate limiter for API calls
	wg            sync.WaitGroup     // Async batch processing

	webhookTimeout      time.Duration
	concurrency         int
	maxEventsPerWebhook int
	minReplyTokenLength int
}

// HandlerConfig holds configuration for creating a new Handler
type HandlerConfig struct {
	ChannelSecret string
	Client        Replier
	Processor     EventProcessor
	BotConfig     *config.BotConfig
	Metrics       *metrics.Metrics
	Logger        *logger.Logger
}

// NewHandler creates a new webhook handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.ChannelSecret == "" {
		return nil, errors.New("webhook: channel secret is required")
	}
	if cfg.Client == nil || cfg.Processor == nil || cfg.Logger == nil {
		return nil, errors.New("webhook: client, processor and logger are required")
	}
	botCfg := config.DefaultBotConfig()
	if cfg.BotConfig != nil {
		botCfg = *cfg.BotConfig
	}

	return &Handler{
		channelSecret:       cfg.ChannelSecret,
		client:              cfg.Client,
		processor:           cfg.Processor,
		metrics:             cfg.Metrics,
		logger:              cfg.Logger.WithModule("webhook"),
		rateLimiter:         ratelimit.New(botCfg.GlobalRateLimitRPS, botCfg.GlobalRateLimitRPS),
		webhookTimeout:      botCfg.WebhookTimeout,
		concurrency:         max(botCfg.WebhookConcurrency, 1),
		maxEventsPerWebhook: botCfg.MaxEventsPerWebhook,
		minReplyTokenLength: botCfg.MinReplyTokenLength,
	}, nil
}

// Handle is the Gin handler for the webhook endpoint
func (h *Handler) Handle(c *gin.Context) {
	// 1. Parse request
	cb, err := webhook.ParseRequest(h.channelSecret, c.Request)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.logger.Warn("Invalid webhook signature")
			h.metrics.RecordHTTPError("invalid_signature", "webhook")
			c.Status(http.StatusBadRequest)
		} else {
			h.logger.WithError(err).Error("Failed to parse webhook request")
			h.metrics.RecordHTTPError("parse_error", "webhook")
			c.Status(http.StatusBadRequest)
		}
		return
	}

	// 2. Return 200 OK immediately (LINE requirement)
	c.Status(http.StatusOK)

	// 3. Process events asynchronously
	events := cb.Events
	if len(events) > h.maxEventsPerWebhook {
		h.logger.WithField("event_count", len(events)).
			WithField("limit", h.maxEventsPerWebhook).
			Warn("Too many events in webhook batch; truncating")
		events = events[:h.maxEventsPerWebhook]
	}
	if len(events) == 0 {
		return
	}

	// Copy events so nothing refers to the request after the response.
	batch := make([]webhook.EventInterface, len(events))
	copy(batch, events)

	ctx := ctxutil.WithTransport(ctxutil.PreserveTracing(c.Request.Context()), "line")
	h.wg.Go(func() {
		h.processBatch(ctx, batch)
	})
}

// processBatch runs each conversation's events in delivery order, with
// different conversations in parallel.
func (h *Handler) processBatch(ctx context.Context, events []webhook.EventInterface) {
	start := time.Now()
	g := new(errgroup.Group)
	g.SetLimit(h.concurrency)

	groups := groupByChat(events)
	for _, group := range groups {
		g.Go(func() error {
			for _, event := range group {
				h.processEvent(ctx, event)
			}
			return nil
		})
	}
	_ = g.Wait()

	h.logger.WithField("event_count", len(events)).
		WithField("conversations", len(groups)).
		WithField("batch_duration_ms", time.Since(start).Milliseconds()).
		Debug("Webhook batch processed")
}

// groupByChat splits events by conversation, keeping first-seen order.
func groupByChat(events []webhook.EventInterface) [][]webhook.EventInterface {
	index := make(map[string]int)
	var groups [][]webhook.EventInterface
	for _, e := range events {
		key := bot.ChatOf(eventSource(e)).Key
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], e)
	}
	return groups
}

// processEvent handles a single webhook event.
func (h *Handler) processEvent(parent context.Context, event webhook.EventInterface) {
	eventStart := time.Now()
	ctx, cancel := context.WithTimeout(parent, h.webhookTimeout)
	defer cancel()

	eventID, isRedelivery := extractEventMeta(event)
	if eventID != "" {
		ctx = ctxutil.WithRequestID(ctx, eventID)
	}
	ctx = ctxutil.WithConversationID(ctx, bot.ChatOf(eventSource(event)).Key)

	log := h.logger
	if eventID != "" {
		log = log.WithRequestID(eventID)
	}
	if isRedelivery {
		log = log.WithField("is_redelivery", true)
	}

	defer func() {
		if r := recover(); r != nil {
			sentry.RecoverWithContext(ctx, r)
			log.WithField("panic", r).Error("Panic in webhook event processing")
			h.metrics.RecordWebhook("unknown", "panic", time.Since(eventStart))
		}
	}()

	if h.shouldShowLoading(event) {
		if err := h.client.ShowLoading(ctx, bot.ChatOf(eventSource(event)).Key, loadingSeconds); err != nil {
			log.WithError(err).Warn("Failed to show loading animation")
		}
	}

	var (
		messages  []messaging_api.MessageInterface
		eventType string
		err       error
	)
	switch e := event.(type) {
	case webhook.MessageEvent:
		eventType = "message"
		messages, err = h.processor.ProcessMessage(ctx, e)
	case webhook.FollowEvent:
		eventType = "follow"
		messages, err = h.processor.ProcessFollow(ctx, e)
	case webhook.JoinEvent:
		eventType = "join"
		messages, err = h.processor.ProcessJoin(ctx, e)
	default:
		log.WithField("event_type", fmt.Sprintf("%T", e)).Debug("Unsupported event type")
		return
	}

	status := "success"
	if err != nil {
		status = "error"
		log.WithError(err).WithField("event_type", eventType).Warn("Event handled with error")
	}

	if len(messages) > 0 {
		if replyErr := h.reply(ctx, event, messages); replyErr != nil {
			status = "reply_error"
			log.WithError(replyErr).WithField("event_type", eventType).Error("Failed to send reply")
		}
	}

	h.metrics.RecordWebhook(eventType, status, time.Since(eventStart))
	log.WithField("event_type", eventType).
		WithField("message_count", len(messages)).
		WithField("event_duration_ms", time.Since(eventStart).Milliseconds()).
		Info("Event processed")
}

func (h *Handler) reply(ctx context.Context, event webhook.EventInterface, messages []messaging_api.MessageInterface) error {
	replyToken := getReplyToken(event)
	if len(replyToken) < h.minReplyTokenLength {
		h.logger.WithField("token_length", len(replyToken)).Debug("Missing or invalid reply token; not replying")
		return nil
	}

	if !h.rateLimiter.Allow() {
		h.metrics.RecordRateLimiterDrop("global")
		h.logger.Warn("Global rate limit exceeded; waiting")
		if err := h.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for global rate limit: %w", err)
		}
	}

	return h.client.Reply(ctx, replyToken, messages)
}

// shouldShowLoading reports whether a loading animation makes sense. LINE
// only supports it in personal chats, and only events that get an answer
// qualify.
func (h *Handler) shouldShowLoading(event webhook.EventInterface) bool {
	switch e := event.(type) {
	case webhook.MessageEvent:
		if !bot.ChatOf(e.Source).Personal() {
			return false
		}
		_, isText := e.Message.(webhook.TextMessageContent)
		return isText
	case webhook.FollowEvent:
		return bot.ChatOf(e.Source).Personal()
	default:
		return false
	}
}

func extractEventMeta(event webhook.EventInterface) (string, bool) {
	var dc *webhook.DeliveryContext
	var id string
	switch e := event.(type) {
	case webhook.MessageEvent:
		id, dc = e.WebhookEventId, e.DeliveryContext
	case webhook.FollowEvent:
		id, dc = e.WebhookEventId, e.DeliveryContext
	case webhook.JoinEvent:
		id, dc = e.WebhookEventId, e.DeliveryContext
	}
	return id, dc != nil && dc.IsRedelivery
}

func getReplyToken(event webhook.EventInterface) string {
	switch e := event.(type) {
	case webhook.MessageEvent:
		return e.ReplyToken
	case webhook.FollowEvent:
		return e.ReplyToken
	case webhook.JoinEvent:
		return e.ReplyToken
	default:
		return ""
	}
}

func eventSource(event webhook.EventInterface) webhook.SourceInterface {
	switch e := event.(type) {
	case webhook.MessageEvent:
		return e.Source
	case webhook.FollowEvent:
		return e.Source
	case webhook.JoinEvent:
		return e.Source
	case webhook.UnfollowEvent:
		return e.Source
	case webhook.LeaveEvent:
		return e.Source
	case webhook.PostbackEvent:
		return e.Source
	default:
		return nil
	}
}

// Shutdown waits for all async event processing to complete.
// It returns an error if the context is canceled before completion.
func (h *Handler) Shutdown(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		h.wg.Wait()
	}()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
