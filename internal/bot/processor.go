// Package bot maps LINE webhook events onto conversation turns and renders
// the replies as LINE messages.
package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/kewalaka/muffinbot/internal/config"
	"github.com/kewalaka/muffinbot/internal/ctxutil"
	"github.com/kewalaka/muffinbot/internal/dialog"
	domerrors "github.com/kewalaka/muffinbot/internal/errors"
	"github.com/kewalaka/muffinbot/internal/lineutil"
	"github.com/kewalaka/muffinbot/internal/logger"
	"github.com/kewalaka/muffinbot/internal/metrics"
)

// RateLimitText is sent in personal chats when a user exceeds the message rate.
const RateLimitText = "Meiow, that's a lot of messages! Give me a moment to catch up and try again."

// maxInboundText is the LINE limit for incoming text messages.
const maxInboundText = 20000

// Conversation runs turns for a conversation key. *dialog.Engine implements it.
type Conversation interface {
	ConversationStarted(ctx context.Context, key string) ([]dialog.Message, error)
	HandleText(ctx context.Context, key, text string) ([]dialog.Message, error)
}

// Limiter decides whether a conversation may send another message.
type Limiter interface {
	Allow(key string) bool
}

// Processor handles the core logic of processing LINE events.
// It applies rate limiting, resolves the conversation key and runs the turn.
type Processor struct {
	conversation Conversation
	userLimiter  Limiter
	logger       *logger.Logger
	metrics      *metrics.Metrics
	sender       *messaging_api.Sender
	maxMessages  int
}

// ProcessorConfig holds configuration for creating a new Processor.
type ProcessorConfig struct {
	Conversation Conversation
	UserLimiter  Limiter // Optional
	Logger       *logger.Logger
	Metrics      *metrics.Metrics
	BotConfig    *config.BotConfig
	BotName      string
	BotIconURL   string
}

// NewProcessor creates a new event processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	maxMessages := config.LINEMaxMessagesPerReply
	if cfg.BotConfig != nil && cfg.BotConfig.MaxMessagesPerReply > 0 {
		maxMessages = cfg.BotConfig.MaxMessagesPerReply
	}
	return &Processor{
		conversation: cfg.Conversation,
		userLimiter:  cfg.UserLimiter,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		sender:       lineutil.NewSender(cfg.BotName, cfg.BotIconURL),
		maxMessages:  maxMessages,
	}
}

// ProcessFollow handles a follow event: the user added the bot as a friend.
func (p *Processor) ProcessFollow(ctx context.Context, event webhook.FollowEvent) ([]messaging_api.MessageInterface, error) {
	return p.start(ctx, event.Source)
}

// ProcessJoin handles the bot being added to a group or room.
func (p *Processor) ProcessJoin(ctx context.Context, event webhook.JoinEvent) ([]messaging_api.MessageInterface, error) {
	return p.start(ctx, event.Source)
}

func (p *Processor) start(ctx context.Context, source webhook.SourceInterface) ([]messaging_api.MessageInterface, error) {
	chat := ChatOf(source)
	if chat.Key == "" {
		return nil, errors.New("bot: event source has no chat ID")
	}
	ctx = withChat(ctx, chat)

	p.logger.WithField("chat_kind", string(chat.Kind)).Info("Conversation started")

	msgs, err := p.conversation.ConversationStarted(ctx, chat.Key)
	return p.render(msgs), err
}

// ProcessMessage handles a message event. Only text messages start a turn;
// other message types are ignored.
func (p *Processor) ProcessMessage(ctx context.Context, event webhook.MessageEvent) ([]messaging_api.MessageInterface, error) {
	chat := ChatOf(event.Source)
	if chat.Key == "" {
		return nil, errors.New("bot: event source has no chat ID")
	}
	ctx = withChat(ctx, chat)

	textMsg, ok := event.Message.(webhook.TextMessageContent)
	if !ok {
		return nil, nil
	}

	text := strings.TrimSpace(textMsg.Text)
	if text == "" {
		return nil, nil
	}
	if len([]rune(text)) > maxInboundText {
		return nil, domerrors.NewValidationError("text", "message exceeds LINE limit")
	}

	if p.userLimiter != nil && !p.userLimiter.Allow(chat.Key) {
		p.logger.WithField("chat_id", chat.Key).Warn("User rate limit exceeded")
		// No notice in groups and rooms.
		if !chat.Personal() {
			return nil, nil
		}
		return p.render([]dialog.Message{dialog.Text(RateLimitText)}), nil
	}

	msgs, err := p.conversation.HandleText(ctx, chat.Key, text)
	return p.render(msgs), err
}

func (p *Processor) render(msgs []dialog.Message) []messaging_api.MessageInterface {
	return lineutil.Render(msgs, p.sender, p.maxMessages)
}

// withChat stores the conversation and sender IDs for logs and quota keys.
func withChat(ctx context.Context, chat Chat) context.Context {
	ctx = ctxutil.WithConversationID(ctx, chat.Key)
	if chat.UserID != "" {
		ctx = ctxutil.WithUserID(ctx, chat.UserID)
	}
	return ctx
}
