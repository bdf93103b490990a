package webhook

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kewalaka/muffinbot/internal/bot"
	"github.com/kewalaka/muffinbot/internal/ctxutil"
	"github.com/kewalaka/muffinbot/internal/dialog"
	"github.com/kewalaka/muffinbot/internal/logger"
	"github.com/kewalaka/muffinbot/internal/metrics"
)

// Emulator activity types.
const (
	ActivityMessage            = "message"
	ActivityConversationUpdate = "conversationUpdate"
)

// maxEmulatorBody caps request bodies.
const maxEmulatorBody = 64 << 10

// EmulatorRequest is one activity posted to the emulator endpoint.
type EmulatorRequest struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
}

// EmulatorResponse carries the replies to one activity.
type EmulatorResponse struct {
	ConversationID string          `json:"conversationId"`
	Replies        []EmulatorReply `json:"replies"`
}

// EmulatorReply is a rendered dialog.Message.
type EmulatorReply struct {
	Type string        `json:"type"` // "text" or "card"
	Text string        `json:"text,omitempty"`
	Card *EmulatorCard `json:"card,omitempty"`
}

// EmulatorCard is the JSON form of dialog.Card.
type EmulatorCard struct {
	Title    string           `json:"title"`
	Subtitle string           `json:"subtitle,omitempty"`
	ImageURL string           `json:"imageUrl,omitempty"`
	Media    []string         `json:"media,omitempty"`
	Buttons  []EmulatorButton `json:"buttons,omitempty"`
}

// EmulatorButton is the JSON form of dialog.Button.
type EmulatorButton struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Emulator serves POST /api/messages: a synchronous JSON transport for
// trying the bot without LINE.
type Emulator struct {
	conversation bot.Conversation
	logger       *logger.Logger
	metrics      *metrics.Metrics
	timeout      time.Duration
}

// NewEmulator creates the emulator handler.
func NewEmulator(conv bot.Conversation, log *logger.Logger, m *metrics.Metrics, timeout time.Duration) *Emulator {
	return &Emulator{
		conversation: conv,
		logger:       log.WithModule("emulator"),
		metrics:      m,
		timeout:      timeout,
	}
}

// Handle is the Gin handler for the emulator endpoint.
func (e *Emulator) Handle(c *gin.Context) {
	start := time.Now()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxEmulatorBody)

	var req EmulatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		e.metrics.RecordHTTPError("bad_request", "emulator")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	convID := strings.TrimSpace(req.ConversationID)
	switch req.Type {
	case ActivityConversationUpdate:
		if convID == "" {
			convID = uuid.NewString()
		}
	case ActivityMessage:
		if convID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversationId is required"})
			return
		}
	default:
		e.metrics.RecordHTTPError("bad_request", "emulator")
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown activity type"})
		return
	}

	ctx := ctxutil.WithTransport(c.Request.Context(), "emulator")
	ctx = ctxutil.WithConversationID(ctx, convID)
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var (
		msgs []dialog.Message
		err  error
	)
	if req.Type == ActivityConversationUpdate {
		msgs, err = e.conversation.ConversationStarted(ctx, convID)
	} else {
		msgs, err = e.conversation.HandleText(ctx, convID, req.Text)
	}

	status := "success"
	if err != nil {
		status = "error"
		e.logger.WithError(err).WithField("conversation_id", convID).Warn("Emulator turn failed")
	}
	e.metrics.RecordWebhook("emulator_"+req.Type, status, time.Since(start))

	c.JSON(http.StatusOK, EmulatorResponse{
		ConversationID: convID,
		Replies:        toEmulatorReplies(msgs),
	})
}

func toEmulatorReplies(msgs []dialog.Message) []EmulatorReply {
	out := make([]EmulatorReply, 0, len(msgs))
	for _, m := range msgs {
		if m.Card == nil {
			out = append(out, EmulatorReply{Type: "text", Text: m.Text})
			continue
		}
		card := &EmulatorCard{
			Title:    m.Card.Title,
			Subtitle: m.Card.Subtitle,
			ImageURL: m.Card.ImageURL,
			Media:    m.Card.MediaURLs,
		}
		for _, b := range m.Card.Buttons {
			card.Buttons = append(card.Buttons, EmulatorButton{Label: b.Label, URL: b.URL})
		}
		out = append(out, EmulatorReply{Type: "card", Card: card})
	}
	return out
}
