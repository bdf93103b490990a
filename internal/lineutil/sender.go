package lineutil

import (
	"github.com/kewalaka/muffinbot/internal/stringutil"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// NewSender creates the sender shown on every bot message of one reply, so
// all messages share the same name and avatar. An empty iconURL keeps the
// channel's default icon.
//
// Usage:
//
//	sender := lineutil.NewSender("Muffin", iconURL)
//	msgs := lineutil.Render(replies, sender, 5)
func NewSender(name, iconURL string) *messaging_api.Sender {
	if name == "" && iconURL == "" {
		return nil
	}
	return &messaging_api.Sender{
		Name:    stringutil.Ellipsize(name, MaxSenderNameLength),
		IconUrl: iconURL,
	}
}

// NewTextMessageWithSender creates a text message using a pre-created sender.
// LINE API limits: max 5000 characters per text message
func NewTextMessageWithSender(text string, sender *messaging_api.Sender) *messaging_api.TextMessage {
	msg := NewTextMessage(text)
	msg.Sender = sender
	return msg
}
