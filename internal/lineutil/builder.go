// Package lineutil builds LINE Messaging API messages from bot replies.
package lineutil

import (
	"github.com/kewalaka/muffinbot/internal/stringutil"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Action is an alias for the LINE SDK action interface for convenience.
type Action = messaging_api.ActionInterface

// NewTextMessage creates a text message without sender information.
// LINE API limits: max 5000 characters per text message
func NewTextMessage(text string) *messaging_api.TextMessage {
	return &messaging_api.TextMessage{
		Text: stringutil.Ellipsize(text, MaxTextMessageLength),
	}
}

// ButtonsTemplate describes a buttons template message. Only Text is
// required by LINE; the rest is optional.
type ButtonsTemplate struct {
	AltText       string
	Title         string
	Text          string
	ThumbnailURL  string
	DefaultAction Action // Tapping the image, title or text area
	Actions       []Action
}

// NewButtonsTemplate creates a buttons template message, truncating every
// field to its LINE limit.
// LINE API limits: max 4 actions, text max 160 chars (no image) or 60 chars (with image)
func NewButtonsTemplate(b ButtonsTemplate) *messaging_api.TemplateMessage {
	actions := b.Actions
	if len(actions) > MaxTemplateActionCount {
		actions = actions[:MaxTemplateActionCount]
	}

	maxTextLen := MaxTemplateTextNoImage
	if b.ThumbnailURL != "" {
		maxTextLen = MaxTemplateTextWithImage
	}

	template := &messaging_api.ButtonsTemplate{
		Text:    stringutil.Ellipsize(b.Text, maxTextLen),
		Actions: actions,
	}
	if b.Title != "" {
		template.Title = stringutil.Ellipsize(b.Title, MaxTemplateTitleLength)
	}
	if b.ThumbnailURL != "" {
		template.ThumbnailImageUrl = b.ThumbnailURL
	}
	if b.DefaultAction != nil {
		template.DefaultAction = b.DefaultAction
	}

	return &messaging_api.TemplateMessage{
		AltText:  stringutil.Ellipsize(b.AltText, MaxAltTextLength),
		Template: template,
	}
}

// NewURIAction creates a URI action that opens a URL when clicked.
// The label is displayed on the button, and uri is the URL to open.
func NewURIAction(label, uri string) Action {
	return &messaging_api.UriAction{
		Label: stringutil.Ellipsize(label, MaxActionLabelLength),
		Uri:   uri,
	}
}

// SetSender sets the Sender field on a message.
// Returns the same message for method chaining.
// Supports: TextMessage, TemplateMessage
func SetSender(msg messaging_api.MessageInterface, sender *messaging_api.Sender) messaging_api.MessageInterface {
	if sender == nil {
		return msg
	}

	switch m := msg.(type) {
	case *messaging_api.TextMessage:
		m.Sender = sender
	case *messaging_api.TemplateMessage:
		m.Sender = sender
	}

	return msg
}

