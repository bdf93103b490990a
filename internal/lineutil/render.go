package lineutil

import (
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/kewalaka/muffinbot/internal/dialog"
)

// OverflowNotice replaces the last message when a reply has more messages
// than LINE accepts.
const OverflowNotice = "There's more I wanted to say, but that's all I can send at once. Ask me again for the rest."

// Render converts bot replies into LINE messages with the given sender.
// When replies exceed maxMessages, the excess is dropped and the last slot
// carries OverflowNotice.
func Render(replies []dialog.Message, sender *messaging_api.Sender, maxMessages int) []messaging_api.MessageInterface {
	if maxMessages <= 0 {
		return nil
	}

	overflow := len(replies) > maxMessages
	if overflow {
		replies = replies[:maxMessages-1]
	}

	out := make([]messaging_api.MessageInterface, 0, len(replies)+1)
	for _, r := range replies {
		msg := RenderMessage(r)
		if msg == nil {
			continue
		}
		out = append(out, SetSender(msg, sender))
	}
	if overflow {
		out = append(out, NewTextMessageWithSender(OverflowNotice, sender))
	}
	return out
}

// RenderMessage converts one reply. Empty replies yield nil.
func RenderMessage(m dialog.Message) messaging_api.MessageInterface {
	if m.Card != nil {
		return RenderCard(m.Card)
	}
	if strings.TrimSpace(m.Text) == "" {
		return nil
	}
	return NewTextMessage(m.Text)
}

// RenderCard renders a card as a buttons template: the image becomes the
// thumbnail, tapping the card opens the first media URL and each button
// becomes a URI action.
func RenderCard(c *dialog.Card) *messaging_api.TemplateMessage {
	text := c.Subtitle
	var defaultAction Action
	if len(c.MediaURLs) > 0 {
		defaultAction = NewURIAction(c.Title, c.MediaURLs[0])
		if text == "" {
			text = c.MediaURLs[0]
		}
	}
	if text == "" {
		text = c.Title
	}

	actions := make([]Action, 0, len(c.Buttons))
	for _, b := range c.Buttons {
		if len(b.URL) > MaxURILength {
			continue
		}
		actions = append(actions, NewURIAction(b.Label, b.URL))
	}

	return NewButtonsTemplate(ButtonsTemplate{
		AltText:       c.Title,
		Title:         c.Title,
		Text:          text,
		ThumbnailURL:  c.ImageURL,
		DefaultAction: defaultAction,
		Actions:       actions,
	})
}
