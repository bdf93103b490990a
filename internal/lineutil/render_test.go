package lineutil

import (
	"strings"
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/kewalaka/muffinbot/internal/dialog"
)

func TestRender_TextWithSender(t *testing.T) {
	t.Parallel()

	sender := NewSender("Muffin", "https://example.com/muffin.png")
	out := Render([]dialog.Message{dialog.Text("hello"), dialog.Text("  ")}, sender, 5)

	if len(out) != 1 {
		t.Fatalf("Render() returned %d messages, want 1 (blank dropped)", len(out))
	}
	msg, ok := out[0].(*messaging_api.TextMessage)
	if !ok {
		t.Fatalf("message type = %T", out[0])
	}
	if msg.Text != "hello" || msg.Sender != sender {
		t.Errorf("message = %+v", msg)
	}
}

func TestRender_Overflow(t *testing.T) {
	t.Parallel()

	replies := make([]dialog.Message, 7)
	for i := range replies {
		replies[i] = dialog.Text("line")
	}
	out := Render(replies, nil, 5)

	if len(out) != 5 {
		t.Fatalf("Render() returned %d messages, want 5", len(out))
	}
	last := out[4].(*messaging_api.TextMessage)
	if last.Text != OverflowNotice {
		t.Errorf("last message = %q, want overflow notice", last.Text)
	}
}

func TestRender_ExactlyMax(t *testing.T) {
	t.Parallel()

	replies := []dialog.Message{dialog.Text("a"), dialog.Text("b")}
	out := Render(replies, nil, 2)
	if len(out) != 2 {
		t.Fatalf("Render() returned %d messages, want 2", len(out))
	}
	if out[1].(*messaging_api.TextMessage).Text != "b" {
		t.Error("no overflow notice expected when replies fit")
	}
}

func TestRenderCard_ThingsToDo(t *testing.T) {
	t.Parallel()

	msg := RenderCard(dialog.ThingsToDoCard())
	if msg.AltText != dialog.ThingsToDoTitle {
		t.Errorf("alt text = %q", msg.AltText)
	}

	tpl, ok := msg.Template.(*messaging_api.ButtonsTemplate)
	if !ok {
		t.Fatalf("template type = %T", msg.Template)
	}
	if tpl.Title != dialog.ThingsToDoTitle {
		t.Errorf("title = %q", tpl.Title)
	}
	if tpl.ThumbnailImageUrl != dialog.ThingsToDoImageURL {
		t.Errorf("thumbnail = %q", tpl.ThumbnailImageUrl)
	}
	if tpl.Text != dialog.ThingsToDoMediaURL {
		t.Errorf("text = %q, want media URL", tpl.Text)
	}

	def, ok := tpl.DefaultAction.(*messaging_api.UriAction)
	if !ok || def.Uri != dialog.ThingsToDoMediaURL {
		t.Errorf("default action = %+v", tpl.DefaultAction)
	}

	if len(tpl.Actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(tpl.Actions))
	}
	btn := tpl.Actions[0].(*messaging_api.UriAction)
	if btn.Label != "Watch on Youtube" || btn.Uri != dialog.ThingsToDoWatchURL {
		t.Errorf("button = %+v", btn)
	}
}

func TestRenderCard_Limits(t *testing.T) {
	t.Parallel()

	card := &dialog.Card{
		Title:    strings.Repeat("T", 60),
		Subtitle: strings.Repeat("s", 100),
		ImageURL: "https://example.com/a.png",
	}
	for range 6 {
		card.Buttons = append(card.Buttons, dialog.Button{Label: "Open", URL: "https://example.com"})
	}

	tpl := RenderCard(card).Template.(*messaging_api.ButtonsTemplate)
	if len(tpl.Actions) != MaxTemplateActionCount {
		t.Errorf("got %d actions, want %d", len(tpl.Actions), MaxTemplateActionCount)
	}
	if n := len([]rune(tpl.Title)); n != MaxTemplateTitleLength {
		t.Errorf("title has %d runes, want %d", n, MaxTemplateTitleLength)
	}
	if n := len([]rune(tpl.Text)); n != MaxTemplateTextWithImage {
		t.Errorf("text has %d runes, want %d", n, MaxTemplateTextWithImage)
	}
	if tpl.DefaultAction != nil {
		t.Error("card without media should have no default action")
	}
}

func TestRenderCard_SkipsLongURL(t *testing.T) {
	t.Parallel()

	card := &dialog.Card{
		Title: "Links",
		Buttons: []dialog.Button{
			{Label: "Too long", URL: "https://example.com/" + strings.Repeat("x", MaxURILength)},
			{Label: "Fine", URL: "https://example.com"},
		},
	}
	tpl := RenderCard(card).Template.(*messaging_api.ButtonsTemplate)
	if len(tpl.Actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(tpl.Actions))
	}
	if btn := tpl.Actions[0].(*messaging_api.UriAction); btn.Label != "Fine" {
		t.Errorf("kept action = %q, want Fine", btn.Label)
	}
}

func TestNewSender(t *testing.T) {
	t.Parallel()

	if NewSender("", "") != nil {
		t.Error("empty sender should be nil")
	}
	s := NewSender("Muffin the motel catbot of Timandra", "")
	if n := len([]rune(s.Name)); n != MaxSenderNameLength {
		t.Errorf("sender name has %d runes, want %d", n, MaxSenderNameLength)
	}
}
