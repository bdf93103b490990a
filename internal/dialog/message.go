package dialog

// Message is one outbound reply. Exactly one of Text or Card is set.
// Transports decide how to render it; messages are never persisted.
type Message struct {
	Text string
	Card *Card
}

// Card is a rich media reply: a title, optional subtitle and image, media
// links and open-URL buttons.
type Card struct {
	Title     string
	Subtitle  string
	ImageURL  string
	MediaURLs []string
	Buttons   []Button
}

// Button opens URL when tapped.
type Button struct {
	Label string
	URL   string
}

// Text returns a plain text message.
func Text(s string) Message {
	return Message{Text: s}
}

// IsCard reports whether m carries a card.
func (m Message) IsCard() bool {
	return m.Card != nil
}

// ThingsToDoCard returns the New Plymouth video card.
func ThingsToDoCard() *Card {
	return &Card{
		Title:     ThingsToDoTitle,
		ImageURL:  ThingsToDoImageURL,
		MediaURLs: []string{ThingsToDoMediaURL},
		Buttons: []Button{
			{Label: ThingsToDoButton, URL: ThingsToDoWatchURL},
		},
	}
}
