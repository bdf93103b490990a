package dialog

// Reply texts. Formats take the user's text or name as their only argument.
const (
	// HelpText introduces the bot. It starts with a newline so it reads as a
	// second paragraph when appended to another line.
	HelpText = "\nI'm Muffin, the motel catbot (meiow)!  I can help you with checking availability & answering questions about Timandra Motel facilities."

	IntroText         = "Hello, I'm Muffin, the motel catbot (meiow)!"
	NamePromptText    = "Before we get started, please tell me your name?"
	GreetingFormat    = "Hello %s, how can I help you today?"
	HelpEchoFormat    = "You reached the Help intent. You said '%s'."
	DefaultFormat     = "Sorry I didn't understand, I'm not too bright, but I am learning. You said '%s'."
	ArrivalFormat     = "It looks like you want to arrive %s."
	ArrivalDateFormat = "That's %s."
	ClarifyCheckIn    = "When would you like to check in? For example \"next Friday\" or \"12 March\"."
	ApologyText       = "Sorry, I'm having trouble remembering our conversation right now. Please try again in a moment."
)

// Things to do card.
const (
	ThingsToDoTitle    = "Things to do in New Plymouth"
	ThingsToDoImageURL = "https://yt3.ggpht.com/a-/ACSszfEWC30Ls9u-t-wzz3BwnRlJGOPX9nu1MhHftQ=s88-mo-c-c0xffffffff-rj-k-no"
	ThingsToDoMediaURL = "https://youtu.be/AscXhaEaRvA"
	ThingsToDoWatchURL = "https://www.youtube.com/watch?v=AscXhaEaRvA"
	ThingsToDoButton   = "Watch on Youtube"
)

// MaxNameRunes caps a captured user name.
const MaxNameRunes = 64
