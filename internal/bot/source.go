package bot

import "github.com/line/line-bot-sdk-go/v8/linebot/webhook"

// ChatKind is the type of LINE conversation an event came from.
type ChatKind string

const (
	ChatUnknown  ChatKind = ""
	ChatPersonal ChatKind = "user"
	ChatGroup    ChatKind = "group"
	ChatRoom     ChatKind = "room"
)

// Chat identifies the conversation and sender of an event.
type Chat struct {
	Key    string // Session key: the user, group or room ID
	UserID string // Empty when the sender did not consent to sharing it
	Kind   ChatKind
}

// ChatOf reads the conversation from a LINE event source. Unknown or nil
// sources give the zero Chat.
func ChatOf(source webhook.SourceInterface) Chat {
	switch s := source.(type) {
	case webhook.UserSource:
		return Chat{Key: s.UserId, UserID: s.UserId, Kind: ChatPersonal}
	case webhook.GroupSource:
		return Chat{Key: s.GroupId, UserID: s.UserId, Kind: ChatGroup}
	case webhook.RoomSource:
		return Chat{Key: s.RoomId, UserID: s.UserId, Kind: ChatRoom}
	}
	return Chat{}
}

// Personal reports whether the chat is one-to-one with the bot.
func (c Chat) Personal() bool { return c.Kind == ChatPersonal }
