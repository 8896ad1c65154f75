package tablechat

import "time"

// Message types understood by the table server.
const (
	TypeGlobal  = "CHAT_GLOBAL"
	TypePrivate = "CHAT_PRIVATE"
	TypeEvent   = "EVENT"
)

// Well-known message keys. Anything else the server adds is carried untouched.
const (
	KeyID         = "id"
	KeyRoomID     = "game_id"
	KeySenderID   = "sender_id"
	KeySenderName = "sender_name"
	KeyContent    = "content"
	KeyType       = "type"
	KeyTargetID   = "target_id"
	KeyCreatedAt  = "created_at"
)

// Message is a chat payload as an unordered bag of fields.
type Message map[string]any

// NewMessage builds an outbound message for roomID.
func NewMessage(roomID, content, msgType, senderName string) Message {
	return Message{
		KeyRoomID:     roomID,
		KeyContent:    content,
		KeyType:       msgType,
		KeySenderName: senderName,
	}
}

func (m Message) str(key string) string {
	s, _ := m[key].(string)
	return s
}

func (m Message) ID() string         { return m.str(KeyID) }
func (m Message) RoomID() string     { return m.str(KeyRoomID) }
func (m Message) Content() string    { return m.str(KeyContent) }
func (m Message) Type() string       { return m.str(KeyType) }
func (m Message) SenderID() string   { return m.str(KeySenderID) }
func (m Message) SenderName() string { return m.str(KeySenderName) }
func (m Message) TargetID() string   { return m.str(KeyTargetID) }

// CreatedAt parses the server timestamp. The zero time is returned when absent.
func (m Message) CreatedAt() time.Time {
	t, err := time.Parse(time.RFC3339Nano, m.str(KeyCreatedAt))
	if err != nil {
		return time.Time{}
	}
	return t
}

// WithTarget returns a copy addressed privately to userID.
func (m Message) WithTarget(userID string) Message {
	out := m.Clone()
	out[KeyTargetID] = userID
	out[KeyType] = TypePrivate
	return out
}

// Clone returns a shallow copy.
func (m Message) Clone() Message {
	out := make(Message, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
