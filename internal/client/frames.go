package client

import (
	"encoding/json"
	"fmt"

	"github.com/Tyrowin/gopresence/internal/presence"
)

// ServerFrame is an outbound relay frame as seen by a client. Data is kept raw
// and decoded on demand by the typed accessors.
type ServerFrame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Recipient string          `json:"recipient,omitempty"`
	Message   string          `json:"message,omitempty"`
}

func (f ServerFrame) Users() ([]presence.Presence, error) {
	var users []presence.Presence
	return users, f.decode(presence.KindUsers, &users)
}

func (f ServerFrame) ChatMessage() (presence.Message, error) {
	var message presence.Message
	if f.Type != presence.KindMessage && f.Type != presence.KindPrivateMessage {
		return message, fmt.Errorf("frame %q carries no message", f.Type)
	}
	return message, json.Unmarshal(f.Data, &message)
}

// Messages decodes private_messages and history frames.
func (f ServerFrame) Messages() ([]presence.Message, error) {
	var messages []presence.Message
	if f.Type != presence.KindPrivateMessages && f.Type != presence.KindHistory {
		return nil, fmt.Errorf("frame %q carries no message list", f.Type)
	}
	return messages, json.Unmarshal(f.Data, &messages)
}

func (f ServerFrame) Typing() (presence.TypingNotice, error) {
	var notice presence.TypingNotice
	return notice, f.decode(presence.KindTyping, &notice)
}

func (f ServerFrame) decode(kind string, v any) error {
	if f.Type != kind {
		return fmt.Errorf("frame %q is not %q", f.Type, kind)
	}
	return json.Unmarshal(f.Data, v)
}
