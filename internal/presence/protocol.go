package presence

import (
	"encoding/json"
	"fmt"
	"time"
)

// Frame kinds exchanged over the wire.
const (
	KindJoin                = "join"
	KindMessage             = "message"
	KindPrivateMessage      = "private_message"
	KindTyping              = "typing"
	KindChangeStatus        = "change_status"
	KindLoadPrivateMessages = "load_private_messages"

	KindUsers           = "users"
	KindPrivateMessages = "private_messages"
	KindHistory         = "history"
	KindError           = "error"
)

// Frame is an inbound client frame. Only the fields relevant to Type are set.
type Frame struct {
	Type      string `json:"type"`
	Username  string `json:"username,omitempty"`
	Text      string `json:"text,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	User      string `json:"user,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Envelope is an outbound server frame.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Message is a persisted chat message. Recipient is empty for public messages.
type Message struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Recipient string    `json:"recipient,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// IsPrivate reports whether the message is addressed to one recipient.
func (m Message) IsPrivate() bool {
	return m.Recipient != ""
}

// TypingNotice is the payload of an outbound typing frame.
type TypingNotice struct {
	User      string `json:"user"`
	Recipient string `json:"recipient,omitempty"`
}

// DecodeFrame parses one inbound frame.
func DecodeFrame(raw []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if frame.Type == "" {
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return frame, nil
}

// Encode marshals an outbound frame.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func errorEnvelope(text string) Envelope {
	return Envelope{Type: KindError, Message: text}
}

func usersEnvelope(snapshot []Presence) Envelope {
	return Envelope{Type: KindUsers, Data: snapshot}
}
