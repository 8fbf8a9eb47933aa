package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gopresence/internal/presence"
)

func decodeFrame(t *testing.T, raw string) ServerFrame {
	t.Helper()
	var frame ServerFrame
	require.NoError(t, json.Unmarshal([]byte(raw), &frame))
	return frame
}

func TestServerFrameAccessors(t *testing.T) {
	req := require.New(t)

	users, err := decodeFrame(t, `{"type":"users","data":[{"username":"bob","status":"busy"}]}`).Users()
	req.NoError(err)
	req.Equal([]presence.Presence{{Username: "bob", Status: presence.StatusBusy}}, users)

	message, err := decodeFrame(t, `{"type":"private_message","data":{"id":"1","user":"alice","recipient":"bob","text":"hi","timestamp":"2024-01-01T00:00:00Z"}}`).ChatMessage()
	req.NoError(err)
	req.True(message.IsPrivate())
	req.Equal("hi", message.Text)

	frame := decodeFrame(t, `{"type":"private_messages","recipient":"bob","data":[{"id":"1","user":"alice","recipient":"bob","text":"hi","timestamp":"2024-01-01T00:00:00Z"}]}`)
	messages, err := frame.Messages()
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("bob", frame.Recipient)

	notice, err := decodeFrame(t, `{"type":"typing","data":{"user":"bob","recipient":"alice"}}`).Typing()
	req.NoError(err)
	req.Equal(presence.TypingNotice{User: "bob", Recipient: "alice"}, notice)

	errFrame := decodeFrame(t, `{"type":"error","message":"not joined"}`)
	req.Equal("not joined", errFrame.Message)
	_, err = errFrame.Users()
	req.Error(err)
	_, err = errFrame.ChatMessage()
	req.Error(err)
	_, err = errFrame.Messages()
	req.Error(err)
}
