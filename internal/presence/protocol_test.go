package presence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Frame
		wantErr bool
	}{
		{
			name: "join",
			raw:  `{"type":"join","username":"alice"}`,
			want: Frame{Type: KindJoin, Username: "alice"},
		},
		{
			name: "private message",
			raw:  `{"type":"private_message","recipient":"bob","text":"hi"}`,
			want: Frame{Type: KindPrivateMessage, Recipient: "bob", Text: "hi"},
		},
		{
			name: "unknown fields are ignored",
			raw:  `{"type":"typing","user":"alice","extra":42}`,
			want: Frame{Type: KindTyping, User: "alice"},
		},
		{name: "not json", raw: `hello`, wantErr: true},
		{name: "missing type", raw: `{"username":"alice"}`, wantErr: true},
		{name: "wrong field type", raw: `{"type":"join","username":7}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := DecodeFrame([]byte(tt.raw))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedFrame)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, frame)
		})
	}
}

func TestEnvelope_Encode(t *testing.T) {
	req := require.New(t)

	raw, err := errorEnvelope("not joined").Encode()
	req.NoError(err)
	req.JSONEq(`{"type":"error","message":"not joined"}`, string(raw))

	raw, err = usersEnvelope([]Presence{{Username: "alice", Status: StatusAway}}).Encode()
	req.NoError(err)
	req.JSONEq(`{"type":"users","data":[{"username":"alice","status":"away"}]}`, string(raw))
}

func TestFrameError(t *testing.T) {
	req := require.New(t)

	err := replyError("recipient not found", ErrRecipientUnknown)
	req.ErrorIs(err, ErrRecipientUnknown)
	req.Equal("recipient not found: recipient not found", err.Error())
	req.Equal("internal error", replyError("internal error", nil).Error())
}
