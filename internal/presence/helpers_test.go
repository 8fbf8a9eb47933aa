package presence

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recorder is an in-memory Transport that keeps every frame sent to it.
type recorder struct {
	mu      sync.Mutex
	frames  [][]byte
	closed  bool
	sendErr error
}

func (r *recorder) Send(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("closed")
	}
	if r.sendErr != nil {
		return r.sendErr
	}
	r.frames = append(r.frames, append([]byte(nil), frame...))
	return nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

type wireFrame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Recipient string          `json:"recipient"`
	Message   string          `json:"message"`
}

func (r *recorder) received(t *testing.T, kind string) []wireFrame {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []wireFrame
	for _, raw := range r.frames {
		var frame wireFrame
		require.NoError(t, json.Unmarshal(raw, &frame))
		if frame.Type == kind {
			out = append(out, frame)
		}
	}
	return out
}
