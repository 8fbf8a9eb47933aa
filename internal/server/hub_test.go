package server

import (
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestHubStoppedRejectsClients(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	hub := NewHub(log)
	go hub.Run()

	req.NoError(hub.Shutdown(time.Second))

	client := NewClient(nil, hub, nil, "127.0.0.1:0", *NewConfig(), log)
	req.False(hub.Register(client))
	hub.Unregister(client)
	req.Zero(hub.Count())
	req.NoError(client.Close())
}

func TestClientSendAfterClose(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	cfg := *NewConfig()
	cfg.SendBufferSize = 1

	client := NewClient(nil, NewHub(log), nil, "127.0.0.1:0", cfg, log)
	req.NoError(client.Send([]byte(`{"type":"users"}`)))
	req.ErrorIs(client.Send([]byte(`{"type":"users"}`)), errSendBufferFull)

	frame := <-client.send
	req.JSONEq(`{"type":"users"}`, string(frame))

	req.True(client.markClosed())
	req.False(client.markClosed())
	req.ErrorIs(client.Send([]byte(`{}`)), errClientClosed)
}
