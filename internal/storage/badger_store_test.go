package storage

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gopresence/internal/presence"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := Open("", logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func at(seconds int) time.Time {
	return time.Date(2024, 5, 1, 10, 0, seconds, 0, time.UTC)
}

func TestBadgerStore_UpsertAndFindUser(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	_, found, err := store.FindUser(ctx, "alice")
	req.NoError(err)
	req.False(found)

	store.now = func() time.Time { return at(1) }
	req.NoError(store.UpsertUserStatus(ctx, "alice", presence.StatusOnline))

	store.now = func() time.Time { return at(2) }
	req.NoError(store.UpsertUserStatus(ctx, "alice", presence.StatusOffline))

	user, found, err := store.FindUser(ctx, "alice")
	req.NoError(err)
	req.True(found)
	req.Equal("alice", user.Username)
	req.Equal(presence.StatusOffline, user.Status)
	req.True(user.UpdatedAt.Equal(at(2)))

	req.NoError(store.UpsertUserStatus(ctx, "bob", presence.StatusAway))
	users, err := store.Users(ctx)
	req.NoError(err)
	req.Len(users, 2)
	req.Equal("alice", users[0].Username)
	req.Equal("bob", users[1].Username)
}

func TestBadgerStore_AppendMessageAssignsIDAndTimestamp(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)
	store.now = func() time.Time { return at(30) }

	id, err := store.AppendMessage(ctx, presence.Message{User: "alice", Text: "hello"})
	req.NoError(err)
	req.NotEmpty(id)

	messages, err := store.RecentPublic(ctx, 10)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal(id, messages[0].ID)
	req.True(messages[0].Timestamp.Equal(at(30)))

	id, err = store.AppendMessage(ctx, presence.Message{ID: "fixed", User: "alice", Text: "again", Timestamp: at(31)})
	req.NoError(err)
	req.Equal("fixed", id)
}

func TestBadgerStore_FindConversation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	messages := []presence.Message{
		{ID: "m3", User: "alice", Recipient: "bob", Text: "third", Timestamp: at(3)},
		{ID: "m1", User: "alice", Recipient: "bob", Text: "first", Timestamp: at(1)},
		{ID: "p1", User: "alice", Text: "public", Timestamp: at(2)},
		{ID: "m2", User: "bob", Recipient: "alice", Text: "second", Timestamp: at(2)},
		{ID: "x1", User: "alice", Recipient: "carol", Text: "other peer", Timestamp: at(2)},
		{ID: "x2", User: "al", Recipient: "icebob", Text: "prefix trap", Timestamp: at(2)},
	}
	for _, message := range messages {
		_, err := store.AppendMessage(ctx, message)
		req.NoError(err)
	}

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		got, err := store.FindConversation(ctx, pair[0], pair[1])
		req.NoError(err)
		ids := make([]string, 0, len(got))
		for _, message := range got {
			ids = append(ids, message.ID)
		}
		req.Equal([]string{"m1", "m2", "m3"}, ids, "pair %v", pair)
	}

	got, err := store.FindConversation(ctx, "alice", "nobody")
	req.NoError(err)
	req.Empty(got)
}

func TestBadgerStore_RecentPublic(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	for i := 1; i <= 5; i++ {
		_, err := store.AppendMessage(ctx, presence.Message{
			ID:        fmt.Sprintf("p%d", i),
			User:      "alice",
			Text:      fmt.Sprintf("message %d", i),
			Timestamp: at(i),
		})
		req.NoError(err)
	}
	_, err := store.AppendMessage(ctx, presence.Message{ID: "dm", User: "alice", Recipient: "bob", Text: "private", Timestamp: at(9)})
	req.NoError(err)

	recent, err := store.RecentPublic(ctx, 3)
	req.NoError(err)
	req.Len(recent, 3)
	req.Equal("p3", recent[0].ID)
	req.Equal("p4", recent[1].ID)
	req.Equal("p5", recent[2].ID)

	all, err := store.RecentPublic(ctx, 100)
	req.NoError(err)
	req.Len(all, 5)

	none, err := store.RecentPublic(ctx, 0)
	req.NoError(err)
	req.Empty(none)
}

func TestBadgerStore_CancelledContext(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req.ErrorIs(store.UpsertUserStatus(ctx, "alice", presence.StatusOnline), context.Canceled)
	_, err := store.AppendMessage(ctx, presence.Message{User: "alice", Text: "x"})
	req.ErrorIs(err, context.Canceled)
	_, _, err = store.FindUser(ctx, "alice")
	req.ErrorIs(err, context.Canceled)
}

func TestConversationPrefix(t *testing.T) {
	req := require.New(t)

	req.Equal(conversationPrefix("alice", "bob"), conversationPrefix("bob", "alice"))
	req.Equal("msg:dm:5:alice:3:bob:", conversationPrefix("bob", "alice"))
	req.NotEqual(conversationPrefix("al", "icebob"), conversationPrefix("alice", "bob"))
}
