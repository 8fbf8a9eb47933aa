// Package storage implements the durable store on top of BadgerDB.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/Tyrowin/gopresence/internal/presence"
)

const (
	userPrefix    = "user:"
	publicPrefix  = "msg:pub:"
	privatePrefix = "msg:dm:"
)

// BadgerStore persists users and messages in BadgerDB.
//
// Messages are keyed with a 19-digit zero padded timestamp so that a prefix
// scan returns them in chronological order; the message id breaks ties
// between messages stored in the same nanosecond.
//
//	user:{handle}
//	msg:pub:{unix_nano}:{id}
//	msg:dm:{len(a)}:{a}:{len(b)}:{b}:{unix_nano}:{id}   with a <= b
type BadgerStore struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

var _ presence.Store = (*BadgerStore)(nil)

// Open opens the database at path. An empty path opens an in-memory database.
func Open(path string, log *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return New(db, log), nil
}

// New wraps an already opened database.
func New(db *badger.DB, log *slog.Logger) *BadgerStore {
	return &BadgerStore{db: db, log: log, now: time.Now}
}

func (s *BadgerStore) Close() error {
	s.log.Info("Closing BadgerDB...")
	return s.db.Close()
}

// UpsertUserStatus keeps the existing record when there is one and only
// updates its status.
func (s *BadgerStore) UpsertUserStatus(ctx context.Context, handle string, status presence.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := []byte(userPrefix + handle)

	return s.db.Update(func(txn *badger.Txn) error {
		user, _, err := getUser(txn, key)
		if err != nil {
			return err
		}
		user.Username = handle
		user.Status = status
		user.UpdatedAt = s.now().UTC()

		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
		return txn.Set(key, data)
	})
}

func (s *BadgerStore) FindUser(ctx context.Context, handle string) (presence.User, bool, error) {
	if err := ctx.Err(); err != nil {
		return presence.User{}, false, err
	}
	var (
		user  presence.User
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		user, found, err = getUser(txn, []byte(userPrefix+handle))
		return err
	})
	return user, found, err
}

func getUser(txn *badger.Txn, key []byte) (presence.User, bool, error) {
	var user presence.User
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return user, false, nil
	}
	if err != nil {
		return user, false, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &user)
	})
	return user, err == nil, err
}

// Users returns every user record ordered by handle.
func (s *BadgerStore) Users(ctx context.Context) ([]presence.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var users []presence.User
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, []byte(userPrefix), func(val []byte) error {
			var user presence.User
			if err := json.Unmarshal(val, &user); err != nil {
				return err
			}
			users = append(users, user)
			return nil
		})
	})
	return users, err
}

func (s *BadgerStore) AppendMessage(ctx context.Context, message presence.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = s.now().UTC()
	}

	data, err := json.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), data)
	})
	if err != nil {
		return "", err
	}
	return message.ID, nil
}

// FindConversation returns the private messages between a and b in either
// direction, oldest first. Public messages and other peers are never read.
func (s *BadgerStore) FindConversation(ctx context.Context, a, b string) ([]presence.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var messages []presence.Message
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, []byte(conversationPrefix(a, b)), func(val []byte) error {
			var message presence.Message
			if err := json.Unmarshal(val, &message); err != nil {
				return err
			}
			messages = append(messages, message)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// RecentPublic returns the latest limit public messages, oldest first.
func (s *BadgerStore) RecentPublic(ctx context.Context, limit int) ([]presence.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	var messages []presence.Message
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(publicPrefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append(slices.Clone(prefix), 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(prefix) && len(messages) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var message presence.Message
				if err := json.Unmarshal(val, &message); err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

func scan(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

func messageKey(message presence.Message) []byte {
	stamp := fmt.Sprintf("%019d:%s", message.Timestamp.UnixNano(), message.ID)
	if !message.IsPrivate() {
		return []byte(publicPrefix + stamp)
	}
	return []byte(conversationPrefix(message.User, message.Recipient) + stamp)
}

// conversationPrefix is symmetric in a and b. Both handles are length
// prefixed so that no conversation prefix is a prefix of another one.
func conversationPrefix(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%s%d:%s:%d:%s:", privatePrefix, len(a), a, len(b), b)
}
