//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks
package presence

import (
	"context"
	"time"
)

// User is the durable record kept for every handle that ever joined.
type User struct {
	Username  string    `json:"username"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the durable side of the relay. The router never calls it while
// holding the registry lock.
type Store interface {
	// UpsertUserStatus creates the user record if needed and sets its status.
	UpsertUserStatus(ctx context.Context, handle string, status Status) error
	// FindUser returns the user record for handle, if one exists.
	FindUser(ctx context.Context, handle string) (User, bool, error)
	// AppendMessage persists message and returns its id.
	AppendMessage(ctx context.Context, message Message) (string, error)
	// FindConversation returns every private message exchanged between a and b,
	// oldest first.
	FindConversation(ctx context.Context, a, b string) ([]Message, error)
	// RecentPublic returns up to limit of the latest public messages, oldest first.
	RecentPublic(ctx context.Context, limit int) ([]Message, error)
}
