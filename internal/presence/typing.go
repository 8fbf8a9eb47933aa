package presence

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/gopresence/internal/clock"
)

// DefaultTypingTimeout is how long a typing signal stays active without a
// new keystroke. Clients expire their indicator after the same duration.
const DefaultTypingTimeout = 3000 * time.Millisecond

type typingKey struct {
	sender    string
	recipient string
}

type typingEntry struct {
	timer      clock.Timer
	generation uint64
}

// TypingCoordinator collapses bursts of typing events into one start notice
// per (sender, recipient) pair and quiet period.
type TypingCoordinator struct {
	log      *slog.Logger
	registry *Registry
	clock    clock.Clock
	timeout  time.Duration

	mu         sync.Mutex
	entries    map[typingKey]*typingEntry
	generation uint64
}

func NewTypingCoordinator(log *slog.Logger, registry *Registry, clk clock.Clock, timeout time.Duration) *TypingCoordinator {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &TypingCoordinator{
		log:      log,
		registry: registry,
		clock:    clk,
		timeout:  timeout,
		entries:  make(map[typingKey]*typingEntry),
	}
}

// Typing records a typing event from sender, addressed to recipient or to
// everyone when recipient is empty. It returns true when a start notice was
// emitted, false when the event only pushed back a pending deadline.
func (t *TypingCoordinator) Typing(sender, recipient string) bool {
	key := typingKey{sender: NormalizeHandle(sender), recipient: NormalizeHandle(recipient)}

	t.mu.Lock()
	entry, pending := t.entries[key]
	if pending {
		entry.timer.Stop()
	} else {
		entry = &typingEntry{}
		t.entries[key] = entry
	}
	t.arm(key, entry)
	t.mu.Unlock()

	if pending {
		return false
	}
	t.notify(key)
	return true
}

// arm must be called with t.mu held.
func (t *TypingCoordinator) arm(key typingKey, entry *typingEntry) {
	t.generation++
	generation := t.generation
	entry.generation = generation
	entry.timer = t.clock.AfterFunc(t.timeout, func() {
		t.expire(key, generation)
	})
}

func (t *TypingCoordinator) expire(key typingKey, generation uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, pending := t.entries[key]
	if !pending || entry.generation != generation {
		return
	}
	delete(t.entries, key)
}

func (t *TypingCoordinator) notify(key typingKey) {
	frame, err := Envelope{
		Type: KindTyping,
		Data: TypingNotice{User: key.sender, Recipient: key.recipient},
	}.Encode()
	if err != nil {
		t.log.Error("Unable to encode typing frame", "error", err)
		return
	}

	if key.recipient == "" {
		sender, _ := t.registry.Lookup(key.sender)
		deliver(t.log, t.registry.Sessions(), frame, sender)
		return
	}

	target, live := t.registry.Lookup(key.recipient)
	if !live {
		t.log.Debug("Typing recipient offline", "user", key.sender, "recipient", key.recipient)
		return
	}
	deliver(t.log, []*Session{target}, frame, nil)
}

// Forget cancels every pending deadline started by sender.
func (t *TypingCoordinator) Forget(sender string) {
	handle := NormalizeHandle(sender)

	t.mu.Lock()
	defer t.mu.Unlock()

	for key, entry := range t.entries {
		if key.sender != handle {
			continue
		}
		entry.timer.Stop()
		delete(t.entries, key)
	}
}

// Active reports whether a typing deadline is pending for the pair.
func (t *TypingCoordinator) Active(sender, recipient string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, pending := t.entries[typingKey{sender: NormalizeHandle(sender), recipient: NormalizeHandle(recipient)}]
	return pending
}

// Len returns the number of pending typing deadlines.
func (t *TypingCoordinator) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
