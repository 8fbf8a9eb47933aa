package client

import (
	"sort"
	"sync"
	"time"

	"github.com/Tyrowin/gopresence/internal/clock"
	"github.com/Tyrowin/gopresence/internal/presence"
)

// Indicators is the client-side half of typing notifications. The relay
// never sends a stop notice: an indicator disappears when no new notice for
// the same (user, recipient) arrives within the timeout.
type Indicators struct {
	clock    clock.Clock
	timeout  time.Duration
	onChange func()

	mu      sync.Mutex
	entries map[presence.TypingNotice]*indicator
}

type indicator struct {
	timer      clock.Timer
	generation uint64
}

func NewIndicators(clk clock.Clock, timeout time.Duration, onChange func()) *Indicators {
	if clk == nil {
		clk = clock.Real()
	}
	if timeout <= 0 {
		timeout = presence.DefaultTypingTimeout
	}
	if onChange == nil {
		onChange = func() {}
	}
	return &Indicators{
		clock:    clk,
		timeout:  timeout,
		onChange: onChange,
		entries:  make(map[presence.TypingNotice]*indicator),
	}
}

// Observe shows or refreshes the indicator for notice.
func (ind *Indicators) Observe(notice presence.TypingNotice) {
	ind.mu.Lock()
	entry, shown := ind.entries[notice]
	if shown {
		entry.timer.Stop()
	} else {
		entry = &indicator{}
		ind.entries[notice] = entry
	}
	entry.generation++
	generation := entry.generation
	entry.timer = ind.clock.AfterFunc(ind.timeout, func() {
		ind.expire(notice, generation)
	})
	ind.mu.Unlock()

	if !shown {
		ind.onChange()
	}
}

func (ind *Indicators) expire(notice presence.TypingNotice, generation uint64) {
	ind.mu.Lock()
	entry, shown := ind.entries[notice]
	if !shown || entry.generation != generation {
		ind.mu.Unlock()
		return
	}
	delete(ind.entries, notice)
	ind.mu.Unlock()

	ind.onChange()
}

// Active returns the indicators currently shown, ordered by user.
func (ind *Indicators) Active() []presence.TypingNotice {
	ind.mu.Lock()
	defer ind.mu.Unlock()

	active := make([]presence.TypingNotice, 0, len(ind.entries))
	for notice := range ind.entries {
		active = append(active, notice)
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].User == active[j].User {
			return active[i].Recipient < active[j].Recipient
		}
		return active[i].User < active[j].User
	})
	return active
}
