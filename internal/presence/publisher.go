package presence

import (
	"log/slog"
	"sync"
)

// Publisher pushes the full registry snapshot to every live session.
// There are no incremental updates: each users frame replaces the previous one.
type Publisher struct {
	log      *slog.Logger
	registry *Registry

	// mu orders publishes so the last users frame a session receives is
	// the latest snapshot. Transport.Send must not block.
	mu sync.Mutex
}

func NewPublisher(log *slog.Logger, registry *Registry) *Publisher {
	return &Publisher{log: log, registry: registry}
}

// Publish sends the current snapshot to all live sessions.
func (p *Publisher) Publish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot, sessions := p.registry.snapshotWithSessions()
	frame, err := usersEnvelope(snapshot).Encode()
	if err != nil {
		p.log.Error("Unable to encode users frame", "error", err)
		return
	}
	delivered := deliver(p.log, sessions, frame, nil)
	p.log.Debug("Presence published", "users", len(snapshot), "delivered", delivered)
}

// deliver sends frame to every session except skip and returns how many
// sends succeeded. Send failures are logged; the disconnect path cleans up.
func deliver(log *slog.Logger, sessions []*Session, frame []byte, skip *Session) int {
	delivered := 0
	for _, session := range sessions {
		if session == skip {
			continue
		}
		if err := session.Send(frame); err != nil {
			log.Warn("Delivery failed", "user", session.Handle(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

func sendEnvelope(log *slog.Logger, session *Session, env Envelope) {
	frame, err := env.Encode()
	if err != nil {
		log.Error("Unable to encode frame", "type", env.Type, "error", err)
		return
	}
	if err := session.Send(frame); err != nil {
		log.Warn("Delivery failed", "user", session.Handle(), "type", env.Type, "error", err)
	}
}
