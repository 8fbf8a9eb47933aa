package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Tyrowin/gopresence/internal/clock"
)

// DefaultHistoryLimit is the number of public messages replayed to a new session.
const DefaultHistoryLimit = 50

// Censor rewrites message text before it is persisted.
type Censor interface {
	Censor(text string) string
}

// Conn is the router's view of one client connection. The transport layer
// must hand frames of a single Conn to the router one at a time, in arrival
// order, and call Disconnect once when the connection ends.
type Conn struct {
	transport Transport
	addr      string
	session   *Session
}

func NewConn(transport Transport, addr string) *Conn {
	return &Conn{transport: transport, addr: addr}
}

// Session returns the session bound by a successful join, or nil.
func (c *Conn) Session() *Session {
	return c.session
}

// Router applies the protocol state machine to inbound frames.
type Router struct {
	log          *slog.Logger
	registry     *Registry
	store        Store
	publisher    *Publisher
	typing       *TypingCoordinator
	clock        clock.Clock
	censor       Censor
	historyLimit int
}

// RouterOption customises a Router.
type RouterOption func(*Router)

func WithClock(clk clock.Clock) RouterOption {
	return func(r *Router) {
		r.clock = clk
	}
}

func WithCensor(censor Censor) RouterOption {
	return func(r *Router) {
		r.censor = censor
	}
}

// WithHistoryLimit sets how many public messages a new session receives.
// Zero disables the replay.
func WithHistoryLimit(limit int) RouterOption {
	return func(r *Router) {
		r.historyLimit = limit
	}
}

func NewRouter(
	log *slog.Logger,
	registry *Registry,
	store Store,
	publisher *Publisher,
	typing *TypingCoordinator,
	opts ...RouterOption,
) *Router {
	r := &Router{
		log:          log,
		registry:     registry,
		store:        store,
		publisher:    publisher,
		typing:       typing,
		clock:        clock.Real(),
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle processes one raw inbound frame. Every failure is answered with an
// error frame to conn only; nothing propagates to other sessions.
func (r *Router) Handle(ctx context.Context, conn *Conn, raw []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Recovered from panic while handling frame", "addr", conn.addr, "panic", rec)
			r.reply(conn, errorEnvelope("internal error"))
		}
	}()

	frame, err := DecodeFrame(raw)
	if err != nil {
		r.log.Warn("Invalid frame", "addr", conn.addr, "error", err)
		r.reply(conn, errorEnvelope("internal error"))
		return
	}

	if err := r.dispatch(ctx, conn, frame); err != nil {
		r.fail(conn, frame, err)
	}
}

func (r *Router) dispatch(ctx context.Context, conn *Conn, frame Frame) error {
	switch frame.Type {
	case KindJoin:
		return r.join(ctx, conn, frame)
	case KindMessage:
		return r.publicMessage(ctx, conn, frame)
	case KindPrivateMessage:
		return r.privateMessage(ctx, conn, frame)
	case KindLoadPrivateMessages:
		return r.loadPrivateMessages(ctx, conn, frame)
	case KindTyping:
		r.typingEvent(conn, frame)
		return nil
	case KindChangeStatus:
		return r.changeStatus(ctx, conn, frame)
	default:
		return replyError("internal error", fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, frame.Type))
	}
}

func (r *Router) fail(conn *Conn, frame Frame, err error) {
	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		frameErr = replyError("internal error", err)
	}
	r.log.Info("Frame rejected", "addr", conn.addr, "type", frame.Type, "reason", frameErr.Error())
	r.reply(conn, errorEnvelope(frameErr.Reply))
}

func (r *Router) reply(conn *Conn, env Envelope) {
	frame, err := env.Encode()
	if err != nil {
		r.log.Error("Unable to encode reply", "type", env.Type, "error", err)
		return
	}
	if err := conn.transport.Send(frame); err != nil {
		r.log.Warn("Reply failed", "addr", conn.addr, "type", env.Type, "error", err)
	}
}

func (r *Router) requireSession(conn *Conn) (*Session, error) {
	if conn.session == nil {
		return nil, replyError("not joined", ErrNotJoined)
	}
	return conn.session, nil
}

func (r *Router) join(ctx context.Context, conn *Conn, frame Frame) error {
	if conn.session != nil {
		return replyError("already joined", ErrHandleTaken)
	}
	if strings.TrimSpace(frame.Username) == "" {
		return replyError("username is required", ErrHandleInvalid)
	}

	session, err := r.registry.Join(frame.Username, StatusOnline, conn.transport)
	switch {
	case errors.Is(err, ErrHandleTaken):
		return replyError("username already taken", err)
	case errors.Is(err, ErrHandleInvalid):
		return replyError("invalid username", err)
	case err != nil:
		return err
	}

	if err := r.store.UpsertUserStatus(ctx, session.Handle(), StatusOnline); err != nil {
		r.registry.LeaveSession(session)
		return replyError("internal error", fmt.Errorf("%w: upsert %s: %v", ErrStoreFailure, session.Handle(), err))
	}

	conn.session = session
	r.log.Info("User joined", "user", session.Handle(), "addr", conn.addr, "online", r.registry.Len())
	r.publisher.Publish()
	r.sendHistory(ctx, session)
	return nil
}

func (r *Router) sendHistory(ctx context.Context, session *Session) {
	if r.historyLimit <= 0 {
		return
	}
	messages, err := r.store.RecentPublic(ctx, r.historyLimit)
	if err != nil {
		r.log.Warn("Unable to load public history", "user", session.Handle(), "error", err)
		return
	}
	if messages == nil {
		messages = []Message{}
	}
	sendEnvelope(r.log, session, Envelope{Type: KindHistory, Data: messages})
}

func (r *Router) newMessage(sender, recipient, text string) Message {
	if r.censor != nil {
		text = r.censor.Censor(text)
	}
	return Message{
		ID:        uuid.NewString(),
		User:      sender,
		Recipient: recipient,
		Text:      text,
		Timestamp: r.clock.Now().UTC(),
	}
}

// persist appends message to the store. Nothing is delivered unless this succeeds.
func (r *Router) persist(ctx context.Context, message Message) (Message, error) {
	id, err := r.store.AppendMessage(ctx, message)
	if err != nil {
		return Message{}, replyError("failed to store message", fmt.Errorf("%w: %v", ErrStoreFailure, err))
	}
	message.ID = id
	return message, nil
}

func (r *Router) publicMessage(ctx context.Context, conn *Conn, frame Frame) error {
	sender, err := r.requireSession(conn)
	if err != nil {
		return err
	}
	if strings.TrimSpace(frame.Text) == "" {
		return replyError("text is required", ErrMalformedFrame)
	}

	message, err := r.persist(ctx, r.newMessage(sender.Handle(), "", frame.Text))
	if err != nil {
		return err
	}

	payload, err := Envelope{Type: KindMessage, Data: message}.Encode()
	if err != nil {
		return err
	}
	delivered := deliver(r.log, r.registry.Sessions(), payload, nil)
	r.log.Debug("Public message delivered", "user", sender.Handle(), "id", message.ID, "delivered", delivered)
	return nil
}

func (r *Router) privateMessage(ctx context.Context, conn *Conn, frame Frame) error {
	sender, err := r.requireSession(conn)
	if err != nil {
		return err
	}
	recipient := NormalizeHandle(frame.Recipient)
	if recipient == "" {
		return replyError("recipient is required", ErrMalformedFrame)
	}
	if strings.TrimSpace(frame.Text) == "" {
		return replyError("text is required", ErrMalformedFrame)
	}

	message, err := r.persist(ctx, r.newMessage(sender.Handle(), recipient, frame.Text))
	if err != nil {
		return err
	}

	target, live := r.registry.Lookup(recipient)
	if !live {
		return replyError(fmt.Sprintf("user %s is not available", recipient), ErrRecipientUnavailable)
	}

	payload, err := Envelope{Type: KindPrivateMessage, Data: message}.Encode()
	if err != nil {
		return err
	}
	targets := []*Session{target}
	if target != sender {
		targets = append(targets, sender)
	}
	deliver(r.log, targets, payload, nil)
	r.log.Debug("Private message delivered", "user", sender.Handle(), "recipient", recipient, "id", message.ID)
	return nil
}

func (r *Router) loadPrivateMessages(ctx context.Context, conn *Conn, frame Frame) error {
	sender, err := r.requireSession(conn)
	if err != nil {
		return err
	}
	recipient := NormalizeHandle(frame.Recipient)
	if ValidateHandle(recipient) != nil {
		return replyError("recipient not found", ErrRecipientUnknown)
	}

	// Checked against durable records: an offline user is still a valid peer.
	_, found, err := r.store.FindUser(ctx, recipient)
	if err != nil {
		return replyError("internal error", fmt.Errorf("%w: find %s: %v", ErrStoreFailure, recipient, err))
	}
	if !found {
		return replyError("recipient not found", ErrRecipientUnknown)
	}

	messages, err := r.store.FindConversation(ctx, sender.Handle(), recipient)
	if err != nil {
		return replyError("internal error", fmt.Errorf("%w: conversation %s/%s: %v", ErrStoreFailure, sender.Handle(), recipient, err))
	}
	if messages == nil {
		messages = []Message{}
	}
	r.reply(conn, Envelope{Type: KindPrivateMessages, Data: messages, Recipient: recipient})
	return nil
}

// typingEvent uses the session's handle as sender; the user field of the
// frame is not trusted.
func (r *Router) typingEvent(conn *Conn, frame Frame) {
	if conn.session == nil {
		r.log.Debug("Typing event from unjoined connection ignored", "addr", conn.addr)
		return
	}
	r.typing.Typing(conn.session.Handle(), frame.Recipient)
}

func (r *Router) changeStatus(ctx context.Context, conn *Conn, frame Frame) error {
	session, err := r.requireSession(conn)
	if err != nil {
		return err
	}
	status := Status(frame.Status)
	if !status.IsLive() {
		return replyError("invalid status", ErrInvalidStatus)
	}

	if err := r.store.UpsertUserStatus(ctx, session.Handle(), status); err != nil {
		return replyError("internal error", fmt.Errorf("%w: upsert %s: %v", ErrStoreFailure, session.Handle(), err))
	}
	if err := r.registry.SetStatus(session.Handle(), status); err != nil {
		return replyError("invalid status", err)
	}

	r.log.Info("Status changed", "user", session.Handle(), "status", status)
	r.publisher.Publish()
	return nil
}

// Disconnect releases the connection's session: registry removal, typing
// cleanup, offline status and a presence update. It runs whatever the state
// of writes still pending for the connection.
func (r *Router) Disconnect(ctx context.Context, conn *Conn) {
	session := conn.session
	if session == nil {
		return
	}
	conn.session = nil

	removed := r.registry.LeaveSession(session)
	r.typing.Forget(session.Handle())
	if err := session.Close(); err != nil {
		r.log.Debug("Transport close", "user", session.Handle(), "error", err)
	}
	if !removed {
		return
	}

	if err := r.store.UpsertUserStatus(context.WithoutCancel(ctx), session.Handle(), StatusOffline); err != nil {
		r.log.Error("Unable to record offline status", "user", session.Handle(), "error", err)
	}
	r.log.Info("User left", "user", session.Handle(), "addr", conn.addr, "online", r.registry.Len())
	r.publisher.Publish()
}
