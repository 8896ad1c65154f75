package tablechat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/ZiplEix/questhub/tablechat-go/tablechat/internal"
)

// Transport is one live bidirectional connection. Read blocks for the next
// frame; Write serializes v and sends it.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, v any) error
	Close() error
}

// Dialer opens a Transport to endpoint.
type Dialer func(ctx context.Context, endpoint string) (Transport, error)

// WebSocketDialer dials with coder/websocket using cfg's read and write timeouts.
func WebSocketDialer(cfg Config) Dialer {
	return func(ctx context.Context, endpoint string) (Transport, error) {
		conn, err := internal.Dial(ctx, endpoint, cfg.ReadTimeout, cfg.WriteTimeout)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

type stopper interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) stopper

func realAfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// attempt is one transport lifetime. Callbacks carry their attempt and are
// ignored once it is no longer current.
type attempt struct {
	token  string
	ctx    context.Context
	cancel context.CancelFunc
	conn   Transport // set once open, guarded by Manager.mu
}

// Manager owns the single live transport and drives reconnection, feeding
// inbound messages and connection status into a Store.
type Manager struct {
	cfg       Config
	store     *Store
	dial      Dialer
	policy    backoff.BackOff
	after     afterFunc
	logger    Logger
	sessionID string

	onError   func(error)
	onState   func(StateEvent)
	onMessage func(Message)

	mu       sync.Mutex
	state    ConnectionState
	cur      *attempt
	timer    stopper
	timerSeq uint64
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithDialer replaces the WebSocket dialer.
func WithDialer(d Dialer) ManagerOption {
	return func(m *Manager) {
		if d != nil {
			m.dial = d
		}
	}
}

// WithLogger sets the logger (optional).
func WithLogger(l Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithBackOff replaces the fixed reconnect delay. Returning backoff.Stop
// from NextBackOff ends reconnection.
func WithBackOff(b backoff.BackOff) ManagerOption {
	return func(m *Manager) {
		if b != nil {
			m.policy = b
		}
	}
}

// WithErrorHandler receives every absorbed failure.
func WithErrorHandler(fn func(error)) ManagerOption {
	return func(m *Manager) { m.onError = fn }
}

// WithStateHandler receives every ConnectionState transition.
func WithStateHandler(fn func(StateEvent)) ManagerOption {
	return func(m *Manager) { m.onState = fn }
}

// WithMessageHandler is called with each live message after it reaches the Store.
func WithMessageHandler(fn func(Message)) ManagerOption {
	return func(m *Manager) { m.onMessage = fn }
}

func withAfterFunc(f afterFunc) ManagerOption {
	return func(m *Manager) { m.after = f }
}

// NewManager constructs a disconnected Manager writing into store.
func NewManager(cfg Config, store *Store, opts ...ManagerOption) *Manager {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	m := &Manager{
		cfg:       cfg,
		store:     store,
		dial:      WebSocketDialer(cfg),
		policy:    backoff.NewConstantBackOff(delay),
		after:     realAfterFunc,
		logger:    noopLogger{},
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = withFields(m.logger, map[string]any{"component": "connection", "session_id": m.sessionID})
	return m
}

// SessionID identifies this Manager in logs.
func (m *Manager) SessionID() string { return m.sessionID }

// State returns the current ConnectionState.
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect starts a dial using token in the handshake. It returns immediately;
// progress is visible through the Store and the state handler. Connect does
// nothing while a transport is already open or being dialed.
func (m *Manager) Connect(token string) {
	m.mu.Lock()
	if m.cur != nil {
		state := m.state
		m.mu.Unlock()
		m.logger.Debug("connect ignored", map[string]any{"state": state.String()})
		return
	}
	a, ev := m.connectLocked(token)
	m.mu.Unlock()

	m.emitState(ev)
	go m.run(a)
}

func (m *Manager) connectLocked(token string) (*attempt, []StateEvent) {
	m.stopTimerLocked()
	ctx, cancel := context.WithCancel(context.Background())
	a := &attempt{token: token, ctx: ctx, cancel: cancel}
	m.cur = a
	return a, m.setStateLocked(StateConnecting, nil)
}

// Send writes msg on the open transport. Without one the message is logged
// and dropped; there is no outbound queue. A write failure closes the
// transport, so the Manager reconnects as after any other drop.
func (m *Manager) Send(msg Message) {
	m.mu.Lock()
	var conn Transport
	if m.cur != nil {
		conn = m.cur.conn
	}
	m.mu.Unlock()

	if conn == nil {
		m.logger.Error("websocket is not connected", nil)
		m.report(NewError(ErrorNotConnected, "message dropped"))
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		m.logger.Error("failed to encode message", map[string]any{"error": err.Error()})
		m.report(WrapError(ErrorSerialization, "encode message", err))
		return
	}
	if err := conn.Write(context.Background(), json.RawMessage(data)); err != nil {
		m.logger.Error("failed to write message", map[string]any{"error": err.Error()})
		m.report(WrapError(ErrorSend, "write message", err))
		// A failed write leaves the transport unusable; closing it ends the
		// read loop, which takes the normal reconnect path.
		_ = conn.Close()
	}
}

// Close shuts the transport, cancels any pending reconnect and leaves the
// Manager disconnected. Events still in flight from the old transport are
// dropped. Connect may be called again afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	a := m.cur
	var conn Transport
	if a != nil {
		conn = a.conn
	}
	m.cur = nil
	m.stopTimerLocked()
	ev := m.setStateLocked(StateDisconnected, nil)
	m.mu.Unlock()

	if a != nil {
		a.cancel()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			m.logger.Debug("close transport", map[string]any{"error": err.Error()})
		}
	}
	m.emitState(ev)
	m.syncConnected()
	m.logger.Info("connection closed", nil)
}

func (m *Manager) run(a *attempt) {
	dialCtx := a.ctx
	cancel := func() {}
	if m.cfg.HandshakeTimeout > 0 {
		dialCtx, cancel = context.WithTimeout(a.ctx, m.cfg.HandshakeTimeout)
	}
	conn, err := m.dial(dialCtx, m.cfg.Endpoint(a.token))
	cancel()
	if err != nil {
		m.dropped(a, WrapError(ErrorDial, "dial", err))
		return
	}
	if !m.opened(a, conn) {
		_ = conn.Close()
		return
	}
	m.readLoop(a, conn)
}

func (m *Manager) opened(a *attempt, conn Transport) bool {
	m.mu.Lock()
	if m.cur != a {
		m.mu.Unlock()
		return false
	}
	a.conn = conn
	m.stopTimerLocked()
	m.policy.Reset()
	ev := m.setStateLocked(StateConnected, nil)
	m.mu.Unlock()

	m.logger.Info("websocket connected", nil)
	m.emitState(ev)
	m.syncConnected()
	return true
}

func (m *Manager) readLoop(a *attempt, conn Transport) {
	for {
		data, err := conn.Read(a.ctx)
		if err != nil {
			// Any read failure ends this transport; recovery is a fresh dial.
			_ = conn.Close()
			var cause error
			if !isExpectedDisconnect(a.ctx, err) {
				cause = WrapError(ErrorTransport, "read", err)
			}
			m.dropped(a, cause)
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg == nil {
			if err == nil {
				err = errors.New("frame is not a JSON object")
			}
			m.logger.Error("failed to parse websocket message", map[string]any{"error": err.Error()})
			m.report(WrapError(ErrorMalformedFrame, "discarded inbound frame", err))
			continue
		}

		appended := m.store.apply(func(s State) (State, bool) {
			if !m.owns(a) {
				return s, false
			}
			s.Messages = appendMessages(s.Messages, msg)
			return s, true
		})
		if appended && m.onMessage != nil {
			m.onMessage(msg)
		}
	}
}

// dropped handles the end of attempt a: status goes to disconnected and,
// unless the policy says stop, one reconnect is scheduled.
func (m *Manager) dropped(a *attempt, cause error) {
	m.mu.Lock()
	if m.cur != a {
		// Closed explicitly or superseded; nothing to recover.
		m.mu.Unlock()
		return
	}
	m.cur = nil
	a.cancel()
	events := m.setStateLocked(StateDisconnected, cause)
	delay := m.policy.NextBackOff()
	if delay != backoff.Stop {
		m.scheduleLocked(a.token, delay)
		events = append(events, m.setStateLocked(StateReconnecting, nil)...)
	}
	m.mu.Unlock()

	fields := map[string]any{}
	if cause != nil {
		fields["error"] = cause.Error()
	}
	if delay != backoff.Stop {
		fields["retry_in"] = delay.String()
	}
	m.logger.Warn("websocket disconnected", fields)
	if cause != nil {
		m.report(cause)
	}
	m.emitState(events)
	m.syncConnected()
}

func (m *Manager) scheduleLocked(token string, delay time.Duration) {
	m.stopTimerLocked()
	m.timerSeq++
	seq := m.timerSeq
	m.timer = m.after(delay, func() { m.reconnect(seq, token) })
}

func (m *Manager) reconnect(seq uint64, token string) {
	m.mu.Lock()
	if m.timer == nil || m.timerSeq != seq || m.cur != nil {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	a, ev := m.connectLocked(token)
	m.mu.Unlock()

	m.logger.Info("reconnecting", nil)
	m.emitState(ev)
	go m.run(a)
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// owns reports whether a is the current, open attempt.
func (m *Manager) owns(a *attempt) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur == a && a.conn != nil
}

func (m *Manager) isOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur != nil && m.cur.conn != nil
}

// syncConnected writes the current open/closed truth into the Store, so a
// late status write can never contradict a newer transition.
func (m *Manager) syncConnected() {
	m.store.apply(func(s State) (State, bool) {
		open := m.isOpen()
		if s.Connected == open {
			return s, false
		}
		s.Connected = open
		return s, true
	})
}

func (m *Manager) setStateLocked(next ConnectionState, cause error) []StateEvent {
	if m.state == next {
		return nil
	}
	ev := StateEvent{OldState: m.state, NewState: next, Error: cause}
	m.state = next
	return []StateEvent{ev}
}

func (m *Manager) emitState(events []StateEvent) {
	if m.onState == nil {
		return
	}
	for _, ev := range events {
		m.onState(ev)
	}
}

func (m *Manager) report(err error) {
	if m.onError != nil && err != nil {
		m.onError(err)
	}
}

func isExpectedDisconnect(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}
