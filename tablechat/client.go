package tablechat

import (
	"context"
	"sync"
)

// Options wires a Client to its external collaborators.
type Options struct {
	Tokens  TokenSource    // required for Join and Send
	History HistoryFetcher // usually a *rest.Client
	Poster  MessagePoster  // usually a *rest.Client
	Logger  Logger

	// ManagerOptions are passed through to NewManager.
	ManagerOptions []ManagerOption
}

// Client provides the high-level table chat SDK: one Store, one Manager,
// history loading and the send gateway behind a single handle.
type Client struct {
	cfg        Config
	logger     Logger
	tokens     TokenSource
	store      *Store
	manager    *Manager
	history    *HistoryLoader
	gateway    *Gateway
	dispatcher Dispatcher

	mu     sync.Mutex
	loaded map[string]bool
}

// NewClient constructs a client with provided config.
// Use DefaultConfig() or ConfigFromEnv() as a starting point.
func NewClient(cfg Config, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	c := &Client{
		cfg:    cfg,
		logger: withFields(logger, map[string]any{"component": "client"}),
		tokens: opts.Tokens,
		store:  NewStore(),
		loaded: make(map[string]bool),
	}

	mopts := []ManagerOption{
		WithLogger(logger),
		WithErrorHandler(c.dispatcher.fireError),
		WithStateHandler(c.dispatcher.DispatchState),
		WithMessageHandler(c.dispatcher.Dispatch),
	}
	c.manager = NewManager(cfg, c.store, append(mopts, opts.ManagerOptions...)...)

	c.history = NewHistoryLoader(opts.History, c.store)
	c.history.SetLogger(logger)
	c.history.OnError(c.dispatcher.fireError)

	c.gateway = NewGateway(opts.Tokens, opts.Poster)
	c.gateway.SetLogger(logger)
	c.gateway.OnError(c.dispatcher.fireError)
	return c
}

// OnMessage registers callback for every live message.
func (c *Client) OnMessage(fn func(Message)) { c.dispatcher.SetOnMessage(fn) }

// OnType registers callback for live messages of one type (TypeGlobal, TypePrivate, TypeEvent).
func (c *Client) OnType(msgType string, fn func(Message)) { c.dispatcher.SetOnType(msgType, fn) }

// OnStateChanged registers callback for connection state transitions.
func (c *Client) OnStateChanged(fn func(StateEvent)) { c.dispatcher.SetOnStateChanged(fn) }

// OnError registers callback for absorbed errors.
func (c *Client) OnError(fn func(error)) { c.dispatcher.SetOnError(fn) }

// Store exposes the observable state.
func (c *Client) Store() *Store { return c.store }

// Subscribe is shorthand for Store().Subscribe.
func (c *Client) Subscribe(fn func(State)) (unsubscribe func()) { return c.store.Subscribe(fn) }

// ConnectionState returns the Manager's state.
func (c *Client) ConnectionState() ConnectionState { return c.manager.State() }

// Join resolves a token, starts the live connection and loads roomID's
// history once. It blocks until the history fetch finishes; the connection
// comes up in the background. A failed history load is retried by the next
// Join for the same room. Only a missing token is returned as an error.
func (c *Client) Join(ctx context.Context, roomID string) error {
	token, err := resolveToken(ctx, c.tokens)
	if err != nil {
		werr := WrapError(ErrorMissingToken, "join "+roomID, err)
		c.logger.Error("no auth token available for join", map[string]any{"room_id": roomID, "error": err.Error()})
		c.dispatcher.fireError(werr)
		return werr
	}

	c.manager.Connect(token)

	c.mu.Lock()
	if c.loaded[roomID] {
		c.mu.Unlock()
		return nil
	}
	c.loaded[roomID] = true
	c.mu.Unlock()

	if !c.history.LoadHistory(ctx, roomID, token) {
		// Let the next Join retry.
		c.mu.Lock()
		delete(c.loaded, roomID)
		c.mu.Unlock()
	}
	return nil
}

// Send posts msg over HTTP; the server echoes it back on the live stream.
func (c *Client) Send(ctx context.Context, msg Message) { c.gateway.SendMessage(ctx, msg) }

// SendLive writes msg directly on the live transport.
func (c *Client) SendLive(msg Message) { c.manager.Send(msg) }

// Close shuts down the live connection and stops reconnecting.
func (c *Client) Close() {
	c.manager.Close()
}
