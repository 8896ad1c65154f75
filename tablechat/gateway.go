package tablechat

import "context"

// TokenSource resolves the bearer token for the current user. An empty token
// or an error means no token is available.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// MessagePoster submits a message over the HTTP side channel.
// rest.Client implements it.
type MessagePoster interface {
	PostMessage(ctx context.Context, roomID string, msg Message, token string) error
}

// Gateway validates outbound chat messages and posts them independently of
// the live transport.
type Gateway struct {
	tokens  TokenSource
	poster  MessagePoster
	logger  Logger
	onError func(error)
}

// NewGateway constructs a Gateway.
func NewGateway(tokens TokenSource, poster MessagePoster) *Gateway {
	return &Gateway{
		tokens: tokens,
		poster: poster,
		logger: noopLogger{},
	}
}

// SetLogger overrides logger (optional).
func (g *Gateway) SetLogger(l Logger) {
	if l == nil {
		return
	}
	g.logger = withFields(l, map[string]any{"component": "gateway"})
}

// OnError registers a callback receiving every aborted send.
func (g *Gateway) OnError(fn func(error)) { g.onError = fn }

// SendMessage posts msg to its room. Nothing is returned: a failed send is
// logged, reported to OnError and dropped, and no network call is made when
// a precondition fails.
func (g *Gateway) SendMessage(ctx context.Context, msg Message) {
	token, err := resolveToken(ctx, g.tokens)
	if err != nil {
		g.fail("no auth token available for sendMessage", WrapError(ErrorMissingToken, "resolve token", err), nil)
		return
	}

	roomID := msg.RoomID()
	if roomID == "" {
		g.fail("no room id provided in message", NewError(ErrorMissingRoom, "message has no "+KeyRoomID), nil)
		return
	}
	if msg.Type() == TypePrivate && msg.TargetID() == "" {
		g.fail("private message without target", NewError(ErrorMissingTarget, "private message has no "+KeyTargetID),
			map[string]any{"room_id": roomID})
		return
	}

	if g.poster == nil {
		g.fail("no message poster configured", NewError(ErrorSend, "no poster"), map[string]any{"room_id": roomID})
		return
	}
	if err := g.poster.PostMessage(ctx, roomID, msg, token); err != nil {
		g.fail("failed to send message", WrapError(ErrorSend, "post message", err), map[string]any{"room_id": roomID})
		return
	}
	g.logger.Debug("message sent", map[string]any{"room_id": roomID, "type": msg.Type()})
}

func (g *Gateway) fail(msg string, err *ChatError, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["error"] = err.Error()
	g.logger.Error(msg, fields)
	if g.onError != nil {
		g.onError(err)
	}
}

// resolveToken folds "empty" and "error" into a single absent-token error.
func resolveToken(ctx context.Context, src TokenSource) (string, error) {
	if src == nil {
		return "", NewError(ErrorMissingToken, "no token source")
	}
	token, err := src.Token(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", NewError(ErrorMissingToken, "empty token")
	}
	return token, nil
}
