package tablechat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPoster struct {
	err   error
	calls []postCall
}

type postCall struct {
	room  string
	msg   Message
	token string
}

func (p *stubPoster) PostMessage(_ context.Context, roomID string, msg Message, token string) error {
	p.calls = append(p.calls, postCall{room: roomID, msg: msg, token: token})
	return p.err
}

func staticToken(tok string) TokenSource {
	return TokenFunc(func(context.Context) (string, error) { return tok, nil })
}

func newTestGateway(tokens TokenSource, poster MessagePoster) (*Gateway, *recorder[error]) {
	errs := &recorder[error]{}
	g := NewGateway(tokens, poster)
	g.OnError(errs.add)
	return g, errs
}

func TestSendMessagePostsWithToken(t *testing.T) {
	poster := &stubPoster{}
	g, errs := newTestGateway(staticToken("tok"), poster)

	msg := NewMessage("t1", "hello", TypeGlobal, "Aria")
	g.SendMessage(context.Background(), msg)

	require.Len(t, poster.calls, 1)
	assert.Equal(t, "t1", poster.calls[0].room)
	assert.Equal(t, "tok", poster.calls[0].token)
	assert.Equal(t, msg, poster.calls[0].msg)
	assert.Zero(t, errs.len())
}

func TestSendMessageWithoutTokenMakesNoCall(t *testing.T) {
	tests := []struct {
		name   string
		tokens TokenSource
	}{
		{"empty token", staticToken("")},
		{"token error", TokenFunc(func(context.Context) (string, error) { return "", errors.New("signed out") })},
		{"no source", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poster := &stubPoster{}
			g, errs := newTestGateway(tt.tokens, poster)

			g.SendMessage(context.Background(), Message{KeyRoomID: "r1", KeyContent: "hi"})

			assert.Empty(t, poster.calls)
			require.Equal(t, 1, errs.len())
			assert.Equal(t, ErrorMissingToken, CodeOf(errs.get()[0]))
		})
	}
}

func TestSendMessageWithoutRoomMakesNoCall(t *testing.T) {
	poster := &stubPoster{}
	g, errs := newTestGateway(staticToken("tok"), poster)

	g.SendMessage(context.Background(), Message{KeyContent: "hi"})

	assert.Empty(t, poster.calls)
	require.Equal(t, 1, errs.len())
	assert.Equal(t, ErrorMissingRoom, CodeOf(errs.get()[0]))
}

func TestSendPrivateMessageRequiresTarget(t *testing.T) {
	poster := &stubPoster{}
	g, errs := newTestGateway(staticToken("tok"), poster)

	g.SendMessage(context.Background(), NewMessage("t1", "psst", TypePrivate, "Aria"))
	assert.Empty(t, poster.calls)
	require.Equal(t, 1, errs.len())
	assert.Equal(t, ErrorMissingTarget, CodeOf(errs.get()[0]))

	g.SendMessage(context.Background(), NewMessage("t1", "psst", TypeGlobal, "Aria").WithTarget("u2"))
	require.Len(t, poster.calls, 1)
	assert.Equal(t, "u2", poster.calls[0].msg.TargetID())
	assert.Equal(t, TypePrivate, poster.calls[0].msg.Type())
}

func TestSendMessagePostFailureIsAbsorbed(t *testing.T) {
	poster := &stubPoster{err: errors.New("503")}
	g, errs := newTestGateway(staticToken("tok"), poster)

	require.NotPanics(t, func() {
		g.SendMessage(context.Background(), NewMessage("t1", "hi", TypeGlobal, "Aria"))
	})

	require.Len(t, poster.calls, 1)
	require.Equal(t, 1, errs.len())
	err := errs.get()[0]
	assert.True(t, IsSendError(err))
	assert.Equal(t, ErrorSend, CodeOf(err))
}
