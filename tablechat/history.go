package tablechat

import "context"

// HistoryFetcher retrieves the messages a room had before the live session.
// rest.Client implements it.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, roomID, token string) ([]Message, error)
}

// HistoryLoader fetches prior messages for a room and merges them ahead of
// anything already in the Store.
type HistoryLoader struct {
	fetcher HistoryFetcher
	store   *Store
	logger  Logger
	onError func(error)
}

// NewHistoryLoader constructs a loader writing into store.
func NewHistoryLoader(fetcher HistoryFetcher, store *Store) *HistoryLoader {
	return &HistoryLoader{
		fetcher: fetcher,
		store:   store,
		logger:  noopLogger{},
	}
}

// SetLogger overrides logger (optional).
func (h *HistoryLoader) SetLogger(l Logger) {
	if l == nil {
		return
	}
	h.logger = withFields(l, map[string]any{"component": "history"})
}

// OnError registers a callback receiving absorbed fetch failures.
func (h *HistoryLoader) OnError(fn func(error)) { h.onError = fn }

// LoadHistory fetches roomID's history and prepends it to the message view.
// Failures are logged and reported to OnError, never returned: live chat
// keeps working without history. The result reports whether history was
// merged, so a caller can retry a failed load.
//
// Each successful call prepends again, so load a room at most once per session.
func (h *HistoryLoader) LoadHistory(ctx context.Context, roomID, token string) bool {
	if h.fetcher == nil {
		h.logger.Error("no history fetcher configured", map[string]any{"room_id": roomID})
		h.report(NewError(ErrorHistory, "no history fetcher"))
		return false
	}
	history, err := h.fetcher.FetchHistory(ctx, roomID, token)
	if err != nil {
		h.logger.Error("failed to fetch chat history", map[string]any{"room_id": roomID, "error": err.Error()})
		h.report(WrapError(ErrorHistory, "fetch history for room "+roomID, err))
		return false
	}

	// Prepending keeps live messages that arrived during the fetch after history.
	h.store.Update(func(s State) State {
		s.Messages = prependMessages(s.Messages, history...)
		return s
	})
	h.logger.Debug("chat history loaded", map[string]any{"room_id": roomID, "count": len(history)})
	return true
}

func (h *HistoryLoader) report(err error) {
	if h.onError != nil {
		h.onError(err)
	}
}
