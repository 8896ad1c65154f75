package tablechat

import "sync"

// State is the observable snapshot: connection status plus the ordered message view.
// Published States are never mutated; each update builds new slices.
type State struct {
	Connected bool      `json:"connected"`
	Messages  []Message `json:"messages"`
}

// Store holds the single State instance and notifies subscribers on change.
//
// Updates are serialized: a subscriber always sees a complete State and
// notifications arrive in subscription order. A subscriber runs while the
// Store is serializing, so it must not call Subscribe, Update or anything
// that updates (Manager.Close, Client.Join, Client.Close,
// HistoryLoader.LoadHistory) from inside a notification; doing so deadlocks.
// Hand such work to another goroutine.
type Store struct {
	updateMu sync.Mutex

	mu     sync.RWMutex
	state  State
	subs   []subscriber
	nextID uint64
}

type subscriber struct {
	id uint64
	fn func(State)
}

// NewStore returns a Store in the initial {connected: false, messages: []} state.
func NewStore() *Store {
	return &Store{state: State{Messages: []Message{}}}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe calls fn with the current state, then after every update until
// the returned function is called. fn must not subscribe or update; see Store.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	current := s.state
	s.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *Store) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := make([]subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.id != id {
			subs = append(subs, sub)
		}
	}
	s.subs = subs
}

// Update replaces the state with transform(current) and notifies subscribers.
func (s *Store) Update(transform func(State) State) {
	s.apply(func(st State) (State, bool) {
		return transform(st), true
	})
}

// apply is Update with the option to leave the state untouched; subscribers
// are only notified when fn reports a change.
func (s *Store) apply(fn func(State) (State, bool)) bool {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	next, changed := fn(s.State())
	if !changed {
		return false
	}
	if next.Messages == nil {
		next.Messages = []Message{}
	}

	s.mu.Lock()
	s.state = next
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(next)
	}
	return true
}

// appendMessages returns a new slice holding msgs after existing.
func appendMessages(existing []Message, msgs ...Message) []Message {
	out := make([]Message, 0, len(existing)+len(msgs))
	out = append(out, existing...)
	return append(out, msgs...)
}

// prependMessages returns a new slice holding msgs before existing.
func prependMessages(existing []Message, msgs ...Message) []Message {
	out := make([]Message, 0, len(existing)+len(msgs))
	out = append(out, msgs...)
	return append(out, existing...)
}

// AppendMessage is a transform adding msg to the end of the message view.
func AppendMessage(msg Message) func(State) State {
	return func(s State) State {
		s.Messages = appendMessages(s.Messages, msg)
		return s
	}
}
