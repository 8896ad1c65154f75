package tablechat

import "sync"

// Dispatcher routes live messages, state changes and errors to registered callbacks.
type Dispatcher struct {
	mu        sync.RWMutex
	byType    map[string]func(Message)
	onMessage func(Message)
	onState   func(StateEvent)
	onError   func(error)
}

// SetOnType registers fn for live messages whose type is msgType.
func (d *Dispatcher) SetOnType(msgType string, fn func(Message)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.byType == nil {
		d.byType = make(map[string]func(Message))
	}
	d.byType[msgType] = fn
}

func (d *Dispatcher) SetOnMessage(fn func(Message)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onMessage = fn
}

func (d *Dispatcher) SetOnStateChanged(fn func(StateEvent)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onState = fn
}

func (d *Dispatcher) SetOnError(fn func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onError = fn
}

// Dispatch delivers msg to the handler for its type, then to the catch-all.
func (d *Dispatcher) Dispatch(msg Message) {
	d.mu.RLock()
	typed := d.byType[msg.Type()]
	all := d.onMessage
	d.mu.RUnlock()

	if typed != nil {
		typed(msg)
	}
	if all != nil {
		all(msg)
	}
}

func (d *Dispatcher) DispatchState(ev StateEvent) {
	d.mu.RLock()
	fn := d.onState
	d.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

func (d *Dispatcher) fireError(err error) {
	d.mu.RLock()
	fn := d.onError
	d.mu.RUnlock()
	if fn != nil && err != nil {
		fn(err)
	}
}
