package tokenstore

import "sync"

// Observed wraps a Store and notifies subscribers after every successful write.
type Observed struct {
	Store

	mu     sync.Mutex
	nextID int
	subs   map[int]func(token string)
}

// NewObserved wraps store.
func NewObserved(store Store) *Observed {
	return &Observed{Store: store, subs: make(map[int]func(string))}
}

// Subscribe registers fn to be called with the new token ("" after Clear).
// The returned function removes the subscription.
func (o *Observed) Subscribe(fn func(token string)) (unsubscribe func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextID
	o.nextID++
	o.subs[id] = fn

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs, id)
	}
}

// Set implements Store.
func (o *Observed) Set(token string) error {
	if err := o.Store.Set(token); err != nil {
		return err
	}
	o.publish(token)
	return nil
}

// Clear implements Store.
func (o *Observed) Clear() error {
	if err := o.Store.Clear(); err != nil {
		return err
	}
	o.publish("")
	return nil
}

func (o *Observed) publish(token string) {
	o.mu.Lock()
	subs := make([]func(string), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.Unlock()

	for _, fn := range subs {
		fn(token)
	}
}
