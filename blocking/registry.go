package blocking

// A Callback receives every BlockedEvent.
type Callback func(evt BlockedEvent)

// A Subscription is the handle returned by OnBlocked.
type Subscription struct {
	registry *callbackRegistry
	callback Callback
}

// Dispose stops the callback from receiving further events. Disposing more
// than once has no effect.
func (s *Subscription) Dispose() {
	s.registry.remove(s)
}

// callbackRegistry keeps the subscriptions in registration order.
type callbackRegistry struct {
	subscriptions []*Subscription
	onChange      func()
}

func (r *callbackRegistry) add(cb Callback) *Subscription {
	if cb == nil {
		panic("callback must not be nil")
	}

	s := &Subscription{registry: r, callback: cb}
	r.subscriptions = append(r.subscriptions, s)
	r.changed()

	return s
}

func (r *callbackRegistry) remove(s *Subscription) {
	for i, registered := range r.subscriptions {
		if registered == s {
			r.subscriptions = append(r.subscriptions[:i:i],
				r.subscriptions[i+1:]...)
			r.changed()

			return
		}
	}
}

func (r *callbackRegistry) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}

func (r *callbackRegistry) len() int {
	return len(r.subscriptions)
}

// snapshot lets subscribers dispose themselves during a delivery without
// affecting the delivery order.
func (r *callbackRegistry) snapshot() []*Subscription {
	s := make([]*Subscription, len(r.subscriptions))
	copy(s, r.subscriptions)

	return s
}
