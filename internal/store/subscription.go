package store

import (
	"context"
	"log"
	"sync"
)

// Subscription is the handle of a live query.
type Subscription struct {
	once sync.Once
	stop func()
	done chan struct{}
}

// NewSubscription wraps stop as a Subscription whose Done channel closes
// on the first Unsubscribe. Used for live sources outside this package.
func NewSubscription(stop func()) *Subscription {
	s := &Subscription{done: make(chan struct{})}
	s.stop = func() {
		if stop != nil {
			stop()
		}
		close(s.done)
	}
	return s
}

// Unsubscribe releases the live query. It does not wait for an in-flight
// callback to return; callbacks must tolerate a late delivery.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.stop)
}

// Done is closed once the subscription was released.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// watch runs a live query: it registers for topic, loads a snapshot and
// reloads after every change until the subscription is released. Each
// load's result goes to deliver; deliveries never overlap.
func watch[T any](changes *Changes, topic string, load func(context.Context) (T, error), deliver func(T)) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := NewSubscription(cancel)

	// Register before the first load so no write between the two is missed.
	signal, unlisten := changes.listen(topic)

	go func() {
		defer unlisten()
		for {
			snapshot, err := load(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				log.Printf("[store] live query %s failed: %v", topic, err)
			} else {
				deliver(snapshot)
			}

			select {
			case <-ctx.Done():
				return
			case <-signal:
			}
		}
	}()
	return sub
}
