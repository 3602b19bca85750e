package store

import (
	"context"
	"sync"
)

const TopicPosts = "posts"

// CommentsTopic is the change topic of one post's comments.
func CommentsTopic(postID string) string {
	return "comments/" + postID
}

// Publisher announces that a topic's data changed.
type Publisher interface {
	Publish(ctx context.Context, topic string) error
}

// Changes is the in-process change broker. Listeners get a capacity-1
// signal channel, so a burst of writes costs a listener one reload.
type Changes struct {
	mu        sync.Mutex
	listeners map[string]map[chan struct{}]struct{}
}

func NewChanges() *Changes {
	return &Changes{listeners: make(map[string]map[chan struct{}]struct{})}
}

// Publish signals every listener of topic without blocking.
func (c *Changes) Publish(_ context.Context, topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for ch := range c.listeners[topic] {
		select {
		case ch <- struct{}{}:
		default:
			// Already signalled; the pending reload will see this write too.
		}
	}
	return nil
}

func (c *Changes) listen(topic string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	c.mu.Lock()
	set, ok := c.listeners[topic]
	if !ok {
		set = make(map[chan struct{}]struct{})
		c.listeners[topic] = set
	}
	set[ch] = struct{}{}
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners[topic], ch)
		if len(c.listeners[topic]) == 0 {
			delete(c.listeners, topic)
		}
	}
}

// listenerCount is used by tests.
func (c *Changes) listenerCount(topic string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners[topic])
}
