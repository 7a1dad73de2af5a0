package possync

import (
	"context"
	"errors"
	"sync"
)

// --- Default In-Process Notifier Implementation ---

// localNotifier implements Notifier with synchronous in-process fan-out. It
// covers the single-process case (every "tab" shares one notifier instance);
// cross-process deployments use a driver (e.g. drivers/notify/redis).
type localNotifier struct {
	mu       sync.RWMutex
	handlers map[Topic]map[int]Handler
	nextID   int
}

// NewLocalNotifier creates an empty in-process Notifier.
func NewLocalNotifier() Notifier {
	return &localNotifier{handlers: make(map[Topic]map[int]Handler)}
}

// DefaultLocalNotifier is a shared in-process notifier instance.
var DefaultLocalNotifier = NewLocalNotifier()

// Publish invokes every handler registered for the topic, sequentially on the
// caller's goroutine. Handlers are expected to be cheap ("re-read the store")
// and idempotent; duplicate delivery is allowed by the contract.
func (n *localNotifier) Publish(ctx context.Context, topic Topic) error {
	n.mu.RLock()
	registered := n.handlers[topic]
	handlers := make([]Handler, 0, len(registered))
	for _, h := range registered {
		handlers = append(handlers, h)
	}
	n.mu.RUnlock()

	for _, h := range handlers {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		h(topic)
	}
	return nil
}

// Subscribe registers a handler for the topic and returns an unsubscribe
// func. Unsubscribing twice is harmless.
func (n *localNotifier) Subscribe(topic Topic, handler Handler) (func(), error) {
	if handler == nil {
		return nil, errors.New("possync: handler must be non-nil")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.handlers[topic] == nil {
		n.handlers[topic] = make(map[int]Handler)
	}
	id := n.nextID
	n.nextID++
	n.handlers[topic][id] = handler

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if hs, ok := n.handlers[topic]; ok {
			delete(hs, id)
			if len(hs) == 0 {
				delete(n.handlers, topic)
			}
		}
	}
	return cancel, nil
}
