// Package redis provides a possync.Notifier over Redis pub/sub, letting sync
// managers in separate processes learn about each other's local store writes.
package redis

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"possync"
)

const channelPrefix = "possync"

// notifier implements possync.Notifier using Redis pub/sub.
// The counters field tracks operation statistics for monitoring (thread-safe).
type notifier struct {
	redisClient       *redis.Client
	mu                sync.Mutex
	counters          map[string]int
	createdInternally bool // Indicates whether redisClient was created by this struct

	subsMu sync.Mutex
	subs   []*redis.PubSub
	closed bool
}

// Ensure notifier implements possync.Notifier and io.Closer.
var (
	_ possync.Notifier = (*notifier)(nil)
	_ io.Closer        = (*notifier)(nil)
)

// Options holds configuration for the Redis notifier.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewNotifier creates a Redis-backed notifier.
// If redisCli is not nil, it will be used directly. Otherwise, opts will be
// used to create a new client.
func NewNotifier(redisCli *redis.Client, opts *Options) (possync.Notifier, error) {
	var rdb *redis.Client
	var createdInternally bool

	if redisCli != nil {
		rdb = redisCli
	} else {
		if opts == nil {
			opts = &Options{}
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		})
		createdInternally = true

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
	}

	log.Println("Redis notifier initialized successfully.")
	return &notifier{
		redisClient:       rdb,
		counters:          make(map[string]int),
		createdInternally: createdInternally,
	}, nil
}

// channelName maps a topic to its Redis channel, e.g. "possync:brand:acme".
func channelName(topic possync.Topic) string {
	return strings.Join([]string{channelPrefix, topic.EntityType, topic.TenantID}, ":")
}

// Publish broadcasts the change signal. Delivery is best-effort: Redis pub/sub
// has no persistence, and subscribers may see duplicates across overlapping
// refreshes — both allowed by the Notifier contract.
func (n *notifier) Publish(ctx context.Context, topic possync.Topic) error {
	n.incrementCounter("Publish")
	if err := n.redisClient.Publish(ctx, channelName(topic), "changed").Err(); err != nil {
		n.incrementCounter("PublishError")
		return fmt.Errorf("redis Publish error for topic %s/%s: %w", topic.EntityType, topic.TenantID, err)
	}
	return nil
}

// Subscribe registers a handler for the topic. Each subscription owns one
// pub/sub connection and a receive goroutine; the returned func closes both.
func (n *notifier) Subscribe(topic possync.Topic, handler possync.Handler) (func(), error) {
	n.incrementCounter("Subscribe")
	n.subsMu.Lock()
	if n.closed {
		n.subsMu.Unlock()
		return nil, fmt.Errorf("redis notifier is closed")
	}
	pubsub := n.redisClient.Subscribe(context.Background(), channelName(topic))
	n.subs = append(n.subs, pubsub)
	n.subsMu.Unlock()

	go func() {
		for range pubsub.Channel() {
			n.incrementCounter("Deliver")
			handler(topic)
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				log.Printf("WARN: redis notifier: failed to close subscription for %s/%s: %v", topic.EntityType, topic.TenantID, err)
			}
		})
	}
	return cancel, nil
}

// Close implements io.Closer. It closes all open subscriptions, and the
// underlying client only if it was created internally.
func (n *notifier) Close() error {
	n.subsMu.Lock()
	n.closed = true
	subs := n.subs
	n.subs = nil
	n.subsMu.Unlock()

	for _, s := range subs {
		if err := s.Close(); err != nil {
			log.Printf("WARN: redis notifier: failed to close subscription: %v", err)
		}
	}
	if n.createdInternally && n.redisClient != nil {
		return n.redisClient.Close()
	}
	return nil
}

// incrementCounter safely increments a named operation counter.
func (n *notifier) incrementCounter(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counters[name]++
}

// Stats returns notifier operation counters for monitoring.
func (n *notifier) Stats() map[string]int {
	n.mu.Lock()
	defer n.mu.Unlock()
	cloned := make(map[string]int, len(n.counters))
	for k, v := range n.counters {
		cloned[k] = v
	}
	return cloned
}
