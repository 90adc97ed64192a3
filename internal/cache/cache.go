// Package cache provides the Redis-backed change-notification channel
// for active-game documents. Every remote write publishes a marker on
// the owner's channel; sessions subscribe to it at hydration time.
package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Notifier publishes and subscribes to per-user game-change channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier connects to Redis and verifies the connection.
func NewNotifier(ctx context.Context, addr, password string) (*Notifier, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Notifier{rdb: rdb}, nil
}

func channelFor(userID string) string {
	return "game:" + userID
}

// PublishChange signals that the user's active-game document changed.
// The message carries no payload; readers fetch the document
// themselves. Publish failures are logged and swallowed — missing a
// notification never blocks a local mutation.
func (n *Notifier) PublishChange(ctx context.Context, userID string) {
	if err := n.rdb.Publish(ctx, channelFor(userID), "changed").Err(); err != nil {
		logrus.WithField("userId", userID).WithError(err).Warn("change notification publish failed")
	}
}

// Watch subscribes to the user's change channel. The returned channel
// delivers one empty struct per remote change; the cancel func must be
// called at session teardown to release the subscription.
func (n *Notifier) Watch(ctx context.Context, userID string) (<-chan struct{}, func(), error) {
	sub := n.rdb.Subscribe(ctx, channelFor(userID))
	// Force the SUBSCRIBE round trip so a bad connection fails here,
	// not silently in the relay goroutine.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan struct{}, 1)
	done := make(chan struct{})

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default: // listener is behind; coalesce
				}
			case <-done:
				return
			}
		}
	}()

	cancel := func() {
		close(done)
		if err := sub.Close(); err != nil {
			logrus.WithField("userId", userID).WithError(err).Debug("subscription close failed")
		}
	}
	return out, cancel, nil
}

// Close releases the underlying client.
func (n *Notifier) Close() error {
	return n.rdb.Close()
}
