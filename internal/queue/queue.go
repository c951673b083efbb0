package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Delivery is the unit of work handed to the delivery worker: the id of
// a notification whose log write is already durable. A lost delivery
// loses nothing but the deliveredAt stamp.
type Delivery struct {
	NotificationID int64     `json:"notificationId"`
	EnqueuedAt     time.Time `json:"enqueuedAt"`
}

// Queue is the abstraction over delivery backends.
type Queue interface {
	Publish(ctx context.Context, d Delivery) error
	Consume(ctx context.Context) (<-chan Delivery, error)
}

// InMemory is a channel-backed queue for dev/testing.
type InMemory struct {
	ch chan Delivery
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Delivery, size)}
}

// Publish enqueues a delivery.
func (q *InMemory) Publish(ctx context.Context, d Delivery) error {
	select {
	case q.ch <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case d := <-q.ch:
				out <- d
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "artledger:deliveries"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues a delivery as JSON.
func (q *RedisQueue) Publish(ctx context.Context, d Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Consume streams deliveries using BRPOP. Undecodable entries are
// dropped.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			var d Delivery
			if err := json.Unmarshal([]byte(res[1]), &d); err != nil {
				continue
			}
			out <- d
		}
	}()
	return out, nil
}
