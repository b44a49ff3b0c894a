package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"squizy/internal/model"
)

// SessionCache stores room documents in Redis. Each document is a hash with one
// field per top-level document field; every write publishes a change notice.
type SessionCache interface {
	Set(ctx context.Context, code string, doc model.Update) error
	Update(ctx context.Context, code string, u model.Update) error
	Snapshot(ctx context.Context, code string) (model.Update, bool, error)
	Subscribe(ctx context.Context, code string) (<-chan model.Update, error)
	Delete(ctx context.Context, code string) error
}

type sessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionCache creates a new session cache. Rooms expire ttl after their last write.
func NewSessionCache(client *redis.Client, ttl time.Duration) SessionCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &sessionCache{
		client: client,
		ttl:    ttl,
	}
}

func docKey(code string) string {
	return fmt.Sprintf("room:%s:doc", code)
}

func changesChannel(code string) string {
	return fmt.Sprintf("room:%s:changes", code)
}

func (c *sessionCache) Set(ctx context.Context, code string, doc model.Update) error {
	return c.write(ctx, code, doc, true)
}

func (c *sessionCache) Update(ctx context.Context, code string, u model.Update) error {
	return c.write(ctx, code, u, false)
}

func (c *sessionCache) write(ctx context.Context, code string, u model.Update, replace bool) error {
	fields, err := u.Fields()
	if err != nil {
		return err
	}
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	key := docKey(code)
	pipe := c.client.TxPipeline()
	if replace {
		pipe.Del(ctx, key)
	}
	if len(values) > 0 {
		pipe.HSet(ctx, key, values)
	}
	pipe.Expire(ctx, key, c.ttl)
	pipe.Publish(ctx, changesChannel(code), "changed")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write room %s: %w", code, err)
	}
	return nil
}

func (c *sessionCache) Snapshot(ctx context.Context, code string) (model.Update, bool, error) {
	fields, err := c.client.HGetAll(ctx, docKey(code)).Result()
	if err == redis.Nil {
		return model.Update{}, false, nil
	}
	if err != nil {
		return model.Update{}, false, fmt.Errorf("read room %s: %w", code, err)
	}
	if len(fields) == 0 {
		return model.Update{}, false, nil
	}
	doc, errs := model.DecodeFields(fields)
	for _, e := range errs {
		log.Printf("[cache] room %s: %v", code, e)
	}
	return doc, true, nil
}

func (c *sessionCache) Subscribe(ctx context.Context, code string) (<-chan model.Update, error) {
	pubsub := c.client.Subscribe(ctx, changesChannel(code))
	// Wait for the subscription to be confirmed so no change is missed between
	// the initial snapshot and the first notice.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe room %s: %w", code, err)
	}

	out := make(chan model.Update, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		send := func() bool {
			doc, ok, err := c.Snapshot(ctx, code)
			if err != nil {
				log.Printf("[cache] snapshot for room %s failed: %v", code, err)
				return ctx.Err() == nil
			}
			if !ok {
				return true
			}
			select {
			case out <- doc:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send() {
			return
		}
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				if !send() {
					return
				}
			}
		}
	}()
	return out, nil
}

func (c *sessionCache) Delete(ctx context.Context, code string) error {
	return c.client.Del(ctx, docKey(code)).Err()
}
