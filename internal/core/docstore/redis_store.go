package docstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"storefront-orders/internal/core/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	changeChannelPrefix = "changes/"
	scanBatch           = 200
	defaultMaxRetries   = 16
)

// RedisStore implements Store on top of a single Redis database.
// Documents are plain string values, transactions use WATCH/MULTI/EXEC and
// change notifications go through pub/sub channels named "changes/<collection>".
type RedisStore struct {
	client     *redis.Client
	maxRetries int
}

// NewRedisStore creates a store from a URL of the form redis://[:password@]host[:port][/database].
func NewRedisStore(redisURL string, maxRetries int) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &RedisStore{
		client:     redis.NewClient(opts),
		maxRetries: maxRetries,
	}, nil
}

// Get retrieves a single document.
func (s *RedisStore) Get(ctx context.Context, ref Ref) ([]byte, error) {
	val, err := s.client.Get(ctx, ref.Key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref.Key())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", ref.Key(), err)
	}
	return val, nil
}

// Set overwrites a document and announces the change.
func (s *RedisStore) Set(ctx context.Context, ref Ref, doc []byte) error {
	if err := s.client.Set(ctx, ref.Key(), doc, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", ref.Key(), err)
	}
	s.publish(ctx, []Ref{ref})
	return nil
}

// List scans the collection prefix and fetches every document.
func (s *RedisStore) List(ctx context.Context, collection string) ([][]byte, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, collection+"/*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
	}

	docs := make([][]byte, 0, len(keys))
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		vals, err := s.client.MGet(ctx, keys[start:end]...).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", collection, err)
		}
		for _, v := range vals {
			// A key can disappear between SCAN and MGET.
			if str, ok := v.(string); ok {
				docs = append(docs, []byte(str))
			}
		}
	}
	return docs, nil
}

// Update runs fn inside an optimistic transaction over refs.
// The callback is retried while concurrent writers invalidate the watched keys;
// after maxRetries attempts ErrConflict is returned. Errors returned by fn are
// passed through unchanged and nothing is written.
func (s *RedisStore) Update(ctx context.Context, refs []Ref, fn TxnFunc) error {
	keys := make([]string, 0, len(refs))
	watched := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		k := r.Key()
		if _, dup := watched[k]; dup {
			continue
		}
		watched[k] = struct{}{}
		keys = append(keys, k)
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var committed []Ref

		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			t := &redisTxn{tx: rtx, watched: watched}
			if err := fn(ctx, t); err != nil {
				return err
			}
			if len(t.writes) == 0 {
				return nil
			}

			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, w := range t.writes {
					pipe.Set(ctx, w.ref.Key(), w.doc, 0)
				}
				return nil
			})
			if err != nil {
				return err
			}
			committed = t.refs()
			return nil
		}, keys...)

		if err == nil {
			s.publish(ctx, committed)
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			logger.Named("docstore").Debug("Transaction conflict, retrying",
				zap.Strings("keys", keys),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		return err
	}

	return fmt.Errorf("%w after %d attempts", ErrConflict, s.maxRetries)
}

// Incr atomically increments a counter record and returns the new value.
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}
	return n, nil
}

// RaiseTo lifts a counter to floor if it currently holds a lower value.
func (s *RedisStore) RaiseTo(ctx context.Context, key string, floor int64) error {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			cur, err := rtx.Get(ctx, key).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if cur >= floor {
				return nil
			}
			_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, strconv.FormatInt(floor, 10), 0)
				return nil
			})
			return err
		}, key)

		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("failed to raise %s: %w", key, err)
	}
	return fmt.Errorf("%w: raising %s", ErrConflict, key)
}

// Subscribe opens a change subscription. The subscription is confirmed by the
// server before Subscribe returns, so no write that happens afterwards is missed.
func (s *RedisStore) Subscribe(ctx context.Context, collection string) (Subscription, error) {
	ps := s.client.Subscribe(ctx, changeChannelPrefix+collection)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", collection, err)
	}

	sub := &redisSubscription{
		ps:   ps,
		out:  make(chan Change, 16),
		done: make(chan struct{}),
	}
	go sub.forward(collection)
	return sub, nil
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) publish(ctx context.Context, refs []Ref) {
	for _, r := range refs {
		if err := s.client.Publish(ctx, changeChannelPrefix+r.Collection, r.ID).Err(); err != nil {
			logger.Named("docstore").Warn("Failed to publish change",
				zap.String("key", r.Key()),
				zap.Error(err),
			)
		}
	}
}

type stagedWrite struct {
	ref Ref
	doc []byte
}

type redisTxn struct {
	tx      *redis.Tx
	watched map[string]struct{}
	writes  []stagedWrite
}

func (t *redisTxn) Get(ctx context.Context, ref Ref) ([]byte, error) {
	key := ref.Key()
	if _, ok := t.watched[key]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnwatchedKey, key)
	}

	// Staged writes are visible to later reads of the same transaction.
	for i := len(t.writes) - 1; i >= 0; i-- {
		if t.writes[i].ref.Key() == key {
			return t.writes[i].doc, nil
		}
	}

	val, err := t.tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return val, nil
}

func (t *redisTxn) Set(ref Ref, doc []byte) {
	t.writes = append(t.writes, stagedWrite{ref: ref, doc: doc})
}

func (t *redisTxn) refs() []Ref {
	seen := make(map[string]struct{}, len(t.writes))
	out := make([]Ref, 0, len(t.writes))
	for _, w := range t.writes {
		if _, ok := seen[w.ref.Key()]; ok {
			continue
		}
		seen[w.ref.Key()] = struct{}{}
		out = append(out, w.ref)
	}
	return out
}

type redisSubscription struct {
	ps        *redis.PubSub
	out       chan Change
	done      chan struct{}
	closeOnce sync.Once
}

func (s *redisSubscription) forward(collection string) {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		select {
		case s.out <- Change{Collection: collection, ID: msg.Payload}:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Changes() <-chan Change {
	return s.out
}

func (s *redisSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
