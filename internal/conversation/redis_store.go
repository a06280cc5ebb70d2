package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// defaultSessionTTL applies when no TTL is configured.
const defaultSessionTTL = 24 * time.Hour

// resetAttempts bounds the optimistic retry loop in Reset. Resets contend
// only with commits, and a commit either lands before the retry (making the
// reset read fresh state) or loses its own WATCH, so a handful of attempts
// is plenty.
const resetAttempts = 5

// RedisStore is the production SessionStore. Commits are optimistic: each
// write runs under WATCH so a generation observed at load time is guaranteed
// to still be current when the patch lands, and anything else is reported as
// ErrStaleCommit for the engine to discard.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisStore builds a Redis-backed session store. Sessions idle longer
// than ttl expire; a non-positive ttl selects the 24h default.
func NewRedisStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("loan.internal.conversation.sessions")
	}
	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		tracer: tracer,
	}
}

var _ SessionStore = (*RedisStore)(nil)

func sessionKey(id string) string {
	return fmt.Sprintf("loan_session:%s", id)
}

func (s *RedisStore) LoadOrCreate(ctx context.Context, sessionID string) (*Context, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_or_create_session")
	defer span.End()

	fresh := newContext(sessionID)
	data, err := json.Marshal(fresh)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to marshal session: %w", err)
	}
	created, err := s.redis.SetNX(ctx, sessionKey(sessionID), data, s.ttl).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to create session: %w", err)
	}
	if created {
		return fresh, nil
	}
	return s.load(ctx, span, sessionID)
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Context, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_session")
	defer span.End()

	return s.load(ctx, span, sessionID)
}

func (s *RedisStore) load(ctx context.Context, span trace.Span, sessionID string) (*Context, error) {
	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSessionNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load session: %w", err)
	}
	var cur Context
	if err := json.Unmarshal(data, &cur); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	return &cur, nil
}

func (s *RedisStore) Commit(ctx context.Context, sessionID string, expectedGen uint64, patch Patch) (*Context, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.commit_session")
	defer span.End()

	key := sessionKey(sessionID)
	var committed *Context
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("conversation: failed to load session: %w", err)
		}
		var cur Context
		if err := json.Unmarshal(data, &cur); err != nil {
			return fmt.Errorf("conversation: failed to decode session: %w", err)
		}
		if cur.Generation != expectedGen {
			return ErrStaleCommit
		}
		next := applyPatch(&cur, patch)
		out, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("conversation: failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			return nil
		})
		if err == nil {
			committed = next
		}
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// The key changed between read and write. Whatever moved it bumped
		// the generation, so this commit is stale either way.
		return nil, ErrStaleCommit
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return committed, nil
}

func (s *RedisStore) Reset(ctx context.Context, sessionID string) (*Context, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.reset_session")
	defer span.End()

	key := sessionKey(sessionID)
	var out *Context
	for attempt := 0; attempt < resetAttempts; attempt++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			var next *Context
			switch {
			case err == redis.Nil:
				next = newContext(sessionID)
			case err != nil:
				return fmt.Errorf("conversation: failed to load session: %w", err)
			default:
				var cur Context
				if err := json.Unmarshal(data, &cur); err != nil {
					return fmt.Errorf("conversation: failed to decode session: %w", err)
				}
				next = resetContext(&cur)
			}
			buf, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("conversation: failed to marshal session: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, buf, s.ttl)
				return nil
			})
			if err == nil {
				out = next
			}
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		return out, nil
	}
	err := fmt.Errorf("conversation: reset contended for session %s", sessionID)
	span.RecordError(err)
	return nil, err
}

func (s *RedisStore) Sessions(ctx context.Context) ([]SessionSummary, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.list_sessions")
	defer span.End()

	var out []SessionSummary
	iter := s.redis.Scan(ctx, 0, sessionKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.redis.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue // expired between scan and read
			}
			span.RecordError(err)
			return nil, fmt.Errorf("conversation: failed to load session: %w", err)
		}
		var cur Context
		if err := json.Unmarshal(data, &cur); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("conversation: failed to decode session: %w", err)
		}
		out = append(out, SessionSummary{
			SessionID:    cur.SessionID,
			Stage:        cur.Stage,
			CustomerName: cur.Collected.CustomerName,
			UpdatedAt:    cur.UpdatedAt,
		})
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to scan sessions: %w", err)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out, nil
}
