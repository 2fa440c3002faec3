package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/idest-edu/assignment-gateway/internal/utils"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger utils.Logger
}

func NewRedisStore(client *redis.Client, ttl time.Duration, logger utils.Logger) Store {
	return &redisStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func gradingQueuedKey(userID string) string {
	return "session:grading_queued:" + userID
}

func snapshotKey(attemptID string) string {
	return "session:attempt:" + attemptID
}

func (s *redisStore) SetGradingQueued(ctx context.Context, userID string) error {
	if err := s.client.Set(ctx, gradingQueuedKey(userID), "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set grading-queued flag: %w", err)
	}
	return nil
}

func (s *redisStore) ConsumeGradingQueued(ctx context.Context, userID string) (bool, error) {
	// GETDEL makes the one-shot semantics atomic across gateway replicas.
	val, err := s.client.GetDel(ctx, gradingQueuedKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume grading-queued flag: %w", err)
	}
	return val == "1", nil
}

func (s *redisStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt snapshot: %w", err)
	}
	if err := s.client.Set(ctx, snapshotKey(snap.AttemptID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save attempt snapshot: %w", err)
	}
	return nil
}

func (s *redisStore) LoadSnapshot(ctx context.Context, attemptID string) (*Snapshot, error) {
	data, err := s.client.Get(ctx, snapshotKey(attemptID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attempt snapshot: %w", err)
	}
	return &snap, nil
}

func (s *redisStore) DeleteSnapshot(ctx context.Context, attemptID string) error {
	if err := s.client.Del(ctx, snapshotKey(attemptID)).Err(); err != nil {
		return fmt.Errorf("failed to delete attempt snapshot: %w", err)
	}
	return nil
}
