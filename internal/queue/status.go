package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ppiankov/veridica/internal/model"
	"github.com/ppiankov/veridica/internal/store"
)

const (
	statusKeyPrefix = "veridica:job:"
	statusTTL       = 24 * time.Hour
)

// StatusMirror keeps a redis copy of job rows so the API can answer
// polling without hitting SQLite on every request. The store stays the
// source of truth; a cache miss falls through to it.
type StatusMirror struct {
	rdb   *redis.Client
	store *store.Store
}

// NewStatusMirror creates a mirror over the queue's redis instance.
func NewStatusMirror(cfg model.QueueConfig, st *store.Store) *StatusMirror {
	return &StatusMirror{
		rdb:   redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB}),
		store: st,
	}
}

// PublishFromStore reads the current job row and mirrors it.
func (m *StatusMirror) PublishFromStore(ctx context.Context, jobID string) error {
	job, err := m.store.GetJob(jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}
	return m.Publish(ctx, job)
}

// Publish writes one job snapshot.
func (m *StatusMirror) Publish(ctx context.Context, job *model.PipelineJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job snapshot: %w", err)
	}
	if err := m.rdb.Set(ctx, statusKeyPrefix+job.JobID, data, statusTTL).Err(); err != nil {
		return fmt.Errorf("writing job snapshot: %w", err)
	}
	return nil
}

// Get returns the mirrored snapshot, or (nil, nil) on a miss.
func (m *StatusMirror) Get(ctx context.Context, jobID string) (*model.PipelineJob, error) {
	data, err := m.rdb.Get(ctx, statusKeyPrefix+jobID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading job snapshot: %w", err)
	}
	var job model.PipelineJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshaling job snapshot: %w", err)
	}
	return &job, nil
}

// Close releases the redis connection.
func (m *StatusMirror) Close() error { return m.rdb.Close() }
