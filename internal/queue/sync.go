package queue

import (
	"context"

	"github.com/ppiankov/veridica/internal/pipeline"
)

// SyncEnqueuer runs jobs inline instead of over redis. Used by the CLI
// run command, where the caller waits for the result anyway.
type SyncEnqueuer struct {
	Runner *pipeline.Runner
}

// Enqueue executes the job immediately on the calling goroutine.
func (s *SyncEnqueuer) Enqueue(ctx context.Context, jobID string) error {
	return s.Runner.Run(ctx, jobID)
}
