package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pessini/superpod-blog/internal/domain"
)

// staleRunGrace is added to the agent timeout before a RUNNING run is
// considered abandoned.
const staleRunGrace = time.Minute

// RunStaleRunMonitor periodically fails runs left RUNNING by a crashed or
// restarted process.
func (s *Service) RunStaleRunMonitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.sweepStaleRuns(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepStaleRuns(ctx)
		}
	}
}

func (s *Service) sweepStaleRuns(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cutoff := s.now().UTC().Add(-(s.config.AgentTimeout() + staleRunGrace))
	stale, err := s.store.ListStaleRuns(sweepCtx, cutoff, 100)
	if err != nil {
		s.logger.Warn("stale run sweep failed", zap.Error(err))
		return
	}

	for _, run := range stale {
		const msg = "run abandoned: no result before timeout"
		if err := s.store.CompleteRun(sweepCtx, run.RunID, domain.RunStatusError, "", msg); err != nil {
			s.logger.Warn("failed to fail stale run", zap.String("run_id", run.RunID), zap.Error(err))
			continue
		}
		s.traceEvent(sweepCtx, run.RunID, domain.EventTypeRunFailed, domain.RunDonePayload{
			Error:     msg,
			ElapsedMs: s.now().Sub(run.StartedAt).Milliseconds(),
		})
	}
	if len(stale) > 0 {
		s.logger.Info("failed stale runs", zap.Int("count", len(stale)))
	}
}
