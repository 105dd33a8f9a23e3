package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mdrealofficial/node-bot-sub005/pkg/models"
	"github.com/mdrealofficial/node-bot-sub005/pkg/persistence"
)

const staleReason = "timed out waiting for user reply"

// DefaultWaitingTTL is how long an execution may sit in waiting before the
// reaper fails it.
const DefaultWaitingTTL = 30 * 24 * time.Hour

// Reaper periodically fails waiting executions whose subscriber never
// replied, keeping the waiting set from growing without bound. Staleness is
// measured from the suspension row's timestamp, not execution start, so a
// long multi-step conversation is not reaped mid-dialogue.
type Reaper struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	ttl         time.Duration
	cron        *cron.Cron
}

func NewReaper(p persistence.Persistence, logger *slog.Logger, ttl time.Duration) *Reaper {
	if ttl <= 0 {
		ttl = DefaultWaitingTTL
	}

	return &Reaper{
		persistence: p,
		logger:      logger.With("module", "reaper"),
		ttl:         ttl,
		cron:        cron.New(),
	}
}

// Start schedules sweeps with the given cron expression and runs one sweep
// immediately.
func (r *Reaper) Start(ctx context.Context, schedule string) error {
	_, err := r.cron.AddFunc(schedule, func() {
		err := r.Sweep(ctx)
		if err != nil {
			r.logger.ErrorContext(ctx, "Sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reaper: %w", err)
	}

	r.cron.Start()

	err = r.Sweep(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Initial sweep failed", "error", err)
	}

	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
}

// Sweep fails every waiting execution whose suspension is older than the TTL.
func (r *Reaper) Sweep(ctx context.Context) error {
	waiting, err := r.persistence.Executions().ExecutionsByStatus(ctx, models.ExecutionStatusWaiting)
	if err != nil {
		return fmt.Errorf("failed to list waiting executions: %w", err)
	}

	cutoff := time.Now().UTC().Add(-r.ttl)
	reaped := 0

	for _, execution := range waiting {
		latest, err := r.persistence.Executions().LatestNodeExecution(ctx, execution.ID)
		if err != nil {
			if persistence.IsNodeExecutionNotFound(err) {
				// A waiting execution with no ledger rows should not
				// exist; age it by its start time instead.
				if execution.StartedAt.After(cutoff) {
					continue
				}
			} else {
				r.logger.ErrorContext(ctx, "failed to inspect execution", "execution_id", execution.ID, "error", err)

				continue
			}
		} else if latest.CreatedAt.After(cutoff) {
			continue
		}

		execution.MarkFailed(staleReason)

		err = r.persistence.Executions().SaveExecution(ctx, execution)
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to reap execution", "execution_id", execution.ID, "error", err)

			continue
		}

		reaped++
	}

	if reaped > 0 {
		r.logger.InfoContext(ctx, "Reaped stale executions", "count", reaped, "ttl", r.ttl)
	}

	return nil
}
