// internal/scheduler/heartbeat.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"aci-dispatcher/internal/dispatch"

	"github.com/robfig/cron/v3"
)

// StatsSource is anything that can report dispatch loop stats.
type StatsSource interface {
	Snapshot() dispatch.Stats
}

// Heartbeat logs the loop's liveness on a cron schedule, so operators can
// tell an idle dispatcher from a dead one.
type Heartbeat struct {
	cron   *cron.Cron
	source StatsSource
	logger *slog.Logger
}

// NewHeartbeat parses schedule (standard cron spec or descriptor such as
// "@every 1m") and prepares a heartbeat over source.
func NewHeartbeat(schedule string, source StatsSource, logger *slog.Logger) (*Heartbeat, error) {
	h := &Heartbeat{
		cron:   cron.New(),
		source: source,
		logger: logger.With("component", "heartbeat"),
	}
	if _, err := h.cron.AddFunc(schedule, h.Beat); err != nil {
		return nil, fmt.Errorf("invalid heartbeat schedule %q: %w", schedule, err)
	}
	return h, nil
}

// Start runs the cron until ctx is done.
func (h *Heartbeat) Start(ctx context.Context) {
	h.cron.Start()
	<-ctx.Done()
	stopCtx := h.cron.Stop()
	<-stopCtx.Done()
	h.logger.Info("heartbeat stopped")
}

// Beat logs one liveness line.
func (h *Heartbeat) Beat() {
	s := h.source.Snapshot()

	var failed uint64
	for _, n := range s.Errors {
		failed += n
	}
	h.logger.Info("dispatcher alive",
		"state", s.State,
		"cycles", s.Cycles,
		"received", s.Received,
		"dispatched", s.Dispatched,
		"failed_cycles", failed,
		"last_unit", s.LastUnit,
	)
}
