// internal/dispatch/loop.go
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"aci-dispatcher/internal/domain"
	"aci-dispatcher/internal/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// State is the dispatch loop's position in its cycle.
type State string

const (
	StatePolling     State = "POLLING"
	StateDispatching State = "DISPATCHING"
	StateStopped     State = "STOPPED"
)

var allStates = []State{StatePolling, StateDispatching, StateStopped}

// Options holds the process-wide values every cycle uses.
type Options struct {
	QueueName string
	Image     string
	Target    domain.Target
	// PollInterval is waited after a receive that returned no message.
	PollInterval time.Duration
	// ErrorBackoff is waited after a failed receive or an unexpected error.
	ErrorBackoff time.Duration
}

// Stats is a point-in-time view of the loop.
type Stats struct {
	State          State                       `json:"state"`
	Cycles         uint64                      `json:"cycles"`
	Received       uint64                      `json:"received"`
	Dispatched     uint64                      `json:"dispatched"`
	LastUnit       string                      `json:"last_unit,omitempty"`
	LastDispatchAt time.Time                   `json:"last_dispatch_at"`
	Errors         map[domain.ErrorKind]uint64 `json:"errors"`
}

// Loop receives messages one at a time and provisions a compute unit for each.
type Loop struct {
	queue       domain.QueueService
	provisioner domain.Provisioner
	names       domain.NameGenerator
	opts        Options
	logger      *slog.Logger
	tracer      trace.Tracer

	mu    sync.RWMutex
	stats Stats
}

// NewLoop creates a dispatch loop over the given collaborators.
func NewLoop(queue domain.QueueService, provisioner domain.Provisioner, names domain.NameGenerator, opts Options, logger *slog.Logger) *Loop {
	l := &Loop{
		queue:       queue,
		provisioner: provisioner,
		names:       names,
		opts:        opts,
		logger:      logger.With("component", "dispatch-loop"),
		tracer:      otel.Tracer("aci-dispatcher-loop"),
		stats: Stats{
			Errors: make(map[domain.ErrorKind]uint64),
		},
	}
	l.setState(StatePolling)
	return l
}

// Run executes cycles until ctx is cancelled. Errors inside a cycle are
// logged and never end the loop; cancellation returns nil.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("starting work cycle", "queue", l.opts.QueueName, "resource_group", l.opts.Target.ResourceGroup)

	for {
		if ctx.Err() != nil {
			l.setState(StateStopped)
			l.logger.Info("dispatch loop stopped")
			return nil
		}
		l.handleCycleError(ctx, l.RunCycle(ctx))
	}
}

// RunCycle performs a single receive-decode-provision cycle. A panic raised
// by a collaborator is recovered and returned as an error.
func (l *Loop) RunCycle(ctx context.Context) (err error) {
	cycleID := uuid.NewString()
	ctx, span := l.tracer.Start(ctx, "dispatch.Cycle",
		trace.WithAttributes(
			attribute.String("cycle.id", cycleID),
			attribute.String("queue.name", l.opts.QueueName),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch cycle panicked: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(domain.KindOf(err)))
		}
		l.setState(StatePolling)
	}()

	l.mu.Lock()
	l.stats.Cycles++
	l.mu.Unlock()

	msg, err := l.queue.Receive(ctx, l.opts.QueueName)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", domain.ErrQueueService, err)
	}
	if msg == nil {
		span.AddEvent("no_message")
		return wait(ctx, l.opts.PollInterval)
	}

	metrics.MessagesReceivedTotal.WithLabelValues(l.opts.QueueName).Inc()
	l.mu.Lock()
	l.stats.Received++
	l.mu.Unlock()

	if len(msg.Body) == 0 {
		l.logger.Debug("skipping message with empty body", "message_id", msg.ID)
		span.AddEvent("empty_message")
		return nil
	}

	l.setState(StateDispatching)
	return l.dispatch(ctx, span, msg)
}

func (l *Loop) dispatch(ctx context.Context, span trace.Span, msg *domain.Message) error {
	if !utf8.Valid(msg.Body) {
		return fmt.Errorf("message %q: %w", msg.ID, domain.ErrDecode)
	}
	work := string(msg.Body)

	name := l.names.Generate()
	span.SetAttributes(attribute.String("unit.name", name))

	l.logger.Info("creating container", "unit", name, "work", work)

	spec := domain.NewComputeUnitSpec(name, l.opts.Image, l.opts.Target.Location, work)

	start := time.Now()
	err := l.provisioner.CreateOrUpdate(ctx, l.opts.Target.ResourceGroup, name, spec)
	metrics.ProvisionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DispatchTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: unit %s: %w", domain.ErrProvisioning, name, err)
	}

	metrics.DispatchTotal.WithLabelValues("success").Inc()
	l.mu.Lock()
	l.stats.Dispatched++
	l.stats.LastUnit = name
	l.stats.LastDispatchAt = time.Now()
	l.mu.Unlock()
	return nil
}

// handleCycleError is the loop's error policy: only cancellation of the loop's
// own context is an interrupt, everything else is recorded and survived.
func (l *Loop) handleCycleError(ctx context.Context, err error) {
	if err == nil {
		return
	}

	kind := domain.KindOf(err)
	if kind == domain.ErrorKindInterrupt {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			l.logger.Debug("cycle interrupted", "error", err)
			return
		}
		kind = domain.ErrorKindUnexpected
	}

	metrics.CycleErrorsTotal.WithLabelValues(string(kind)).Inc()
	l.mu.Lock()
	l.stats.Errors[kind]++
	l.mu.Unlock()

	switch kind {
	case domain.ErrorKindDecode:
		l.logger.Warn("dropping message that is not valid UTF-8", "error", err)
	case domain.ErrorKindQueue:
		l.logger.Error("failed to receive message", "error", err, "retry_in", l.opts.ErrorBackoff)
		_ = wait(ctx, l.opts.ErrorBackoff)
	case domain.ErrorKindProvisioning:
		l.logger.Error("failed to provision container, work is lost", "error", err)
	default:
		l.logger.Error("unexpected error in dispatch cycle", "error", err, "retry_in", l.opts.ErrorBackoff)
		_ = wait(ctx, l.opts.ErrorBackoff)
	}
}

// Snapshot returns a copy of the loop's current stats.
func (l *Loop) Snapshot() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := l.stats
	s.Errors = make(map[domain.ErrorKind]uint64, len(l.stats.Errors))
	for k, v := range l.stats.Errors {
		s.Errors[k] = v
	}
	return s
}

func (l *Loop) setState(state State) {
	l.mu.Lock()
	if l.stats.State == StateStopped {
		l.mu.Unlock()
		return
	}
	l.stats.State = state
	l.mu.Unlock()

	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1
		}
		metrics.LoopState.WithLabelValues(string(s)).Set(v)
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
