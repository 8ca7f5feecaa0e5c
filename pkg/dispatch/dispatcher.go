package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"prism-gw/prism/pkg/keypool"
	"prism-gw/prism/pkg/telemetry/metrics"
	"prism-gw/prism/pkg/upstream"
)

const tracerName = "prism-gw/prism/pkg/dispatch"

// Dispatcher relays requests upstream, rotating through the key pool and
// retrying on failures that another key might absorb.
//
// Each request gets a fresh exclusion set, so a key is attempted at most
// once per request no matter how it failed. Key-specific failures are also
// charged to the key's failure counter; transient failures are not.
type Dispatcher struct {
	selector       *keypool.Selector
	store          *keypool.Store
	caller         upstream.Caller
	maxRetries     int
	attemptTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Collector
	tracer         trace.Tracer
}

// Options configures a Dispatcher.
type Options struct {
	// Selector hands out keys; Store receives the per-key bookkeeping.
	Selector *keypool.Selector
	Store    *keypool.Store

	// Caller issues the upstream requests.
	Caller upstream.Caller

	// MaxRetries caps upstream attempts per request.
	MaxRetries int

	// AttemptTimeout bounds one attempt. Zero leaves the caller's own
	// timeout in charge.
	AttemptTimeout time.Duration

	// Logger receives per-attempt records. nil falls back to the
	// process default.
	Logger *slog.Logger

	// Metrics receives dispatch observations. nil disables recording.
	Metrics *metrics.Collector
}

// New builds a Dispatcher.
func New(opts Options) (*Dispatcher, error) {
	if opts.Selector == nil || opts.Store == nil {
		return nil, fmt.Errorf("dispatch: selector and store are required")
	}
	if opts.Caller == nil {
		return nil, fmt.Errorf("dispatch: upstream caller is required")
	}
	if opts.MaxRetries < 1 {
		return nil, fmt.Errorf("dispatch: max retries must be at least 1, got %d", opts.MaxRetries)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		selector:       opts.Selector,
		store:          opts.Store,
		caller:         opts.Caller,
		maxRetries:     opts.MaxRetries,
		attemptTimeout: opts.AttemptTimeout,
		logger:         logger,
		metrics:        opts.Metrics,
		tracer:         otel.Tracer(tracerName),
	}, nil
}

// Dispatch relays one request upstream. It selects a key, issues the call,
// and on failure classifies the error to decide between moving to the next
// key and giving up. The loop ends on success, on a client error no key can
// fix, when the attempt budget is spent, when no eligible key remains, or
// when ctx is done.
func (d *Dispatcher) Dispatch(ctx context.Context, req *upstream.Request) (*upstream.Result, error) {
	requestID := RequestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	started := time.Now()

	ctx, span := d.tracer.Start(ctx, "dispatch.request", trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.String("request.model", req.Model),
	))
	defer span.End()

	logger := d.logger.With(
		slog.String("request_id", requestID),
		slog.String("model", req.Model),
	)

	exclude := make(map[string]struct{})
	var lastErr error

	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, d.finish(span, logger, started, attempt-1, metrics.OutcomeCanceled,
				fmt.Errorf("dispatch: request canceled: %w", err))
		}

		key, err := d.selector.Next(exclude)
		if err != nil {
			exhausted := &PoolExhaustedError{Attempts: attempt - 1, LastErr: lastErr}
			return nil, d.finish(span, logger, started, attempt-1, metrics.OutcomePoolExhausted, exhausted)
		}

		result, callErr := d.attempt(ctx, key, req)
		if callErr == nil {
			if err := d.store.MarkUsed(ctx, key); err != nil {
				logger.Warn("failed to record key use", slog.Any("error", err))
			}
			logger.Info("request served",
				slog.String("key", keypool.MaskKey(key)),
				slog.Int("attempt", attempt))
			d.metrics.RecordRequest(metrics.OutcomeSuccess, attempt, time.Since(started))
			span.SetAttributes(attribute.Int("dispatch.attempts", attempt))
			return result, nil
		}

		lastErr = callErr
		d.bookkeep(ctx, logger, key, attempt, callErr, exclude)

		if upstream.IsClient(callErr) {
			// The request itself is bad; no other key changes that.
			return nil, d.finish(span, logger, started, attempt, metrics.OutcomeClientError, callErr)
		}
		if err := ctx.Err(); err != nil {
			return nil, d.finish(span, logger, started, attempt, metrics.OutcomeCanceled,
				fmt.Errorf("dispatch: request canceled: %w", err))
		}
	}

	final := &RetriesExhaustedError{Attempts: d.maxRetries, LastErr: lastErr}
	return nil, d.finish(span, logger, started, d.maxRetries, metrics.OutcomeRetriesExhausted, final)
}

// attempt issues one upstream call under the per-attempt deadline and
// records its latency.
func (d *Dispatcher) attempt(ctx context.Context, key string, req *upstream.Request) (*upstream.Result, error) {
	attemptCtx := ctx
	if d.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, d.attemptTimeout)
		defer cancel()
	}

	started := time.Now()
	result, err := d.caller.Call(attemptCtx, key, req)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	d.metrics.RecordAttempt(outcome, time.Since(started))
	return result, err
}

// bookkeep applies the error classification to the pool. Every failed key
// joins the exclusion set; only key-specific failures are charged against
// the key's threshold.
func (d *Dispatcher) bookkeep(ctx context.Context, logger *slog.Logger, key string, attempt int, callErr error, exclude map[string]struct{}) {
	exclude[key] = struct{}{}

	masked := keypool.MaskKey(key)
	switch {
	case upstream.IsKeySpecific(callErr):
		tripped, err := d.store.MarkFailed(ctx, key)
		if err != nil {
			logger.Warn("failed to record key failure", slog.Any("error", err))
		}
		if tripped {
			d.metrics.RecordKeyDisabled()
		}
		logger.Warn("attempt failed on key",
			slog.String("key", masked),
			slog.Int("attempt", attempt),
			slog.Bool("key_disabled", tripped),
			slog.Any("error", callErr))
	case upstream.IsTransient(callErr):
		logger.Warn("attempt failed in transit",
			slog.String("key", masked),
			slog.Int("attempt", attempt),
			slog.Any("error", callErr))
	case upstream.IsClient(callErr):
		logger.Info("request rejected by upstream",
			slog.String("key", masked),
			slog.Int("attempt", attempt),
			slog.Any("error", callErr))
	default:
		// Unclassified faults are treated like transit problems: the
		// key is spared but not retried for this request.
		logger.Warn("attempt failed",
			slog.String("key", masked),
			slog.Int("attempt", attempt),
			slog.Any("error", callErr))
	}
}

// finish records the terminal outcome and returns err unchanged.
func (d *Dispatcher) finish(span trace.Span, logger *slog.Logger, started time.Time, attempts int, outcome string, err error) error {
	d.metrics.RecordRequest(outcome, attempts, time.Since(started))
	span.SetAttributes(
		attribute.Int("dispatch.attempts", attempts),
		attribute.String("dispatch.outcome", outcome),
	)
	span.SetStatus(codes.Error, outcome)
	logger.Warn("request failed",
		slog.String("outcome", outcome),
		slog.Int("attempts", attempts),
		slog.Any("error", err))
	return err
}
