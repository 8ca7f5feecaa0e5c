package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"prism-gw/prism/pkg/keypool"
	"prism-gw/prism/pkg/telemetry/metrics"
	"prism-gw/prism/pkg/upstream"
)

// Prober periodically re-checks disabled keys against the upstream and
// returns the ones that pass to rotation. Probes run on a schedule, are
// rate limited so a large quarantine does not burst against the upstream,
// and never touch active keys.
type Prober struct {
	store        *keypool.Store
	caller       upstream.Caller
	interval     time.Duration
	minDisabled  time.Duration
	probeTimeout time.Duration
	budget       *rate.Limiter
	logger       *slog.Logger
	metrics      *metrics.Collector

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// Options configures a Prober.
type Options struct {
	// Store is probed for disabled keys and receives reactivations.
	Store *keypool.Store

	// Caller issues the validation probes.
	Caller upstream.Caller

	// CheckInterval is how often a probe cycle runs.
	CheckInterval time.Duration

	// MinDisabled is how long a key must have been quarantined before it
	// is probed. Zero probes on the first cycle after disablement.
	MinDisabled time.Duration

	// ProbeTimeout bounds a single probe.
	ProbeTimeout time.Duration

	// ProbesPerSecond and ProbeBurst shape the probe rate across a
	// cycle. ProbesPerSecond of zero means unthrottled.
	ProbesPerSecond float64
	ProbeBurst      int

	// Logger receives cycle and probe records. nil falls back to the
	// process default.
	Logger *slog.Logger

	// Metrics receives probe observations. nil disables recording.
	Metrics *metrics.Collector
}

// New builds a Prober. Start schedules it.
func New(opts Options) (*Prober, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("recovery: store is required")
	}
	if opts.Caller == nil {
		return nil, fmt.Errorf("recovery: upstream caller is required")
	}
	if opts.CheckInterval <= 0 {
		return nil, fmt.Errorf("recovery: check interval must be positive, got %v", opts.CheckInterval)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	budget := rate.NewLimiter(rate.Inf, 1)
	if opts.ProbesPerSecond > 0 {
		burst := opts.ProbeBurst
		if burst < 1 {
			burst = 1
		}
		budget = rate.NewLimiter(rate.Limit(opts.ProbesPerSecond), burst)
	}

	return &Prober{
		store:        opts.Store,
		caller:       opts.Caller,
		interval:     opts.CheckInterval,
		minDisabled:  opts.MinDisabled,
		probeTimeout: opts.ProbeTimeout,
		budget:       budget,
		logger:       logger,
		metrics:      opts.Metrics,
	}, nil
}

// Start schedules probe cycles every CheckInterval until Stop is called.
// The first cycle runs one interval after Start, not immediately; a key
// pool that just came up has fresh state and nothing to recover.
func (p *Prober) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("recovery: prober already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.cron = cron.New()
	spec := fmt.Sprintf("@every %s", p.interval)
	if _, err := p.cron.AddFunc(spec, func() { p.RunCycle(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("recovery: schedule probe cycle: %w", err)
	}
	p.cron.Start()
	p.running = true

	p.logger.Info("recovery prober started",
		slog.Duration("interval", p.interval),
		slog.Duration("min_disabled", p.minDisabled))
	return nil
}

// Stop cancels in-flight probes and halts the schedule, waiting for a
// running cycle to finish.
func (p *Prober) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.cancel()
	<-p.cron.Stop().Done()
	p.running = false
	p.logger.Info("recovery prober stopped")
}

// RunCycle probes every eligible disabled key once and reactivates the
// keys that pass. It returns the number of keys reactivated. Exported so
// an operator endpoint can force a cycle outside the schedule.
func (p *Prober) RunCycle(ctx context.Context) int {
	candidates := p.eligible()
	if len(candidates) == 0 {
		return 0
	}

	p.logger.Info("probe cycle started", slog.Int("candidates", len(candidates)))

	var recovered int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, key := range candidates {
		if err := p.budget.Wait(ctx); err != nil {
			break
		}
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			if p.probe(ctx, key) {
				mu.Lock()
				recovered++
				mu.Unlock()
			}
		}(key)
	}
	wg.Wait()

	p.logger.Info("probe cycle finished",
		slog.Int("candidates", len(candidates)),
		slog.Int64("recovered", recovered))
	return int(recovered)
}

// eligible snapshots the pool and returns disabled keys whose quarantine
// has lasted at least MinDisabled.
func (p *Prober) eligible() []string {
	cutoff := time.Now().Add(-p.minDisabled)
	var keys []string
	for _, rec := range p.store.Snapshot() {
		if rec.Status != keypool.StatusDisabled {
			continue
		}
		if p.minDisabled > 0 && rec.DisabledAt.After(cutoff) {
			continue
		}
		keys = append(keys, rec.Identifier)
	}
	return keys
}

// probe validates one key and applies the result to the store. A failed
// probe refreshes the quarantine timestamp so the key waits out another
// MinDisabled before the next attempt.
func (p *Prober) probe(ctx context.Context, key string) bool {
	probeCtx := ctx
	if p.probeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, p.probeTimeout)
		defer cancel()
	}

	err := p.caller.Probe(probeCtx, key)
	masked := keypool.MaskKey(key)

	if err != nil {
		p.metrics.RecordProbe(false)
		if _, markErr := p.store.MarkFailed(ctx, key); markErr != nil {
			p.logger.Warn("failed to record probe failure",
				slog.String("key", masked), slog.Any("error", markErr))
		}
		p.logger.Debug("probe failed",
			slog.String("key", masked), slog.Any("error", err))
		return false
	}

	p.metrics.RecordProbe(true)
	if err := p.store.Reactivate(ctx, key); err != nil {
		p.logger.Warn("failed to reactivate key",
			slog.String("key", masked), slog.Any("error", err))
		return false
	}
	p.metrics.RecordKeyReactivated()
	p.logger.Info("key recovered", slog.String("key", masked))
	return true
}
