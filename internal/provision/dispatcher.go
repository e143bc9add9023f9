package provision

import (
	"context"
	"time"

	"github.com/Klingon-tech/tokenfactory/internal/metrics"
	"github.com/Klingon-tech/tokenfactory/internal/storage"
	"github.com/rs/zerolog"
)

// DefaultPollInterval is how often the outbox is scanned without a notify.
const DefaultPollInterval = 5 * time.Second

// Provisioner executes one provisioning request against the host.
type Provisioner interface {
	Provision(ctx context.Context, req *Request) error
}

// Dispatcher drains the outbox into a Provisioner.
type Dispatcher struct {
	db       storage.DB
	p        Provisioner
	notify   chan struct{}
	interval time.Duration
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// DispatcherConfig holds configuration for creating a Dispatcher.
type DispatcherConfig struct {
	DB           storage.DB
	Provisioner  Provisioner
	PollInterval time.Duration    // 0 = DefaultPollInterval
	Metrics      *metrics.Metrics // nil = disabled
	Logger       zerolog.Logger
}

// NewDispatcher creates a dispatcher. Call Run to start it.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Dispatcher{
		db:       cfg.DB,
		p:        cfg.Provisioner,
		notify:   make(chan struct{}, 1),
		interval: interval,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// Notify wakes the dispatcher. It never blocks.
func (d *Dispatcher) Notify() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// Run drains the outbox until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, err := d.Drain(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error().Err(err).Msg("Outbox drain failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-d.notify:
		case <-ticker.C:
		}
	}
}

// Drain hands every pending request to the provisioner once and removes
// it from the outbox whatever the outcome, unless ctx is cancelled during
// delivery, in which case the request stays queued. It returns the number
// of requests attempted.
func (d *Dispatcher) Drain(ctx context.Context) (int, error) {
	reqs, bad, err := Pending(d.db)
	if err != nil {
		return 0, err
	}
	for _, key := range bad {
		d.logger.Error().Bytes("key", key).Msg("Dropping undecodable provisioning request")
		if err := d.db.Delete(key); err != nil {
			return 0, err
		}
	}
	d.setPending(len(reqs))

	attempted := 0
	for _, req := range reqs {
		if ctx.Err() != nil {
			return attempted, ctx.Err()
		}
		err := d.p.Provision(ctx, req)
		if err != nil && ctx.Err() != nil {
			// Interrupted by shutdown; the next run redelivers it.
			d.logger.Debug().Err(err).
				Str("token_id", req.TokenID).
				Msg("Provisioning interrupted, request kept")
			return attempted, ctx.Err()
		}
		attempted++

		if err != nil {
			d.logger.Warn().Err(err).
				Str("token_id", req.TokenID).
				Str("account", req.AccountID).
				Str("amount", req.Amount.String()).
				Msg("Provisioning failed, forwarded funds stranded")
			d.count(metrics.ResultFailed)
		} else {
			d.logger.Info().
				Str("token_id", req.TokenID).
				Str("account", req.AccountID).
				Str("amount", req.Amount.String()).
				Msg("Provisioning request delivered")
			d.count(metrics.ResultOK)
		}

		if err := Remove(d.db, req.Seq); err != nil {
			return attempted, err
		}
		d.setPending(len(reqs) - attempted)
	}
	return attempted, nil
}

func (d *Dispatcher) count(result string) {
	if d.metrics != nil {
		d.metrics.Provisioned.WithLabelValues(result).Inc()
	}
}

func (d *Dispatcher) setPending(n int) {
	if d.metrics != nil {
		d.metrics.PendingProvisions.Set(float64(n))
	}
}
