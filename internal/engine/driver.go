package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/feed"
	"solana-sniper/internal/observability"
)

// DriverOptions configures a Driver.
type DriverOptions struct {
	Discovery feed.DiscoveryFeed
	Prices    feed.PriceFeed

	// DiscoveryInterval paces calls to Discovery.Next. Zero relies on the
	// feed blocking on its own.
	DiscoveryInterval time.Duration
	// PollInterval is the price polling period (default 5s).
	PollInterval time.Duration

	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// Driver pumps external feeds into an Engine. Events produced while the
// engine is IDLE are discarded.
type Driver struct {
	engine *Engine
	opts   DriverOptions
}

// NewDriver creates a driver for e.
func NewDriver(e *Engine, opts DriverOptions) *Driver {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.DefaultMetrics
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Driver{engine: e, opts: opts}
}

// Run blocks until ctx is cancelled, a feed fails fatally, or the discovery
// feed closes and no price feed is configured.
func (d *Driver) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if d.opts.Discovery != nil {
		g.Go(func() error {
			return d.runDiscovery(ctx)
		})
	}
	if d.opts.Prices != nil {
		g.Go(func() error {
			return d.runPrices(ctx)
		})
	}

	return g.Wait()
}

func (d *Driver) runDiscovery(ctx context.Context) error {
	for {
		if d.opts.DiscoveryInterval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(d.opts.DiscoveryInterval):
			}
		}

		c, err := d.opts.Discovery.Next(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, feed.ErrFeedClosed):
				d.opts.Logger.Info("discovery feed closed")
				return nil
			default:
				d.opts.Metrics.FeedErrors.WithLabelValues("discovery", "next").Inc()
				d.opts.Logger.Warn("discovery feed error", zap.Error(err))
				if !sleepCtx(ctx, d.opts.PollInterval) {
					return nil
				}
				continue
			}
		}

		if c == nil {
			continue
		}
		if _, err := d.engine.HandleDiscovery(ctx, c); err != nil && !errors.Is(err, ErrNotRunning) {
			d.opts.Logger.Warn("discovery not processed",
				zap.String("mint", c.Mint),
				zap.Error(err),
			)
		}
	}
}

func (d *Driver) runPrices(ctx context.Context) error {
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if d.engine.Status() != StatusRunning {
				continue
			}
			if _, err := d.PollOnce(ctx); err != nil {
				d.opts.Logger.Warn("price poll failed", zap.Error(err))
			}
		}
	}
}

// PollOnce fetches a valuation for every open position and applies them as
// one batch. It returns the trades the batch closed.
func (d *Driver) PollOnce(ctx context.Context) ([]domain.TradeRecord, error) {
	open := d.engine.ListOpen()
	if len(open) == 0 {
		d.retain(ctx)
		return nil, nil
	}

	ticks := make([]domain.ValuationTick, 0, len(open))
	for _, p := range open {
		start := time.Now()
		v, err := d.opts.Prices.Update(ctx, p.ID)
		d.opts.Metrics.FeedLatency.WithLabelValues("prices").Observe(time.Since(start).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, feed.ErrNoQuote) {
				continue
			}
			d.opts.Metrics.FeedErrors.WithLabelValues("prices", "update").Inc()
			d.opts.Logger.Debug("price update failed",
				zap.String("position_id", p.ID),
				zap.Error(err),
			)
			continue
		}
		ticks = append(ticks, domain.ValuationTick{PositionID: p.ID, Valuation: v})
	}

	closed, err := d.engine.HandlePriceTicks(ctx, ticks)
	if errors.Is(err, ErrNotRunning) {
		return nil, nil
	}
	if flushErr := d.engine.Flush(ctx); flushErr != nil {
		d.opts.Logger.Warn("flush failed", zap.Error(flushErr))
	}
	d.retain(ctx)
	return closed, err
}

// retain lets the price feed release subscriptions and quotes of positions
// that have closed, including manual closes made outside the poll.
func (d *Driver) retain(ctx context.Context) {
	r, ok := d.opts.Prices.(feed.Retainer)
	if !ok {
		return
	}
	open := d.engine.ListOpen()
	ids := make([]string, 0, len(open))
	for _, p := range open {
		ids = append(ids, p.ID)
	}
	if err := r.Retain(ctx, ids); err != nil {
		d.opts.Metrics.FeedErrors.WithLabelValues("prices", "retain").Inc()
		d.opts.Logger.Debug("price feed retain failed", zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
