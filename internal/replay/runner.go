package replay

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"solana-sniper/internal/domain"
)

// Options configures a Runner.
type Options struct {
	// Strict stops at the first event the engine rejects. Otherwise the
	// event is logged and counted as skipped.
	Strict bool
	Logger *zap.Logger
}

// Result summarizes a replay.
type Result struct {
	Applied  int
	Skipped  int
	Sessions []string
	Opened   []domain.Position
	Closed   []domain.TradeRecord
}

// Runner applies a script to an engine in deterministic order.
type Runner struct {
	engine Engine
	clock  *Clock
	opts   Options
}

// NewRunner creates a runner. clock must be the engine's time source so that
// open and close times follow the script.
func NewRunner(e Engine, clock *Clock, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{engine: e, clock: clock, opts: opts}
}

// Run orders events by (at, line) and applies them one at a time.
func (r *Runner) Run(ctx context.Context, events []Event) (Result, error) {
	ordered := slices.Clone(events)
	SortEvents(ordered)

	var res Result
	for i := range ordered {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ev := &ordered[i]
		r.clock.Advance(ev.At)

		if err := r.apply(ctx, ev, &res); err != nil {
			if r.opts.Strict {
				return res, fmt.Errorf("line %d (%s): %w", ev.Line, ev.Type, err)
			}
			r.opts.Logger.Warn("replay event skipped",
				zap.Int("line", ev.Line),
				zap.String("type", string(ev.Type)),
				zap.Error(err),
			)
			res.Skipped++
			continue
		}
		res.Applied++
	}
	return res, nil
}

func (r *Runner) apply(ctx context.Context, ev *Event, res *Result) error {
	switch ev.Type {
	case EventTypeStart:
		id, err := r.engine.Start()
		if err != nil {
			return err
		}
		res.Sessions = append(res.Sessions, id)
	case EventTypeStop:
		return r.engine.Stop()
	case EventTypeConfig:
		_, err := r.engine.UpdateConfig(*ev.Patch)
		return err
	case EventTypeDiscovery:
		p, err := r.engine.HandleDiscovery(ctx, ev.Candidate)
		if err != nil {
			return err
		}
		if p != nil {
			res.Opened = append(res.Opened, *p)
		}
	case EventTypeTick:
		t, err := r.engine.HandlePriceTick(ctx, ev.ID, ev.Valuation)
		if err != nil {
			return err
		}
		if t != nil {
			res.Closed = append(res.Closed, *t)
		}
	case EventTypeClose:
		t, err := r.engine.ManualClose(ctx, ev.ID, ev.Outcome)
		if err != nil {
			return err
		}
		res.Closed = append(res.Closed, t)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, ev.Type)
	}
	return nil
}
