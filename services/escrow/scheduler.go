package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"curtailment-controlplane/pkg/config"

	"go.uber.org/zap"
)

// Run ticks immediately and then every interval until ctx is cancelled.
// A tick in flight observes the same ctx and stops between escrows.
func (r *Reconciler) Run(ctx context.Context) {
	zap.L().Info("[Reconciler] started",
		zap.Duration("interval", r.interval()),
		zap.Duration("lookback", r.cfg.Lookback),
		zap.Int("concurrency", r.cfg.Concurrency),
	)

	for {
		if _, err := r.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zap.L().Error("[Reconciler] tick failed", zap.Error(err))
		}

		timer := time.NewTimer(r.interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			zap.L().Info("[Reconciler] stopped")
			return
		case <-timer.C:
		}
	}
}

// interval prefers a hot-reloaded value from remote config.
func (r *Reconciler) interval() time.Duration {
	if cfg := config.Current(); cfg != nil && cfg.Reconciler.Interval > 0 {
		return cfg.Reconciler.Interval
	}
	return r.cfg.Interval
}

// Probe reports the reconciler unhealthy once it has missed two ticks.
type Probe struct {
	r *Reconciler
}

func NewProbe(r *Reconciler) *Probe {
	return &Probe{r: r}
}

func (p *Probe) Name() string {
	return "escrow:reconciler"
}

func (p *Probe) Check(ctx context.Context) error {
	now := p.r.cfg.Now()
	grace := 2*p.r.interval() + time.Minute

	last := p.r.LastTick()
	if last.IsZero() {
		if now.Sub(p.r.started) > grace {
			return fmt.Errorf("no tick completed since %s", p.r.started.Format(time.RFC3339))
		}
		return nil
	}

	if age := now.Sub(last); age > grace {
		return fmt.Errorf("last tick %s ago", age.Truncate(time.Second))
	}
	return nil
}
