package escrow

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"curtailment-controlplane/pkg/db/pagination"
	"curtailment-controlplane/pkg/featureflags"
	"curtailment-controlplane/pkg/lock"
	"curtailment-controlplane/pkg/rediskey"
	"curtailment-controlplane/pkg/rippletime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval    = 15 * time.Minute
	DefaultLookback    = 24 * time.Hour
	DefaultConcurrency = 8
	DefaultLockTTL     = 2 * time.Minute
)

type Config struct {
	Interval    time.Duration
	Lookback    time.Duration
	Concurrency int
	LockTTL     time.Duration
	PageSize    int
	Now         func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Lookback <= 0 {
		c.Lookback = DefaultLookback
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.LockTTL <= 0 {
		c.LockTTL = DefaultLockTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Report summarizes one reconciliation tick.
type Report struct {
	Examined    int64
	Transitions int64
	Skipped     int64
	Errors      int64
	Settled     int64
}

type counters struct {
	examined, transitions, skipped, errors, settled atomic.Int64
}

func (c *counters) report() Report {
	return Report{
		Examined:    c.examined.Load(),
		Transitions: c.transitions.Load(),
		Skipped:     c.skipped.Load(),
		Errors:      c.errors.Load(),
		Settled:     c.settled.Load(),
	}
}

type Dependencies struct {
	Repo     Repository
	Signing  SigningGateway
	Ledger   LedgerGateway
	Signer   LedgerSigner
	Verifier ParticipationVerifier
	Creators CreatorDirectory
	Settler  Settler
	Locker   lock.Locker
	Flags    featureflags.FeatureFlag
	Tracer   trace.TracerProvider
	Meter    metric.MeterProvider
	// Passes run after the escrow passes on every tick.
	Passes   []Pass
}

// Pass is an extra unit of work run once per tick, such as reward payment
// reconciliation.
type Pass interface {
	Name() string
	Run(ctx context.Context) error
}

type Reconciler struct {
	repo     Repository
	signing  SigningGateway
	ledger   LedgerGateway
	signer   LedgerSigner
	verifier ParticipationVerifier
	creators CreatorDirectory
	settler  Settler
	locker   lock.Locker
	flags    featureflags.FeatureFlag
	passes   []Pass

	cfg     Config
	tracer  trace.Tracer
	metrics *reconcilerMetrics

	started  time.Time
	lastTick atomic.Int64
}

type reconcilerMetrics struct {
	transitions metric.Int64Counter
	errors      metric.Int64Counter
	duration    metric.Float64Histogram
}

func newMetrics(mp metric.MeterProvider) *reconcilerMetrics {
	meter := mp.Meter("curtailment/escrow")
	transitions, _ := meter.Int64Counter("escrow.transitions",
		metric.WithDescription("Escrow status transitions applied"))
	errs, _ := meter.Int64Counter("escrow.errors",
		metric.WithDescription("Escrows left unchanged because processing failed"))
	duration, _ := meter.Float64Histogram("escrow.tick.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Wall time of one reconciliation tick"))
	return &reconcilerMetrics{transitions: transitions, errors: errs, duration: duration}
}

func NewReconciler(deps Dependencies, cfg Config) *Reconciler {
	cfg = cfg.withDefaults()

	if deps.Locker == nil {
		deps.Locker = lock.Noop{}
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.GetTracerProvider()
	}
	if deps.Meter == nil {
		deps.Meter = otel.GetMeterProvider()
	}

	return &Reconciler{
		repo:     deps.Repo,
		signing:  deps.Signing,
		ledger:   deps.Ledger,
		signer:   deps.Signer,
		verifier: deps.Verifier,
		creators: deps.Creators,
		settler:  deps.Settler,
		locker:   deps.Locker,
		flags:    deps.Flags,
		passes:   deps.Passes,
		cfg:      cfg,
		tracer:   deps.Tracer.Tracer("curtailment/escrow"),
		metrics:  newMetrics(deps.Meter),
		started:  cfg.Now(),
	}
}

// LastTick returns when the last tick completed, or the zero time.
func (r *Reconciler) LastTick() time.Time {
	ns := r.lastTick.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Tick runs one full reconciliation: abandonment, pending, active and
// settlement passes. Per-escrow failures are logged and counted; only
// failures to read a candidate set are returned.
func (r *Reconciler) Tick(ctx context.Context) (Report, error) {
	var c counters

	if r.flags != nil && !r.flags.Enabled(ctx, featureflags.ReconcilerEnabled, true) {
		zap.L().Info("[Reconciler] disabled by feature flag, skipping tick")
		r.lastTick.Store(r.cfg.Now().UnixNano())
		return c.report(), nil
	}

	start := r.cfg.Now()
	ctx, span := r.tracer.Start(ctx, "escrow.reconcile.tick")
	defer span.End()

	cutoff := start.Add(-r.cfg.Lookback)
	var errs []error

	if err := r.forEach(ctx, &c, "abandon", ListParams{
		Status:        []Status{StatusPending},
		CreatedBefore: &cutoff,
	}, r.abandon); err != nil {
		errs = append(errs, err)
	}

	if err := r.forEach(ctx, &c, "pending", ListParams{
		Status:       []Status{StatusPending},
		CreatedAfter: &cutoff,
	}, r.reconcilePending); err != nil {
		errs = append(errs, err)
	}

	ledgerNow := r.ledgerNow(ctx)
	if err := r.forEach(ctx, &c, "active", ListParams{
		Status:      []Status{StatusActive},
		Kind:        KindParticipant,
		FinishDueAt: &ledgerNow,
	}, func(ctx context.Context, e *Escrow, c *counters) error {
		return r.reconcileActive(ctx, e, ledgerNow, c)
	}); err != nil {
		errs = append(errs, err)
	}

	if r.settler != nil {
		if err := r.forEach(ctx, &c, "settle", ListParams{
			Status:    []Status{StatusFinished, StatusCancelled},
			Kind:      KindParticipant,
			Unsettled: true,
		}, func(ctx context.Context, e *Escrow, c *counters) error {
			r.handOff(ctx, e, c)
			return nil
		}); err != nil {
			errs = append(errs, err)
		}
	}

	for _, p := range r.passes {
		if ctx.Err() != nil {
			break
		}
		if err := p.Run(ctx); err != nil {
			zap.L().Error("[Reconciler] pass failed", zap.String("pass", p.Name()), zap.Error(err))
			r.metrics.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("pass", p.Name())))
			errs = append(errs, err)
		}
	}

	report := c.report()
	elapsed := r.cfg.Now().Sub(start)
	r.metrics.duration.Record(ctx, elapsed.Seconds())
	r.lastTick.Store(r.cfg.Now().UnixNano())

	span.SetAttributes(
		attribute.Int64("escrow.examined", report.Examined),
		attribute.Int64("escrow.transitions", report.Transitions),
		attribute.Int64("escrow.errors", report.Errors),
	)

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "candidate listing failed")
	}

	zap.L().Info("[Reconciler] tick finished",
		zap.Int64("examined", report.Examined),
		zap.Int64("transitions", report.Transitions),
		zap.Int64("skipped", report.Skipped),
		zap.Int64("errors", report.Errors),
		zap.Int64("settled", report.Settled),
		zap.Duration("duration", elapsed),
	)

	return report, err
}

type handler func(ctx context.Context, e *Escrow, c *counters) error

// forEach pages through the candidate set and fans each page out over a
// bounded pool. A failing escrow never stops the others.
func (r *Reconciler) forEach(ctx context.Context, c *counters, pass string, params ListParams, fn handler) error {
	params.Page = pagination.Page{Limit: r.cfg.PageSize}

	for {
		if ctx.Err() != nil {
			return nil
		}

		rows, next, err := r.repo.List(ctx, params)
		if err != nil {
			zap.L().Error("[Reconciler] failed to list candidates", zap.String("pass", pass), zap.Error(err))
			return err
		}

		var g errgroup.Group
		g.SetLimit(r.cfg.Concurrency)

		for i := range rows {
			if ctx.Err() != nil {
				break
			}
			e := rows[i]
			c.examined.Add(1)
			g.Go(func() error {
				r.process(ctx, c, pass, &e, fn)
				return nil
			})
		}
		_ = g.Wait()

		if next == nil {
			return nil
		}
		params.Page = *next
	}
}

func (r *Reconciler) process(ctx context.Context, c *counters, pass string, e *Escrow, fn handler) {
	log := zap.L().With(
		zap.String("pass", pass),
		zap.String("escrow_id", e.ID),
		zap.String("event_id", e.EventID),
	)

	ctx, span := r.tracer.Start(ctx, "escrow.reconcile."+pass, trace.WithAttributes(
		attribute.String("escrow.id", e.ID),
		attribute.String("escrow.status", string(e.Status)),
	))
	defer span.End()

	release, err := r.locker.Acquire(ctx, rediskey.BuildEscrowLockKey(e.ID), r.cfg.LockTTL)
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		log.Debug("[Reconciler] escrow locked by another worker")
		c.skipped.Add(1)
		return
	case err != nil:
		log.Warn("[Reconciler] lock unavailable, relying on row version", zap.Error(err))
		release = func() {}
	}
	defer release()

	// the candidate may have moved between listing and locking
	fresh, err := r.repo.Get(ctx, e.ID)
	if err != nil {
		log.Error("[Reconciler] failed to reload escrow", zap.Error(err))
		c.errors.Add(1)
		return
	}
	if fresh.Status != e.Status {
		log.Debug("[Reconciler] escrow moved since listing", zap.String("status", string(fresh.Status)))
		c.skipped.Add(1)
		return
	}

	err = fn(ctx, fresh, c)
	switch {
	case err == nil:
	case errors.Is(err, ErrMissingLink):
		log.Warn("[Reconciler] skipping escrow with missing link", zap.Error(err))
		c.skipped.Add(1)
	case errors.Is(err, ErrConcurrentUpdate):
		log.Debug("[Reconciler] escrow updated concurrently, retry next tick")
		c.skipped.Add(1)
	case errors.Is(err, context.Canceled):
		c.skipped.Add(1)
	default:
		log.Error("[Reconciler] failed to process escrow, retry next tick", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.errors.Add(1)
		r.metrics.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("pass", pass)))
	}
}

func (r *Reconciler) abandon(ctx context.Context, e *Escrow, c *counters) error {
	return r.apply(ctx, e, SignalStale, Change{}, c)
}

func (r *Reconciler) reconcilePending(ctx context.Context, e *Escrow, c *counters) error {
	if e.XummPayloadID == "" {
		return errors.Join(ErrMissingLink, errors.New("no signing payload recorded"))
	}

	p, err := r.signing.Payload(ctx, e.XummPayloadID)
	if err != nil {
		return err
	}

	switch {
	case p.Expired:
		return r.apply(ctx, e, SignalExpired, Change{}, c)
	case p.Resolved && !p.Signed:
		return r.apply(ctx, e, SignalRejected, Change{}, c)
	case p.Resolved && p.Signed && p.TxID != "":
		tx, err := r.ledger.Confirm(ctx, p.TxID)
		if errors.Is(err, ErrTxPending) {
			zap.L().Debug("[Reconciler] signed transaction not validated yet", zap.String("escrow_id", e.ID), zap.String("tx_id", p.TxID))
			c.skipped.Add(1)
			return nil
		}
		if err != nil {
			return err
		}

		hash := tx.Hash
		if hash == "" {
			hash = p.TxID
		}

		if !tx.Succeeded {
			return r.apply(ctx, e, SignalLedgerRejected, Change{TransactionHash: hash, LedgerTx: tx.Raw}, c)
		}

		seq := tx.OfferSequence
		return r.apply(ctx, e, SignalSigned, Change{
			TransactionHash: hash,
			OfferSequence:   &seq,
			LedgerTx:        tx.Raw,
		}, c)
	default:
		c.skipped.Add(1)
		return nil
	}
}

func (r *Reconciler) reconcileActive(ctx context.Context, e *Escrow, ledgerNow int64, c *counters) error {
	if e.ParticipantID == "" {
		return errors.Join(ErrMissingLink, errors.New("participant escrow without participant"))
	}

	wallet, err := r.creators.CreatorWallet(ctx, e.EventID)
	if err != nil {
		return err
	}

	v, err := r.verifier.Participation(ctx, e.EventID, e.ParticipantID)
	if err != nil {
		return err
	}

	if v.Earned() {
		out, err := r.signer.Finish(ctx, e, wallet)
		if err != nil {
			return err
		}
		zap.L().Info("[Reconciler] finishing escrow for verified participant",
			zap.String("escrow_id", e.ID),
			zap.String("energy_saved", v.EnergySaved.String()),
			zap.String("payload_id", out.PayloadID),
		)
		return r.orphaned(r.apply(ctx, e, SignalVerified, Change{FinishPayloadID: out.PayloadID}, c), e, out)
	}

	if ledgerNow < int64(e.CancelableAt()) {
		zap.L().Debug("[Reconciler] cancel deferred until cancel-after",
			zap.String("escrow_id", e.ID),
			zap.Uint32("cancel_after", e.CancelableAt()),
			zap.Int64("ledger_now", ledgerNow),
		)
		c.skipped.Add(1)
		return nil
	}

	out, err := r.signer.Cancel(ctx, e, wallet)
	if err != nil {
		return err
	}
	zap.L().Info("[Reconciler] cancelling escrow for unverified participant",
		zap.String("escrow_id", e.ID),
		zap.String("participation_status", v.Status),
		zap.String("payload_id", out.PayloadID),
	)
	return r.orphaned(r.apply(ctx, e, SignalUnverified, Change{CancelPayloadID: out.PayloadID}, c), e, out)
}

// orphaned logs a signing payload that was created but could not be stored,
// so the duplicate request on the next tick can be traced back.
func (r *Reconciler) orphaned(err error, e *Escrow, out *Outcome) error {
	if err != nil {
		zap.L().Warn("[Reconciler] signing payload created but not recorded",
			zap.String("escrow_id", e.ID),
			zap.String("payload_id", out.PayloadID),
			zap.Error(err),
		)
	}
	return err
}

func (r *Reconciler) apply(ctx context.Context, e *Escrow, sig Signal, change Change, c *counters) error {
	from := e.Status
	to, err := Next(from, sig)
	if errors.Is(err, ErrTerminal) {
		zap.L().Info("[Reconciler] ignoring signal on terminal escrow",
			zap.String("escrow_id", e.ID), zap.String("status", string(from)), zap.Stringer("signal", sig))
		c.skipped.Add(1)
		return nil
	}
	if err != nil {
		return err
	}

	change.Status = to
	if err := r.repo.Transition(ctx, e, change); err != nil {
		return err
	}

	c.transitions.Add(1)
	r.metrics.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
	zap.L().Info("[Reconciler] escrow transitioned",
		zap.String("escrow_id", e.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Stringer("signal", sig),
		zap.String("transaction_hash", e.TransactionHash),
	)

	if e.Kind == KindParticipant && (to == StatusFinished || to == StatusCancelled) {
		r.handOff(ctx, e, c)
	}
	return nil
}

func (r *Reconciler) handOff(ctx context.Context, e *Escrow, c *counters) {
	if r.settler == nil {
		return
	}

	err := r.settler.Settle(ctx, SettleRequest{
		EscrowID:      e.ID,
		EventID:       e.EventID,
		ParticipantID: e.ParticipantID,
		Outcome:       e.Status,
	})
	if err != nil {
		zap.L().Warn("[Reconciler] reward hand-off failed, retry next tick", zap.String("escrow_id", e.ID), zap.Error(err))
		return
	}

	now := r.cfg.Now().UTC()
	if err := r.repo.MarkSettled(ctx, e.ID, now); err != nil {
		zap.L().Warn("[Reconciler] failed to record hand-off", zap.String("escrow_id", e.ID), zap.Error(err))
		return
	}
	e.SettledAt = &now
	c.settled.Add(1)
}

func (r *Reconciler) ledgerNow(ctx context.Context) int64 {
	now, err := r.ledger.CurrentTime(ctx)
	if err != nil {
		fallback := rippletime.FromTime(r.cfg.Now())
		zap.L().Warn("[Reconciler] ledger time unavailable, using local clock", zap.Int64("ripple_now", fallback), zap.Error(err))
		return fallback
	}
	return now
}
