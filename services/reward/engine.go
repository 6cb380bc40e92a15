package reward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"curtailment-controlplane/pkg/errutil"
	"curtailment-controlplane/pkg/featureflags"
	"curtailment-controlplane/pkg/gen"
	"curtailment-controlplane/pkg/lock"
	"curtailment-controlplane/pkg/rediskey"
	"curtailment-controlplane/services/curtailment"
	"curtailment-controlplane/services/escrow"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const lockTTL = 30 * time.Second

// AlertFunc is called once per detected invariant violation.
type AlertFunc func(ctx context.Context, v *InvariantViolation)

func logAlert(ctx context.Context, v *InvariantViolation) {
	zap.L().Error("[ALERT] reward allocation exceeds event cap, event halted",
		zap.String("event_id", v.EventID),
		zap.String("cap", v.Cap.String()),
		zap.String("attempted", v.Attempted.String()),
	)
}

type Options struct {
	DB      *gorm.DB
	Events  curtailment.Repository
	IDs     gen.IDGenerator
	Payout  Payout
	Signing escrow.SigningGateway
	// Ledger, when set, confirms signed payouts before they complete.
	Ledger escrow.LedgerGateway
	Locker lock.Locker
	Flags  featureflags.FeatureFlag
	Alert  AlertFunc
	Tracer trace.TracerProvider
	Meter  metric.MeterProvider
	Now    func() time.Time
}

type Engine struct {
	db      *gorm.DB
	events  curtailment.Repository
	ids     gen.IDGenerator
	payout  Payout
	signing escrow.SigningGateway
	ledger  escrow.LedgerGateway
	locker  lock.Locker
	flags   featureflags.FeatureFlag
	alert   AlertFunc
	now     func() time.Time

	tracer     trace.Tracer
	violations metric.Int64Counter
	payments   metric.Int64Counter
}

func NewEngine(o Options) *Engine {
	if o.Locker == nil {
		o.Locker = lock.Noop{}
	}
	if o.Alert == nil {
		o.Alert = logAlert
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Tracer == nil {
		o.Tracer = otel.GetTracerProvider()
	}
	if o.Meter == nil {
		o.Meter = otel.GetMeterProvider()
	}

	meter := o.Meter.Meter("curtailment/reward")
	violations, _ := meter.Int64Counter("reward.invariant_violations",
		metric.WithDescription("Allocations rejected for exceeding the event cap"))
	payments, _ := meter.Int64Counter("reward.payments",
		metric.WithDescription("Reward payment attempts by outcome"))

	return &Engine{
		db:         o.DB,
		events:     o.Events,
		ids:        o.IDs,
		payout:     o.Payout,
		signing:    o.Signing,
		ledger:     o.Ledger,
		locker:     o.Locker,
		flags:      o.Flags,
		alert:      o.Alert,
		now:        o.Now,
		tracer:     o.Tracer.Tracer("curtailment/reward"),
		violations: violations,
		payments:   payments,
	}
}

// AllocateEvent creates a provisional allocation for every participation of
// the event that has none yet and returns all of the event's allocations.
func (e *Engine) AllocateEvent(ctx context.Context, eventID string) ([]Allocation, error) {
	ctx, span := e.tracer.Start(ctx, "reward.allocate", trace.WithAttributes(attribute.String("event.id", eventID)))
	defer span.End()

	release, err := e.lockEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := e.checkHold(ctx, eventID); err != nil {
		return nil, err
	}

	ev, err := e.event(ctx, eventID)
	if err != nil {
		return nil, err
	}

	parts, err := e.events.Participations(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	rows := make([]Allocation, 0, len(parts))
	for _, p := range parts {
		rows = append(rows, Allocation{
			ID:              e.ids.NextID(),
			EventID:         eventID,
			ParticipantID:   p.UserID,
			PotentialAmount: Potential(p.EnergySaved, ev.RewardPerKwh),
			ActualAmount:    decimal.Zero,
			Status:          AllocationAllocated,
			CreatedAt:       now,
		})
	}

	if len(rows) > 0 {
		if err := e.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&rows).Error; err != nil {
			zap.L().Error("failed to create allocations", zap.String("event_id", eventID), zap.Error(err))
			return nil, err
		}
	}

	zap.L().Info("event allocated", zap.String("event_id", eventID), zap.Int("participations", len(parts)))
	return e.Allocations(ctx, eventID)
}

func (e *Engine) Allocations(ctx context.Context, eventID string) ([]Allocation, error) {
	var rows []Allocation
	if err := e.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("participant_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Payments returns every attempt for an allocation, oldest first.
func (e *Engine) Payments(ctx context.Context, allocationID string) ([]Payment, error) {
	var rows []Payment
	if err := e.db.WithContext(ctx).
		Where("allocation_id = ?", allocationID).
		Order("attempt ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Settle finalizes the allocation behind a terminal participant escrow.
// It is idempotent: a finalized allocation is left untouched.
func (e *Engine) Settle(ctx context.Context, req escrow.SettleRequest) error {
	ctx, span := e.tracer.Start(ctx, "reward.settle", trace.WithAttributes(
		attribute.String("escrow.id", req.EscrowID),
		attribute.String("event.id", req.EventID),
	))
	defer span.End()

	log := zap.L().With(
		zap.String("escrow_id", req.EscrowID),
		zap.String("event_id", req.EventID),
		zap.String("participant_id", req.ParticipantID),
		zap.String("outcome", string(req.Outcome)),
	)

	if req.Outcome != escrow.StatusFinished && req.Outcome != escrow.StatusCancelled {
		return errutil.BadRequest(fmt.Sprintf("escrow outcome %s cannot be settled", req.Outcome), nil)
	}

	release, err := e.lockEvent(ctx, req.EventID)
	if err != nil {
		return err
	}
	defer release()

	if err := e.checkHold(ctx, req.EventID); err != nil {
		return err
	}

	ev, err := e.event(ctx, req.EventID)
	if err != nil {
		return err
	}

	part, err := e.events.Participation(ctx, req.EventID, req.ParticipantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errutil.NotFound("participation not found", err)
		}
		return err
	}

	earned := req.Outcome == escrow.StatusFinished && part.Verified() && part.EnergySaved.IsPositive()

	var (
		violation *InvariantViolation
		payment   *Payment
	)
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		alloc, err := e.allocationFor(ctx, tx, ev, part)
		if err != nil {
			return err
		}
		if alloc.Status != AllocationAllocated {
			log.Info("allocation already finalized", zap.String("status", string(alloc.Status)))
			return nil
		}

		// provisional potentials predate verification; settle on the verified saving
		potential := Potential(part.EnergySaved, ev.RewardPerKwh)
		actual := decimal.Zero
		if earned {
			actual = potential
		}

		if actual.IsPositive() {
			total, err := allocatedTotal(ctx, tx, ev.ID, alloc.ID)
			if err != nil {
				return err
			}
			attempted := total.Add(actual)
			if limit := ev.RewardCap(); attempted.GreaterThan(limit) {
				violation = &InvariantViolation{EventID: ev.ID, Cap: limit, Attempted: attempted}
				return violation
			}
		}

		status := AllocationCancelled
		if actual.IsPositive() {
			status = AllocationVerified
		}

		now := e.now().UTC()
		res := tx.Model(&Allocation{}).
			Where("id = ? AND status = ?", alloc.ID, AllocationAllocated).
			Updates(map[string]any{
				"potential_amount": potential,
				"actual_amount":    actual,
				"status":           status,
				"verified_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 || !actual.IsPositive() {
			return nil
		}

		dest, err := destination(ctx, e.events.WithTx(tx), part)
		if err != nil {
			return err
		}

		payment = &Payment{
			ID:            e.ids.NextID(),
			EventID:       ev.ID,
			ParticipantID: part.UserID,
			AllocationID:  alloc.ID,
			Attempt:       1,
			Amount:        actual,
			Destination:   dest,
			Status:        PaymentPendingSignature,
			Metadata: encodeMeta(PaymentMeta{
				EscrowID:     req.EscrowID,
				EnergySaved:  part.EnergySaved,
				RewardPerKwh: ev.RewardPerKwh,
			}),
			CreatedAt: now,
		}
		payment.Hash = payment.GenerateHash()
		return tx.Create(payment).Error
	})

	if violation != nil {
		e.hold(ctx, violation)
		span.RecordError(violation)
		return violation
	}
	if err != nil {
		log.Error("failed to settle allocation", zap.Error(err))
		return err
	}

	if payment != nil {
		log.Info("allocation verified, payment recorded", zap.String("payment_id", payment.ID), zap.String("amount", payment.Amount.String()))
		// a failed request is retried by payment reconciliation
		_ = e.requestPayout(ctx, payment)
	}
	return nil
}

// ReconcilePayments drives every payment awaiting a signature forward:
// requests missing payloads and records signed, rejected or expired ones.
func (e *Engine) ReconcilePayments(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "reward.reconcile_payments")
	defer span.End()

	var pending []Payment
	if err := e.db.WithContext(ctx).
		Where("status = ?", PaymentPendingSignature).
		Order("id ASC").
		Find(&pending).Error; err != nil {
		return err
	}

	for i := range pending {
		if ctx.Err() != nil {
			return nil
		}
		e.reconcilePayment(ctx, &pending[i])
	}
	return nil
}

func (e *Engine) reconcilePayment(ctx context.Context, p *Payment) {
	log := zap.L().With(zap.String("payment_id", p.ID), zap.String("event_id", p.EventID))

	release, err := e.locker.Acquire(ctx, rediskey.BuildPaymentLockKey(p.ID), lockTTL)
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		return
	case err != nil:
		log.Warn("payment lock unavailable", zap.Error(err))
		release = func() {}
	}
	defer release()

	if p.PayloadID == "" {
		_ = e.requestPayout(ctx, p)
		return
	}

	st, err := e.signing.Payload(ctx, p.PayloadID)
	if errors.Is(err, escrow.ErrMissingLink) {
		e.fail(ctx, p, "payload not found")
		return
	}
	if err != nil {
		log.Warn("failed to query payout payload, retry next tick", zap.Error(err))
		return
	}

	switch {
	case st.Expired:
		e.fail(ctx, p, "payload expired")
	case st.Resolved && !st.Signed:
		e.fail(ctx, p, "payload rejected")
	case st.Resolved && st.Signed && st.TxID != "":
		hash := st.TxID
		if e.ledger != nil {
			tx, err := e.ledger.Confirm(ctx, st.TxID)
			if errors.Is(err, escrow.ErrTxPending) {
				return
			}
			if err != nil {
				log.Warn("failed to confirm payout, retry next tick", zap.Error(err))
				return
			}
			if !tx.Succeeded {
				e.fail(ctx, p, "ledger rejected payment")
				return
			}
			if tx.Hash != "" {
				hash = tx.Hash
			}
		}
		if err := e.complete(ctx, p, hash); err != nil {
			log.Error("failed to record completed payment", zap.Error(err))
		}
	}
}

func (e *Engine) complete(ctx context.Context, p *Payment, hash string) error {
	now := e.now().UTC()
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Payment{}).
			Where("id = ? AND status = ?", p.ID, PaymentPendingSignature).
			Updates(map[string]any{
				"status":           PaymentCompleted,
				"transaction_hash": hash,
				"completed_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		events := e.events.WithTx(tx)
		if err := events.ClaimReward(ctx, p.EventID, p.ParticipantID, p.Amount, hash); err != nil {
			return err
		}
		if err := events.AddWalletClaimed(ctx, p.ParticipantID, p.Amount); err != nil {
			return err
		}
		if err := events.AddRewardsPaid(ctx, p.EventID, p.Amount); err != nil {
			return err
		}

		e.payments.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(PaymentCompleted))))
		zap.L().Info("reward payment completed",
			zap.String("payment_id", p.ID),
			zap.String("transaction_hash", hash),
			zap.String("amount", p.Amount.String()),
		)
		return nil
	})
}

func (e *Engine) fail(ctx context.Context, p *Payment, reason string) {
	res := e.db.WithContext(ctx).
		Model(&Payment{}).
		Where("id = ? AND status = ?", p.ID, PaymentPendingSignature).
		Updates(map[string]any{
			"status":         PaymentFailed,
			"failure_reason": reason,
			"completed_at":   e.now().UTC(),
		})
	if res.Error != nil {
		zap.L().Error("failed to record failed payment", zap.String("payment_id", p.ID), zap.Error(res.Error))
		return
	}
	if res.RowsAffected > 0 {
		e.payments.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(PaymentFailed))))
		zap.L().Warn("reward payment failed", zap.String("payment_id", p.ID), zap.String("reason", reason))
	}
}

// RetryPayment appends a new attempt after the latest attempt failed.
func (e *Engine) RetryPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var prior Payment
	if err := e.db.WithContext(ctx).Where("id = ?", paymentID).First(&prior).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("payment not found", err)
		}
		return nil, err
	}

	if prior.Status != PaymentFailed {
		return nil, errutil.Conflict("only failed payments can be retried", ErrNotRetryable)
	}

	var newer int64
	if err := e.db.WithContext(ctx).Model(&Payment{}).
		Where("allocation_id = ? AND attempt > ?", prior.AllocationID, prior.Attempt).
		Count(&newer).Error; err != nil {
		return nil, err
	}
	if newer > 0 {
		return nil, errutil.Conflict("payment already retried", ErrNotRetryable)
	}

	if err := e.checkHold(ctx, prior.EventID); err != nil {
		return nil, err
	}

	next := &Payment{
		ID:                e.ids.NextID(),
		EventID:           prior.EventID,
		ParticipantID:     prior.ParticipantID,
		AllocationID:      prior.AllocationID,
		Attempt:           prior.Attempt + 1,
		PreviousPaymentID: prior.ID,
		Amount:            prior.Amount,
		Destination:       prior.Destination,
		Status:            PaymentPendingSignature,
		Metadata:          prior.Metadata,
		PreviousHash:      prior.Hash,
		CreatedAt:         e.now().UTC(),
	}
	next.Hash = next.GenerateHash()

	if err := e.db.WithContext(ctx).Create(next).Error; err != nil {
		return nil, err
	}

	zap.L().Info("reward payment retried", zap.String("payment_id", next.ID), zap.String("previous_payment_id", prior.ID), zap.Int("attempt", next.Attempt))
	_ = e.requestPayout(ctx, next)
	return next, nil
}

// ReleaseHold clears the settlement hold of an event so allocation resumes.
func (e *Engine) ReleaseHold(ctx context.Context, eventID string) error {
	res := e.db.WithContext(ctx).
		Model(&Hold{}).
		Where("event_id = ? AND released_at IS NULL", eventID).
		Update("released_at", e.now().UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.NotFound("no active settlement hold", nil)
	}

	zap.L().Info("settlement hold released", zap.String("event_id", eventID))
	return nil
}

func (e *Engine) requestPayout(ctx context.Context, p *Payment) error {
	if e.payout == nil {
		return nil
	}
	if e.flags != nil && e.flags.Enabled(ctx, featureflags.RewardPayoutsPaused, false) {
		zap.L().Info("reward payouts paused, payload deferred", zap.String("payment_id", p.ID))
		return nil
	}

	out, err := e.payout.RequestPayout(ctx, PayoutRequest{
		PaymentID:     p.ID,
		EventID:       p.EventID,
		ParticipantID: p.ParticipantID,
		Destination:   p.Destination,
		Amount:        p.Amount,
		EnergySaved:   p.Meta().EnergySaved,
	})
	if err != nil {
		zap.L().Warn("failed to request payout payload, retry next tick", zap.String("payment_id", p.ID), zap.Error(err))
		return err
	}

	if err := e.db.WithContext(ctx).
		Model(&Payment{}).
		Where("id = ? AND payload_id = ?", p.ID, "").
		Update("payload_id", out.PayloadID).Error; err != nil {
		return err
	}
	p.PayloadID = out.PayloadID
	return nil
}

func (e *Engine) hold(ctx context.Context, v *InvariantViolation) {
	e.violations.Add(ctx, 1, metric.WithAttributes(attribute.String("event_id", v.EventID)))

	h := &Hold{
		ID:        e.ids.NextID(),
		EventID:   v.EventID,
		Reason:    v.Error(),
		Cap:       v.Cap,
		Attempted: v.Attempted,
		CreatedAt: e.now().UTC(),
	}
	if err := e.db.WithContext(ctx).Create(h).Error; err != nil {
		zap.L().Error("failed to place settlement hold", zap.String("event_id", v.EventID), zap.Error(err))
	}

	e.alert(ctx, v)
}

func (e *Engine) checkHold(ctx context.Context, eventID string) error {
	var n int64
	if err := e.db.WithContext(ctx).
		Model(&Hold{}).
		Where("event_id = ? AND released_at IS NULL", eventID).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: event %s", ErrEventHeld, eventID)
	}
	return nil
}

func (e *Engine) lockEvent(ctx context.Context, eventID string) (func(), error) {
	release, err := e.locker.Acquire(ctx, rediskey.BuildRewardLockKey(eventID), lockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, errutil.Conflict("event reward bookkeeping busy", err)
	}
	if err != nil {
		zap.L().Warn("reward lock unavailable, continuing", zap.String("event_id", eventID), zap.Error(err))
		return func() {}, nil
	}
	return release, nil
}

func (e *Engine) event(ctx context.Context, eventID string) (*curtailment.Event, error) {
	ev, err := e.events.Event(ctx, eventID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.NotFound("event not found", err)
	}
	return ev, err
}

func (e *Engine) allocationFor(ctx context.Context, tx *gorm.DB, ev *curtailment.Event, part *curtailment.Participation) (*Allocation, error) {
	var a Allocation
	err := tx.WithContext(ctx).
		Where("event_id = ? AND participant_id = ?", ev.ID, part.UserID).
		First(&a).Error
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	a = Allocation{
		ID:              e.ids.NextID(),
		EventID:         ev.ID,
		ParticipantID:   part.UserID,
		PotentialAmount: Potential(part.EnergySaved, ev.RewardPerKwh),
		ActualAmount:    decimal.Zero,
		Status:          AllocationAllocated,
		CreatedAt:       e.now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func allocatedTotal(ctx context.Context, tx *gorm.DB, eventID, excludeID string) (decimal.Decimal, error) {
	var others []Allocation
	if err := tx.WithContext(ctx).
		Select("id", "actual_amount").
		Where("event_id = ? AND id <> ?", eventID, excludeID).
		Find(&others).Error; err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, a := range others {
		total = total.Add(a.ActualAmount)
	}
	return total, nil
}

func destination(ctx context.Context, events curtailment.Repository, part *curtailment.Participation) (string, error) {
	w, err := events.Wallet(ctx, part.UserID)
	switch {
	case err == nil && w.Address != "":
		return w.Address, nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return "", err
	}
	if part.WalletAddress != "" {
		return part.WalletAddress, nil
	}
	return "", errutil.NotFound("participant has no wallet", nil)
}
