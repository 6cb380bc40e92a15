package reward

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"curtailment-controlplane/pkg/errutil"
	"curtailment-controlplane/pkg/featureflags"
	"curtailment-controlplane/services/curtailment"
	"curtailment-controlplane/services/escrow"
	"curtailment-controlplane/services/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NextID() string {
	return fmt.Sprintf("id-%04d", s.n.Add(1))
}

type fakePayout struct {
	mu       sync.Mutex
	requests []PayoutRequest
	err      error
}

func (f *fakePayout) RequestPayout(ctx context.Context, req PayoutRequest) (*escrow.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	return &escrow.Outcome{PayloadID: fmt.Sprintf("payload-%d", len(f.requests))}, nil
}

type fakeSigning map[string]*escrow.PayloadStatus

func (f fakeSigning) Payload(ctx context.Context, payloadID string) (*escrow.PayloadStatus, error) {
	if st, ok := f[payloadID]; ok {
		return st, nil
	}
	return nil, escrow.ErrMissingLink
}

type fixture struct {
	db      *gorm.DB
	engine  *Engine
	payout  *fakePayout
	signing fakeSigning
	flags   featureflags.Static
	alerts  []*InvariantViolation
}

var d = decimal.RequireFromString

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t,
		&curtailment.Event{}, &curtailment.Participation{}, &curtailment.UserWallet{},
		&Allocation{}, &Payment{}, &Hold{},
	)

	f := &fixture{
		db:      db,
		payout:  &fakePayout{},
		signing: fakeSigning{},
		flags:   featureflags.Static{},
	}
	f.engine = NewEngine(Options{
		DB:      db,
		Events:  curtailment.NewRepository(db),
		IDs:     &seqIDs{},
		Payout:  f.payout,
		Signing: f.signing,
		Flags:   f.flags,
		Alert:   func(ctx context.Context, v *InvariantViolation) { f.alerts = append(f.alerts, v) },
		Now:     func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) },
	})
	return f
}

// seedEvent creates an event paying rate per kWh, capped at rate x total.
func (f *fixture) seedEvent(t *testing.T, id, rate, total string) {
	t.Helper()
	require.NoError(t, f.db.Create(&curtailment.Event{
		ID:               id,
		RewardPerKwh:     d(rate),
		TotalEnergySaved: d(total),
		Status:           curtailment.EventCompleted,
		CreatedBy:        "creator",
	}).Error)
}

func (f *fixture) seedParticipant(t *testing.T, eventID, userID, energy string, status curtailment.ParticipationStatus) {
	t.Helper()
	require.NoError(t, f.db.Create(&curtailment.Participation{
		EventID:     eventID,
		UserID:      userID,
		Status:      status,
		EnergySaved: d(energy),
	}).Error)
	require.NoError(t, f.db.Create(&curtailment.UserWallet{
		UserID:  userID,
		Address: "r" + userID,
	}).Error)
}

func (f *fixture) settle(eventID, userID string, outcome escrow.Status) error {
	return f.engine.Settle(context.Background(), escrow.SettleRequest{
		EscrowID:      "esc-" + userID,
		EventID:       eventID,
		ParticipantID: userID,
		Outcome:       outcome,
	})
}

func (f *fixture) allocation(t *testing.T, eventID, userID string) Allocation {
	t.Helper()
	var a Allocation
	require.NoError(t, f.db.Where("event_id = ? AND participant_id = ?", eventID, userID).First(&a).Error)
	return a
}

func (f *fixture) payments(t *testing.T) []Payment {
	t.Helper()
	var rows []Payment
	require.NoError(t, f.db.Order("attempt ASC").Find(&rows).Error)
	return rows
}

func TestPotential(t *testing.T) {
	require.True(t, d("6.0").Equal(Potential(d("3.0"), d("2.0"))))
	require.True(t, Potential(d("0"), d("2.0")).IsZero())
	require.True(t, Potential(d("-1"), d("2.0")).IsZero())
	require.True(t, d("1.234567").Equal(Potential(d("1.2345678"), d("1"))))
}

func TestDrops(t *testing.T) {
	require.Equal(t, "6000000", Drops(d("6.0")))
	require.Equal(t, "1", Drops(d("0.0000019")))
	require.Equal(t, "0", Drops(decimal.Zero))
}

func TestPaymentTxMemo(t *testing.T) {
	tx := PaymentTx("rReserve", PayoutRequest{EventID: "evt-1", Destination: "rUser", Amount: d("1.5")})

	require.Equal(t, "Payment", tx["TransactionType"])
	require.Equal(t, "rReserve", tx["Account"])
	require.Equal(t, "1500000", tx["Amount"])

	memos := tx["Memos"].([]map[string]any)
	memo := memos[0]["Memo"].(map[string]string)
	require.Equal(t, hexUpper("XRPAtom Reward: Event evt-1"), memo["MemoData"])
	require.Equal(t, "746578742F706C61696E", memo["MemoType"])
}

func TestAllocateEventIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedEvent(t, "evt-1", "2.0", "3.0")
	f.seedParticipant(t, "evt-1", "user-a", "3.0", curtailment.ParticipationVerified)
	f.seedParticipant(t, "evt-1", "user-b", "0", curtailment.ParticipationMissed)

	rows, err := f.engine.AllocateEvent(context.Background(), "evt-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.True(t, d("6.0").Equal(rows[0].PotentialAmount))
	require.True(t, rows[1].PotentialAmount.IsZero())
	for _, a := range rows {
		require.Equal(t, AllocationAllocated, a.Status)
		require.True(t, a.ActualAmount.IsZero())
	}

	again, err := f.engine.AllocateEvent(context.Background(), "evt-1")
	require.NoError(t, err)
	require.Len(t, again, 2)
	require.Equal(t, rows[0].ID, again[0].ID)
	require.Equal(t, rows[1].ID, again[1].ID)
}

func TestSettleFinishedVerifiesAndRecordsPayment(t *testing.T) {
	f := newFixture(t)
	f.seedEvent(t, "evt-1", "2.0", "3.0")
	f.seedParticipant(t, "evt-1", "user-a", "3.0", curtailment.ParticipationVerified)

	require.NoError(t, f.settle("evt-1", "user-a", escrow.StatusFinished))

	a := f.allocation(t, "evt-1", "user-a")
	require.Equal(t, AllocationVerified, a.Status)
	require.True(t, d("6.0").Equal(a.ActualAmount))
	require.NotNil(t, a.VerifiedAt)

	payments := f.payments(t)
	require.Len(t, payments, 1)
	p := payments[0]
	require.Equal(t, 1, p.Attempt)
	require.Equal(t, a.ID, p.AllocationID)
	require.Equal(t, PaymentPendingSignature, p.Status)
	require.Equal(t, "payload-1", p.PayloadID)
	require.Equal(t, "ruser-a", p.Destination)
	require.Equal(t, p.GenerateHash(), p.Hash)

	meta := p.Meta()
	require.Equal(t, "esc-user-a", meta.EscrowID)
	require.True(t, d("3.0").Equal(meta.EnergySaved))
	require.True(t, d("2.0").Equal(meta.RewardPerKwh))

	require.Len(t, f.payout.requests, 1)
	require.True(t, d("6.0").Equal(f.payout.requests[0].Amount))
	require.True(t, d("3.0").Equal(f.payout.requests[0].EnergySaved))

	// redelivered hand-off
	require.NoError(t, f.settle("evt-1", "user-a", escrow.StatusFinished))
	require.Len(t, f.payments(t), 1)
	require.Len(t, f.payout.requests, 1)
}

func TestSettleWithoutSavingsPaysNothing(t *testing.T) {
	f := newFixture(t)
	f.seedEvent(t, "evt-1", "2.0", "3.0")
	f.seedParticipant(t, "evt-1", "user-a", "3.0", curtailment.ParticipationVerified)
	f.seedParticipant(t, "evt-1", "user-b", "0", curtailment.ParticipationVerified)

	require.NoError(t, f.settle("evt-1", "user-a", escrow.StatusCancelled))
	require.NoError(t, f.settle("evt-1", "user-b", escrow.StatusFinished))

	for _, user := range []string{"user-a", "user-b"} {
		a := f.allocation(t, "evt-1", user)
		require.Equal(t, AllocationCancelled, a.Status)
		require.True(t, a.ActualAmount.IsZero())
	}
	require.Empty(t, f.payments(t))
	require.Empty(t, f.payout.requests)
}

func TestSettleUsesVerifiedSavingsAfterEarlyAllocation(t *testing.T) {
	tests := []struct {
		name        string
		provisional string
		verified    string
		want        string
	}{
		{name: "saving reported after allocation", provisional: "0", verified: "3.0", want: "6.0"},
		{name: "saving revised down", provisional: "3.0", verified: "1.5", want: "3.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedEvent(t, "evt-1", "2.0", "3.0")
			f.seedParticipant(t, "evt-1", "user-a", tt.provisional, curtailment.ParticipationRegistered)

			_, err := f.engine.AllocateEvent(context.Background(), "evt-1")
			require.NoError(t, err)

			require.NoError(t, f.db.Model(&curtailment.Participation{}).
				Where("event_id = ? AND user_id = ?", "evt-1", "user-a").
				Updates(map[string]any{
					"status":       curtailment.ParticipationVerified,
					"energy_saved": d(tt.verified),
				}).Error)

			require.NoError(t, f.settle("evt-1", "user-a", escrow.StatusFinished))

			a := f.allocation(t, "evt-1", "user-a")
			require.Equal(t, AllocationVerified, a.Status)
			require.True(t, d(tt.want).Equal(a.ActualAmount), "actual %s", a.ActualAmount)
			require.True(t, d(tt.want).Equal(a.PotentialAmount), "potential %s", a.PotentialAmount)

			payments := f.payments(t)
			require.Len(t, payments, 1)
			require.True(t, d(tt.want).Equal(payments[0].Amount))
		})
	}
}

func TestSettleOverCapHaltsEvent(t *testing.T) {
	f := newFixture(t)
	f.seedEvent(t, "evt-1", "2.0", "3.0")
	f.seedParticipant(t, "evt-1", "user-a", "3.0", curtailment.ParticipationVerified)
	f.seedParticipant(t, "evt-1", "user-b", "1.0", curtailment.ParticipationVerified)

	_, err := f.engine.AllocateEvent(context.Background(), "evt-1")
	require.NoError(t, err)
	require.NoError(t, f.settle("evt-1", "user-a", escrow.StatusFinished))

	err = f.settle("evt-1", "user-b", escrow.StatusFinished)
	var violation *InvariantViolation
	require.ErrorAs(t, err, &violation)
	require.Equal(t, errutil.StatusInvariantViolation, errutil.StatusOf(err))
	require.True(t, d("6").Equal(violation.Cap))
	require.True(t, d("8").Equal(violation.Attempted))
	require.Len(t, f.alerts, 1)

	// nothing was truncated to fit
	b := f.allocation(t, "evt-1", "user-b")
	require.Equal(t, AllocationAllocated, b.Status)
	require.True(t, b.ActualAmount.IsZero())
	require.Len(t, f.payments(t), 1)

	err = f.settle("evt-1", "user-b", escrow.StatusFinished)
	require.ErrorIs(t, err, ErrEventHeld)
	_, err = f.engine.AllocateEvent(context.Background(), "evt-1")
	require.ErrorIs(t, err, ErrEventHeld)

	require.NoError(t, f.engine.ReleaseHold(context.Background(), "evt-1"))
	err = f.engine.ReleaseHold(context.Background(), "evt-1")
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestSettleRespectsExplicitBudget(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Create(&curtailment.Event{
		ID:               "evt-1",
		RewardPerKwh:     d("2.0"),
		TotalEnergySaved: d("10"),
		RewardBudget:     d("5"),
		Status:           curtailment.EventCompleted,
	}).Error)
	f.seedParticipant(t, "evt-1", "user-a", "3.0", curtailment.ParticipationVerified)

	err := f.settle("evt-1", "user-a", escrow.StatusFinished)
	var violation *InvariantViolation
	require.ErrorAs(t, err, &violation)
	require.True(t, d("5").Equal(violation.Cap))
}

func TestReconcilePaymentsCompletesSignedPayout(t *testing.T) {
	f := newFixture(t)
	f.seedEvent(t, "evt-1", "2.0", "3.0")
	f.seedParticipant(t, "evt-1", "user-a", "3.0", curtailment.ParticipationVerified)
	require.NoError(t, f.settle("evt-1", "user-a", escrow.StatusFinished))

	// not resolved yet
	f.signing["payload-1"] = &escrow.PayloadStatus{}
	require.NoError(t, f.engine.ReconcilePayments(context.Background()))
	require.Equal(t, PaymentPendingSignature, f.payments(t)[0].Status)

	f.signing["payload-1"] = &escrow.PayloadStatus{Resolved: true, Signed: true, TxID: "TX1"}
	require.NoError(t, f.engine.ReconcilePayments(context.Background()))

	p := f.payments(t)[0]
	require.Equal(t, PaymentCompleted, p.Status)
	require.Equal(t, "TX1", p.TransactionHash)
	require.NotNil(t, p.CompletedAt)

	var part curtailment.Participation
	require.NoError(t, f.db.Where("event_id = ? AND user_id = ?", "evt-1", "user-a").First(&part).Error)
	require.True(t, part.RewardClaimed)
	require.Equal(t, "TX1", part.RewardTransactionID)
	require.True(t, d("6").Equal(part.RewardAmount))

	var wallet curtailment.UserWallet
	require.NoError(t, f.db.Where("user_id = ?", "user-a").First(&wallet).Error)
	require.True(t, d("6").Equal(wallet.TotalRewardsClaimed))

	var ev curtailment.Event
	require.NoError(t, f.db.Where("id = ?", "evt-1").First(&ev).Error)
	require.True(t, d("6").Equal(ev.TotalRewardsPaid))
	require.True(t, ev.TotalRewardsPaid.LessThanOrEqual(ev.RewardCap()))

	// completion is recorded once
	require.NoError(t, f.engine.ReconcilePayments(context.Background()))
	require.NoError(t, f.db.Where("id = ?", "evt-1").First(&ev).Error)
	require.True(t, d("6").Equal(ev.TotalRewardsPaid))
}

func TestRetryPaymentAppendsAttempt(t *testing.T) {
	f := newFixture(t)
	f.seedEvent(t, "evt-1", "2.0", "3.0")
	f.seedParticipant(t, "evt-1", "user-a", "3.0", curtailment.ParticipationVerified)
	require.NoError(t, f.settle("evt-1", "user-a", escrow.StatusFinished))

	f.signing["payload-1"] = &escrow.PayloadStatus{Expired: true}
	require.NoError(t, f.engine.ReconcilePayments(context.Background()))

	first := f.payments(t)[0]
	require.Equal(t, PaymentFailed, first.Status)
	require.Equal(t, "payload expired", first.FailureReason)

	next, err := f.engine.RetryPayment(context.Background(), first.ID)
	require.NoError(t, err)
	require.Equal(t, 2, next.Attempt)
	require.Equal(t, first.ID, next.PreviousPaymentID)
	require.Equal(t, first.Hash, next.PreviousHash)
	require.Equal(t, "payload-2", next.PayloadID)
	require.Equal(t, first.Meta(), next.Meta())

	rows := f.payments(t)
	require.Len(t, rows, 2)
	// the failed attempt is preserved as written
	require.Equal(t, PaymentFailed, rows[0].Status)
	require.Equal(t, first.Hash, rows[0].Hash)

	_, err = f.engine.RetryPayment(context.Background(), first.ID)
	require.ErrorIs(t, err, ErrNotRetryable)
	_, err = f.engine.RetryPayment(context.Background(), next.ID)
	require.ErrorIs(t, err, ErrNotRetryable)

	history, err := f.engine.Payments(context.Background(), first.AllocationID)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestPausedPayoutsAreRequestedLater(t *testing.T) {
	f := newFixture(t)
	f.seedEvent(t, "evt-1", "2.0", "3.0")
	f.seedParticipant(t, "evt-1", "user-a", "3.0", curtailment.ParticipationVerified)

	f.flags[featureflags.RewardPayoutsPaused] = true
	require.NoError(t, f.settle("evt-1", "user-a", escrow.StatusFinished))
	require.Empty(t, f.payments(t)[0].PayloadID)
	require.Empty(t, f.payout.requests)

	f.flags[featureflags.RewardPayoutsPaused] = false
	require.NoError(t, NewPaymentPass(f.engine).Run(context.Background()))
	require.Equal(t, "payload-1", f.payments(t)[0].PayloadID)
}

func TestPayoutFailureKeepsPaymentPending(t *testing.T) {
	f := newFixture(t)
	f.seedEvent(t, "evt-1", "2.0", "3.0")
	f.seedParticipant(t, "evt-1", "user-a", "3.0", curtailment.ParticipationVerified)

	f.payout.err = errors.New("xumm unavailable")
	require.NoError(t, f.settle("evt-1", "user-a", escrow.StatusFinished))

	p := f.payments(t)[0]
	require.Equal(t, PaymentPendingSignature, p.Status)
	require.Empty(t, p.PayloadID)
}

func TestSettleRejectsNonTerminalOutcome(t *testing.T) {
	f := newFixture(t)
	err := f.settle("evt-1", "user-a", escrow.StatusActive)
	require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(err))
}
