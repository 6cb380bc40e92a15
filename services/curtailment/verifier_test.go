package curtailment

import (
	"context"
	"testing"

	"curtailment-controlplane/services/escrow"
	"curtailment-controlplane/services/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestVerifierParticipation(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t, &Event{}, &Participation{}, &UserWallet{})
	v := NewVerifier(NewRepository(db))

	require.NoError(t, db.Create(&Participation{
		EventID:     "evt-1",
		UserID:      "user-1",
		Status:      ParticipationVerified,
		EnergySaved: decimal.RequireFromString("1.5"),
	}).Error)
	require.NoError(t, db.Create(&Participation{
		EventID: "evt-1",
		UserID:  "user-2",
		Status:  ParticipationMissed,
	}).Error)

	got, err := v.Participation(ctx, "evt-1", "user-1")
	require.NoError(t, err)
	require.True(t, got.Earned())
	require.Equal(t, "verified", got.Status)

	got, err = v.Participation(ctx, "evt-1", "user-2")
	require.NoError(t, err)
	require.False(t, got.Earned())

	_, err = v.Participation(ctx, "evt-1", "user-3")
	require.ErrorIs(t, err, escrow.ErrMissingLink)
}

func TestVerifierCreatorWallet(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t, &Event{}, &Participation{}, &UserWallet{})
	v := NewVerifier(NewRepository(db))

	require.NoError(t, db.Create(&Event{ID: "evt-1", CreatedBy: "creator-1", Status: EventCompleted}).Error)
	require.NoError(t, db.Create(&Event{ID: "evt-2", CreatedBy: "creator-2", Status: EventCompleted}).Error)
	require.NoError(t, db.Create(&UserWallet{UserID: "creator-1", Address: "rCreator1"}).Error)

	addr, err := v.CreatorWallet(ctx, "evt-1")
	require.NoError(t, err)
	require.Equal(t, "rCreator1", addr)

	_, err = v.CreatorWallet(ctx, "evt-2")
	require.ErrorIs(t, err, escrow.ErrMissingLink)

	_, err = v.CreatorWallet(ctx, "evt-404")
	require.ErrorIs(t, err, escrow.ErrMissingLink)
}

func TestEventRewardCap(t *testing.T) {
	ev := &Event{
		RewardPerKwh:     decimal.RequireFromString("2.0"),
		TotalEnergySaved: decimal.RequireFromString("10"),
	}
	require.True(t, decimal.RequireFromString("20").Equal(ev.RewardCap()))

	ev.RewardBudget = decimal.RequireFromString("15")
	require.True(t, decimal.RequireFromString("15").Equal(ev.RewardCap()))

	ev.RewardBudget = decimal.RequireFromString("50")
	require.True(t, decimal.RequireFromString("20").Equal(ev.RewardCap()))
}
