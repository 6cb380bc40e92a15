package escrow_test

import (
	"context"
	"testing"
	"time"

	"curtailment-controlplane/pkg/db/pagination"
	"curtailment-controlplane/services/escrow"
	"curtailment-controlplane/services/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRepositoryTransitionRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := escrow.NewRepository(testutil.NewTestDB(t, &escrow.Escrow{}))

	require.NoError(t, repo.Create(ctx, &escrow.Escrow{
		ID:        "esc-1",
		Kind:      escrow.KindParticipant,
		Amount:    decimal.RequireFromString("12.5"),
		Status:    escrow.StatusPending,
		CreatedAt: testNow,
	}))

	first, err := repo.Get(ctx, "esc-1")
	require.NoError(t, err)
	second, err := repo.Get(ctx, "esc-1")
	require.NoError(t, err)

	seq := uint32(9)
	require.NoError(t, repo.Transition(ctx, first, escrow.Change{
		Status:          escrow.StatusActive,
		TransactionHash: "HASH",
		OfferSequence:   &seq,
	}))
	require.Equal(t, escrow.StatusActive, first.Status)
	require.EqualValues(t, 1, first.Version)

	err = repo.Transition(ctx, second, escrow.Change{Status: escrow.StatusFailed})
	require.ErrorIs(t, err, escrow.ErrConcurrentUpdate)

	got, err := repo.Get(ctx, "esc-1")
	require.NoError(t, err)
	require.Equal(t, escrow.StatusActive, got.Status)
	require.Equal(t, "HASH", got.TransactionHash)
	require.True(t, decimal.RequireFromString("12.5").Equal(got.Amount))
}

func TestRepositoryListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	repo := escrow.NewRepository(testutil.NewTestDB(t, &escrow.Escrow{}))

	for i, status := range []escrow.Status{
		escrow.StatusPending, escrow.StatusPending, escrow.StatusActive, escrow.StatusPending, escrow.StatusFailed,
	} {
		require.NoError(t, repo.Create(ctx, &escrow.Escrow{
			ID:        "esc-" + string(rune('a'+i)),
			Kind:      escrow.KindParticipant,
			Status:    status,
			CreatedAt: testNow.Add(-time.Duration(i) * time.Hour),
		}))
	}

	params := escrow.ListParams{
		Status: []escrow.Status{escrow.StatusPending},
		Page:   pagination.Page{Limit: 2},
	}
	rows, next, err := repo.List(ctx, params)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "esc-a", rows[0].ID)
	require.Equal(t, "esc-b", rows[1].ID)
	require.NotNil(t, next)

	params.Page = *next
	rows, next, err = repo.List(ctx, params)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "esc-d", rows[0].ID)
	require.Nil(t, next)

	cutoff := testNow.Add(-2 * time.Hour)
	rows, _, err = repo.List(ctx, escrow.ListParams{
		Status:        []escrow.Status{escrow.StatusPending},
		CreatedBefore: &cutoff,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "esc-d", rows[0].ID)
}

func TestRepositoryMarkSettledOnce(t *testing.T) {
	ctx := context.Background()
	repo := escrow.NewRepository(testutil.NewTestDB(t, &escrow.Escrow{}))

	require.NoError(t, repo.Create(ctx, &escrow.Escrow{
		ID:        "esc-1",
		Kind:      escrow.KindParticipant,
		Status:    escrow.StatusFinished,
		CreatedAt: testNow,
	}))

	first := testNow.Add(time.Minute)
	require.NoError(t, repo.MarkSettled(ctx, "esc-1", first))
	require.NoError(t, repo.MarkSettled(ctx, "esc-1", first.Add(time.Hour)))

	got, err := repo.Get(ctx, "esc-1")
	require.NoError(t, err)
	require.NotNil(t, got.SettledAt)
	require.True(t, first.Equal(*got.SettledAt))

	rows, _, err := repo.List(ctx, escrow.ListParams{Unsettled: true})
	require.NoError(t, err)
	require.Empty(t, rows)
}
