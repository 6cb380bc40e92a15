package curtailment

import (
	"context"
	"errors"
	"fmt"

	"curtailment-controlplane/services/escrow"

	"gorm.io/gorm"
)

// Verifier answers the reconciler's participation and creator wallet
// lookups from the event tables.
type Verifier struct {
	repo Repository
}

func NewVerifier(repo Repository) *Verifier {
	return &Verifier{repo: repo}
}

func (v *Verifier) Participation(ctx context.Context, eventID, participantID string) (*escrow.Verification, error) {
	p, err := v.repo.Participation(ctx, eventID, participantID)
	if err != nil {
		return nil, missing(err, "participation %s/%s", eventID, participantID)
	}

	return &escrow.Verification{
		Verified:    p.Verified(),
		Status:      string(p.Status),
		EnergySaved: p.EnergySaved,
	}, nil
}

func (v *Verifier) CreatorWallet(ctx context.Context, eventID string) (string, error) {
	ev, err := v.repo.Event(ctx, eventID)
	if err != nil {
		return "", missing(err, "event %s", eventID)
	}
	if ev.CreatedBy == "" {
		return "", fmt.Errorf("%w: event %s has no creator", escrow.ErrMissingLink, eventID)
	}

	w, err := v.repo.Wallet(ctx, ev.CreatedBy)
	if err != nil {
		return "", missing(err, "wallet of creator %s", ev.CreatedBy)
	}
	if w.Address == "" {
		return "", fmt.Errorf("%w: creator %s has no wallet address", escrow.ErrMissingLink, ev.CreatedBy)
	}
	return w.Address, nil
}

func missing(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", escrow.ErrMissingLink, fmt.Sprintf(format, args...))
	}
	return err
}
