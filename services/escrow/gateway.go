package escrow

//go:generate mockgen -source=gateway.go -destination=mocks/gateway.go -package=mocks

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrMissingLink marks a referenced event, participation or wallet that
	// cannot be found yet. The escrow is skipped, not failed.
	ErrMissingLink = errors.New("escrow: linked record not found")
	// ErrTxPending means the ledger does not (yet) know a validated
	// outcome for the transaction.
	ErrTxPending = errors.New("escrow: transaction not validated yet")
)

type PayloadStatus struct {
	Resolved bool
	Signed   bool
	Expired  bool
	TxID     string
}

type LedgerTx struct {
	Hash          string
	Validated     bool
	Succeeded     bool
	OfferSequence uint32
	Raw           []byte
}

// Outcome describes a finish or cancel request accepted by the signer.
type Outcome struct {
	PayloadID string
	SignURL   string
}

type Verification struct {
	Verified    bool
	Status      string
	EnergySaved decimal.Decimal
}

// Earned reports whether the participation qualifies for finishing.
func (v *Verification) Earned() bool {
	return v != nil && v.Verified && v.EnergySaved.IsPositive()
}

type SigningGateway interface {
	Payload(ctx context.Context, payloadID string) (*PayloadStatus, error)
}

type LedgerGateway interface {
	Confirm(ctx context.Context, txID string) (*LedgerTx, error)
	CurrentTime(ctx context.Context) (int64, error)
}

type LedgerSigner interface {
	Finish(ctx context.Context, e *Escrow, signer string) (*Outcome, error)
	Cancel(ctx context.Context, e *Escrow, signer string) (*Outcome, error)
}

type ParticipationVerifier interface {
	Participation(ctx context.Context, eventID, participantID string) (*Verification, error)
}

type CreatorDirectory interface {
	CreatorWallet(ctx context.Context, eventID string) (string, error)
}

type SettleRequest struct {
	EscrowID      string `json:"escrow_id"`
	EventID       string `json:"event_id"`
	ParticipantID string `json:"participant_id"`
	Outcome       Status `json:"outcome"`
}

// Settler hands a terminal escrow over to reward bookkeeping.
type Settler interface {
	Settle(ctx context.Context, req SettleRequest) error
}
