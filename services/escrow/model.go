package escrow

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusActive    Status = "Active"
	StatusFinished  Status = "Finished"
	StatusCancelled Status = "Cancelled"
	StatusFailed    Status = "Failed"
	StatusAbandoned Status = "Abandoned"
)

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusCancelled, StatusFailed, StatusAbandoned:
		return true
	}
	return false
}

type Kind string

const (
	KindParticipant Kind = "Participant"
	KindMainEvent   Kind = "MainEvent"
)

// DefaultCancelWindow is how long after FinishAfter an escrow becomes
// cancellable when no explicit CancelAfter was recorded. The ledger rejects
// an EscrowCancel submitted before that time.
const DefaultCancelWindow uint32 = 86400

type Escrow struct {
	ID                 string          `gorm:"column:id;primaryKey"`
	EventID            string          `gorm:"column:event_id;index"`
	ParticipantID      string          `gorm:"column:participant_id;index"`
	Kind               Kind            `gorm:"column:escrow_type"`
	SourceAddress      string          `gorm:"column:source_address"`
	DestinationAddress string          `gorm:"column:destination_address"`
	Amount             decimal.Decimal `gorm:"column:amount;type:numeric(18,6)"`
	Condition          string          `gorm:"column:condition"`
	Fulfillment        string          `gorm:"column:fulfillment"`
	FinishAfter        uint32          `gorm:"column:finish_after"`
	CancelAfter        *uint32         `gorm:"column:cancel_after"`
	XummPayloadID      string          `gorm:"column:xumm_payload_id"`
	FinishPayloadID    string          `gorm:"column:finish_payload_id"`
	CancelPayloadID    string          `gorm:"column:cancel_payload_id"`
	TransactionHash    string          `gorm:"column:transaction_hash"`
	OfferSequence      *uint32         `gorm:"column:offer_sequence"`
	LedgerTx           datatypes.JSON  `gorm:"column:ledger_tx"`
	Status             Status          `gorm:"column:status;index"`
	Version            int64           `gorm:"column:version;not null;default:0"`
	SettledAt          *time.Time      `gorm:"column:settled_at"`
	CreatedAt          time.Time       `gorm:"column:created_at;index"`
	UpdatedAt          time.Time       `gorm:"column:updated_at"`
}

func (Escrow) TableName() string {
	return "escrow_details"
}

// CancelableAt is the ledger time from which an EscrowCancel is accepted.
func (e *Escrow) CancelableAt() uint32 {
	if e.CancelAfter != nil {
		return *e.CancelAfter
	}
	return e.FinishAfter + DefaultCancelWindow
}

// Change is the set of columns written together with a status transition.
type Change struct {
	Status          Status
	TransactionHash string
	OfferSequence   *uint32
	LedgerTx        datatypes.JSON
	FinishPayloadID string
	CancelPayloadID string
}

func (c Change) columns(now time.Time) map[string]any {
	cols := map[string]any{
		"status":     c.Status,
		"updated_at": now,
	}
	if c.TransactionHash != "" {
		cols["transaction_hash"] = c.TransactionHash
	}
	if c.OfferSequence != nil {
		cols["offer_sequence"] = *c.OfferSequence
	}
	if len(c.LedgerTx) > 0 {
		cols["ledger_tx"] = c.LedgerTx
	}
	if c.FinishPayloadID != "" {
		cols["finish_payload_id"] = c.FinishPayloadID
	}
	if c.CancelPayloadID != "" {
		cols["cancel_payload_id"] = c.CancelPayloadID
	}
	return cols
}
