package reward

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// AmountPlaces is the precision of every stored reward amount (XRP drops).
const AmountPlaces = 6

type AllocationStatus string

const (
	AllocationAllocated AllocationStatus = "Allocated"
	AllocationVerified  AllocationStatus = "Verified"
	AllocationCancelled AllocationStatus = "Cancelled"
)

type Allocation struct {
	ID              string           `gorm:"column:id;primaryKey"`
	EventID         string           `gorm:"column:event_id;uniqueIndex:idx_allocation_event_participant"`
	ParticipantID   string           `gorm:"column:participant_id;uniqueIndex:idx_allocation_event_participant"`
	PotentialAmount decimal.Decimal  `gorm:"column:potential_amount;type:numeric(18,6)"`
	ActualAmount    decimal.Decimal  `gorm:"column:actual_amount;type:numeric(18,6)"`
	Status          AllocationStatus `gorm:"column:status"`
	CreatedAt       time.Time        `gorm:"column:created_at"`
	VerifiedAt      *time.Time       `gorm:"column:verified_at"`
}

func (Allocation) TableName() string {
	return "reward_allocations"
}

type PaymentStatus string

const (
	PaymentPendingSignature PaymentStatus = "PendingSignature"
	PaymentCompleted        PaymentStatus = "Completed"
	PaymentFailed           PaymentStatus = "Failed"
)

type Payment struct {
	ID                string          `gorm:"column:id;primaryKey"`
	EventID           string          `gorm:"column:event_id;index"`
	ParticipantID     string          `gorm:"column:participant_id"`
	AllocationID      string          `gorm:"column:allocation_id;uniqueIndex:idx_payment_allocation_attempt"`
	Attempt           int             `gorm:"column:attempt;uniqueIndex:idx_payment_allocation_attempt"`
	PreviousPaymentID string          `gorm:"column:previous_payment_id"`
	Amount            decimal.Decimal `gorm:"column:amount;type:numeric(18,6)"`
	Destination       string          `gorm:"column:destination"`
	PayloadID         string          `gorm:"column:payload_id"`
	TransactionHash   string          `gorm:"column:transaction_hash"`
	Status            PaymentStatus   `gorm:"column:status;index"`
	FailureReason     string          `gorm:"column:failure_reason"`
	Metadata          datatypes.JSON  `gorm:"column:metadata"`
	PreviousHash      string          `gorm:"column:previous_hash"`
	Hash              string          `gorm:"column:hash"`
	CreatedAt         time.Time       `gorm:"column:created_at"`
	CompletedAt       *time.Time      `gorm:"column:completed_at"`
}

func (Payment) TableName() string {
	return "reward_payments"
}

func (p *Payment) HashFields() map[string]string {
	return map[string]string{
		"id":                  p.ID,
		"event_id":            p.EventID,
		"participant_id":      p.ParticipantID,
		"allocation_id":       p.AllocationID,
		"attempt":             strconv.Itoa(p.Attempt),
		"previous_payment_id": p.PreviousPaymentID,
		"amount":              p.Amount.StringFixed(AmountPlaces),
		"destination":         p.Destination,
		"created_at":          p.CreatedAt.UTC().Format(time.RFC3339Nano),
		"previous_hash":       p.PreviousHash,
	}
}

// GenerateHash chains an attempt to the one it retries, so a rewritten
// attempt history no longer verifies.
func (p *Payment) GenerateHash() string {
	fields := p.HashFields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}

// PaymentMeta is stored with every attempt so a retry can rebuild the
// payout request without rereading the event.
type PaymentMeta struct {
	EscrowID     string          `json:"escrow_id,omitempty"`
	EnergySaved  decimal.Decimal `json:"energy_saved"`
	RewardPerKwh decimal.Decimal `json:"reward_per_kwh"`
}

func (p *Payment) Meta() PaymentMeta {
	var m PaymentMeta
	if len(p.Metadata) > 0 {
		_ = json.Unmarshal(p.Metadata, &m)
	}
	return m
}

func encodeMeta(m PaymentMeta) datatypes.JSON {
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// Hold halts allocation for an event while unreleased.
type Hold struct {
	ID         string          `gorm:"column:id;primaryKey"`
	EventID    string          `gorm:"column:event_id;index"`
	Reason     string          `gorm:"column:reason"`
	Cap        decimal.Decimal `gorm:"column:cap;type:numeric(18,6)"`
	Attempted  decimal.Decimal `gorm:"column:attempted;type:numeric(18,6)"`
	CreatedAt  time.Time       `gorm:"column:created_at"`
	ReleasedAt *time.Time      `gorm:"column:released_at"`
}

func (Hold) TableName() string {
	return "reward_settlement_holds"
}

// Potential is E x R truncated to the stored precision.
func Potential(energySaved, ratePerKwh decimal.Decimal) decimal.Decimal {
	if !energySaved.IsPositive() || !ratePerKwh.IsPositive() {
		return decimal.Zero
	}
	return energySaved.Mul(ratePerKwh).Truncate(AmountPlaces)
}

// Drops converts an XRP amount to its integer drop string.
func Drops(amount decimal.Decimal) string {
	return amount.Shift(AmountPlaces).Truncate(0).String()
}
