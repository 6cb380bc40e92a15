package curtailment

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventStatus string

const (
	EventUpcoming  EventStatus = "upcoming"
	EventActive    EventStatus = "active"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
	EventFailed    EventStatus = "failed"
)

type Event struct {
	ID               string          `gorm:"column:id;primaryKey"`
	Title            string          `gorm:"column:title"`
	StartTime        time.Time       `gorm:"column:start_time"`
	EndTime          time.Time       `gorm:"column:end_time"`
	RewardPerKwh     decimal.Decimal `gorm:"column:reward_per_kwh;type:numeric(18,6)"`
	TotalEnergySaved decimal.Decimal `gorm:"column:total_energy_saved;type:numeric(18,6)"`
	TotalRewardsPaid decimal.Decimal `gorm:"column:total_rewards_paid;type:numeric(18,6)"`
	// RewardBudget is an optional explicit cap; zero means none.
	RewardBudget decimal.Decimal `gorm:"column:reward_budget;type:numeric(18,6)"`
	Status       EventStatus     `gorm:"column:status"`
	CreatedBy    string          `gorm:"column:created_by"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at"`
}

func (Event) TableName() string {
	return "curtailment_events"
}

// RewardCap is the most the event may pay out across all participants.
func (e *Event) RewardCap() decimal.Decimal {
	limit := e.RewardPerKwh.Mul(e.TotalEnergySaved)
	if e.RewardBudget.IsPositive() && e.RewardBudget.LessThan(limit) {
		return e.RewardBudget
	}
	return limit
}

type ParticipationStatus string

const (
	ParticipationRegistered    ParticipationStatus = "registered"
	ParticipationParticipating ParticipationStatus = "participating"
	ParticipationCompleted     ParticipationStatus = "completed"
	ParticipationVerified      ParticipationStatus = "verified"
	ParticipationFailed        ParticipationStatus = "failed"
	ParticipationMissed        ParticipationStatus = "missed"
)

type Participation struct {
	EventID             string              `gorm:"column:event_id;primaryKey"`
	UserID              string              `gorm:"column:user_id;primaryKey"`
	WalletAddress       string              `gorm:"column:wallet_address"`
	Status              ParticipationStatus `gorm:"column:status"`
	EnergySaved         decimal.Decimal     `gorm:"column:energy_saved;type:numeric(18,6)"`
	RewardAmount        decimal.Decimal     `gorm:"column:reward_amount;type:numeric(18,6)"`
	RewardClaimed       bool                `gorm:"column:reward_claimed;not null;default:false"`
	RewardTransactionID string              `gorm:"column:reward_transaction_id"`
	RegisteredAt        time.Time           `gorm:"column:registered_at"`
	VerifiedAt          *time.Time          `gorm:"column:verified_at"`
}

func (Participation) TableName() string {
	return "event_participations"
}

func (p *Participation) Verified() bool {
	return p.Status == ParticipationVerified
}

type UserWallet struct {
	UserID              string          `gorm:"column:user_id;primaryKey"`
	Address             string          `gorm:"column:address"`
	TotalRewardsClaimed decimal.Decimal `gorm:"column:total_rewards_claimed;type:numeric(18,6)"`
	CreatedAt           time.Time       `gorm:"column:created_at"`
	UpdatedAt           time.Time       `gorm:"column:updated_at"`
}

func (UserWallet) TableName() string {
	return "user_wallets"
}
