package curtailment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository reads events, participations and wallets. The only writes it
// exposes are the reward aggregates owned by reward bookkeeping.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Event(ctx context.Context, id string) (*Event, error)
	Participation(ctx context.Context, eventID, userID string) (*Participation, error)
	Participations(ctx context.Context, eventID string) ([]Participation, error)
	Wallet(ctx context.Context, userID string) (*UserWallet, error)

	AddRewardsPaid(ctx context.Context, eventID string, amount decimal.Decimal) error
	ClaimReward(ctx context.Context, eventID, userID string, amount decimal.Decimal, txHash string) error
	AddWalletClaimed(ctx context.Context, userID string, amount decimal.Decimal) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{db: tx}
}

func (r *gormRepository) Event(ctx context.Context, id string) (*Event, error) {
	var ev Event
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ev).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *gormRepository) Participation(ctx context.Context, eventID, userID string) (*Participation, error) {
	var p Participation
	if err := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) Participations(ctx context.Context, eventID string) ([]Participation, error) {
	var rows []Participation
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("user_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *gormRepository) Wallet(ctx context.Context, userID string) (*UserWallet, error) {
	var w UserWallet
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *gormRepository) AddRewardsPaid(ctx context.Context, eventID string, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&Event{}).
		Where("id = ?", eventID).
		Updates(map[string]any{
			"total_rewards_paid": gorm.Expr("total_rewards_paid + ?", amount),
			"updated_at":         time.Now().UTC(),
		}).Error
}

func (r *gormRepository) ClaimReward(ctx context.Context, eventID, userID string, amount decimal.Decimal, txHash string) error {
	return r.db.WithContext(ctx).
		Model(&Participation{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Updates(map[string]any{
			"reward_amount":         amount,
			"reward_claimed":        true,
			"reward_transaction_id": txHash,
		}).Error
}

func (r *gormRepository) AddWalletClaimed(ctx context.Context, userID string, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&UserWallet{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"total_rewards_claimed": gorm.Expr("total_rewards_claimed + ?", amount),
			"updated_at":            time.Now().UTC(),
		}).Error
}
