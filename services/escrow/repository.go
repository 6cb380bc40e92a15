package escrow

import (
	"context"
	"errors"
	"time"

	"curtailment-controlplane/pkg/db/pagination"

	"gorm.io/gorm"
)

// ErrConcurrentUpdate is returned when the row changed since it was read.
var ErrConcurrentUpdate = errors.New("escrow: concurrent update")

// ListParams describes filters applied when listing escrows.
type ListParams struct {
	Status        []Status
	Kind          Kind
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	// FinishDueAt selects escrows whose FinishAfter is at or before this ledger time.
	FinishDueAt *int64
	Unsettled   bool
	Page        pagination.Page
}

// Repository describes database operations available for escrows.
type Repository interface {
	Create(ctx context.Context, e *Escrow) error
	Get(ctx context.Context, id string) (*Escrow, error)
	List(ctx context.Context, params ListParams) ([]Escrow, *pagination.Page, error)
	// Transition applies change only if the row still has e's status and
	// version, and updates e in place on success.
	Transition(ctx context.Context, e *Escrow, change Change) error
	MarkSettled(ctx context.Context, id string, at time.Time) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns a gorm backed Repository implementation.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, e *Escrow) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *gormRepository) Get(ctx context.Context, id string) (*Escrow, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var e Escrow
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *gormRepository) List(ctx context.Context, params ListParams) ([]Escrow, *pagination.Page, error) {
	if r == nil || r.db == nil {
		return nil, nil, gorm.ErrInvalidDB
	}

	query := r.db.WithContext(ctx).Model(&Escrow{})

	if len(params.Status) > 0 {
		query = query.Where("status IN ?", params.Status)
	}
	if params.Kind != "" {
		query = query.Where("escrow_type = ?", params.Kind)
	}
	if params.CreatedAfter != nil {
		query = query.Where("created_at > ?", *params.CreatedAfter)
	}
	if params.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *params.CreatedBefore)
	}
	if params.FinishDueAt != nil {
		query = query.Where("finish_after <= ?", *params.FinishDueAt)
	}
	if params.Unsettled {
		query = query.Where("settled_at IS NULL")
	}

	var rows []Escrow
	if err := query.Scopes(params.Page.Scope("id")).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	rows, next := pagination.Next(rows, params.Page, func(e Escrow) string { return e.ID })
	return rows, next, nil
}

func (r *gormRepository) Transition(ctx context.Context, e *Escrow, change Change) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	now := time.Now().UTC()
	cols := change.columns(now)
	cols["version"] = gorm.Expr("version + 1")

	res := r.db.WithContext(ctx).
		Model(&Escrow{}).
		Where("id = ? AND status = ? AND version = ?", e.ID, e.Status, e.Version).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}

	e.Status = change.Status
	e.Version++
	e.UpdatedAt = now
	if change.TransactionHash != "" {
		e.TransactionHash = change.TransactionHash
	}
	if change.OfferSequence != nil {
		e.OfferSequence = change.OfferSequence
	}
	if len(change.LedgerTx) > 0 {
		e.LedgerTx = change.LedgerTx
	}
	if change.FinishPayloadID != "" {
		e.FinishPayloadID = change.FinishPayloadID
	}
	if change.CancelPayloadID != "" {
		e.CancelPayloadID = change.CancelPayloadID
	}
	return nil
}

func (r *gormRepository) MarkSettled(ctx context.Context, id string, at time.Time) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	return r.db.WithContext(ctx).
		Model(&Escrow{}).
		Where("id = ? AND settled_at IS NULL", id).
		Update("settled_at", at).Error
}
