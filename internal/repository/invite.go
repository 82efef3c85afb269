package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/Eiga/internal/model"
)

// IInviteRepository defines the interface for invite code data operations
type IInviteRepository interface {
	WithTx(tx *gorm.DB) IInviteRepository
	Create(ctx context.Context, invite *model.InviteCode) error
	FindByCode(ctx context.Context, code string) (*model.InviteCode, error)
	FindForUpdate(ctx context.Context, code string) (*model.InviteCode, error)
	MarkUsed(ctx context.Context, code, userID string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type InviteRepository struct {
	db *gorm.DB
}

func NewInviteRepository(db *gorm.DB) IInviteRepository {
	return &InviteRepository{db: db}
}

func (r *InviteRepository) WithTx(tx *gorm.DB) IInviteRepository {
	return &InviteRepository{db: tx}
}

func (r *InviteRepository) Create(ctx context.Context, invite *model.InviteCode) error {
	return r.db.WithContext(ctx).Create(invite).Error
}

func (r *InviteRepository) FindByCode(ctx context.Context, code string) (*model.InviteCode, error) {
	var invite model.InviteCode
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&invite).Error
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

// FindForUpdate reads the invite row under SELECT ... FOR UPDATE. Only
// meaningful inside a transaction; dialects without row locks ignore the clause.
func (r *InviteRepository) FindForUpdate(ctx context.Context, code string) (*model.InviteCode, error) {
	var invite model.InviteCode
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("code = ?", code).
		First(&invite).Error
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

// MarkUsed claims the code for userID. The WHERE clause repeats the
// redeemability check so that only one claimant can ever win; false means
// another redemption got there first or the code expired meanwhile.
func (r *InviteRepository) MarkUsed(ctx context.Context, code, userID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.InviteCode{}).
		Where("code = ? AND used_by IS NULL AND expires_at > ?", code, now).
		Updates(map[string]any{
			"used_by": userID,
			"used_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteExpired removes unused codes whose expiry has passed.
func (r *InviteRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("used_by IS NULL AND expires_at <= ?", now).
		Delete(&model.InviteCode{})
	return res.RowsAffected, res.Error
}
