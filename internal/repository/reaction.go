package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/Eiga/internal/model"
)

// IReactionRepository defines the interface for reaction data operations
type IReactionRepository interface {
	Find(ctx context.Context, userID string, commentID int64) (*model.Reaction, error)
	Upsert(ctx context.Context, reaction *model.Reaction) error
	Delete(ctx context.Context, userID string, commentID int64) (bool, error)
	CountByType(ctx context.Context, commentID int64) (map[model.ReactionType]int64, error)
}

type ReactionRepository struct {
	db *gorm.DB
}

func NewReactionRepository(db *gorm.DB) IReactionRepository {
	return &ReactionRepository{db: db}
}

// Find returns the user's reaction on a comment, or nil if there is none.
func (r *ReactionRepository) Find(ctx context.Context, userID string, commentID int64) (*model.Reaction, error) {
	var reaction model.Reaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND comment_id = ?", userID, commentID).
		First(&reaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reaction, nil
}

// Upsert inserts the reaction or replaces the type of the existing
// (user_id, comment_id) row in a single statement.
func (r *ReactionRepository) Upsert(ctx context.Context, reaction *model.Reaction) error {
	return r.db.WithContext(ctx).
		Omit("Comment").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "comment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"type"}),
		}).
		Create(reaction).Error
}

func (r *ReactionRepository) Delete(ctx context.Context, userID string, commentID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND comment_id = ?", userID, commentID).
		Delete(&model.Reaction{})
	return res.RowsAffected > 0, res.Error
}

func (r *ReactionRepository) CountByType(ctx context.Context, commentID int64) (map[model.ReactionType]int64, error) {
	var rows []struct {
		Type  model.ReactionType
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Reaction{}).
		Select("type, COUNT(*) AS count").
		Where("comment_id = ?", commentID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.ReactionType]int64, len(model.ReactionTypes))
	for _, t := range model.ReactionTypes {
		counts[t] = 0
	}
	for _, row := range rows {
		counts[row.Type] = row.Count
	}
	return counts, nil
}
