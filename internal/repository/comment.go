package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/Eiga/internal/model"
)

// ICommentRepository defines the interface for discussion data operations
type ICommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	FindByID(ctx context.Context, id int64) (*model.Comment, error)
	Update(ctx context.Context, id int64, fields map[string]any) error
	Delete(ctx context.Context, id int64) (bool, error)
	ToggleHighlight(ctx context.Context, id int64) (bool, error)
	ListThreads(ctx context.Context, subjectID string) ([]*model.Comment, error)
}

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) ICommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, comment *model.Comment) error {
	return r.db.WithContext(ctx).Omit("Replies").Create(comment).Error
}

func (r *CommentRepository) FindByID(ctx context.Context, id int64) (*model.Comment, error) {
	var comment model.Comment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&comment).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// Update writes only the given columns.
func (r *CommentRepository) Update(ctx context.Context, id int64, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&model.Comment{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes one comment; replies and reactions are removed by the
// foreign key cascade.
func (r *CommentRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Comment{})
	return res.RowsAffected > 0, res.Error
}

// ToggleHighlight flips is_highlighted in one statement and returns the new value.
func (r *CommentRepository) ToggleHighlight(ctx context.Context, id int64) (bool, error) {
	var highlighted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Comment{}).Where("id = ?", id).
			Update("is_highlighted", gorm.Expr("NOT is_highlighted"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&model.Comment{}).Where("id = ?", id).Pluck("is_highlighted", &highlighted).Error
	})
	return highlighted, err
}

// ListThreads 返回某个讨论对象下的根评论（新的在前），回复按时间正序预加载
func (r *CommentRepository) ListThreads(ctx context.Context, subjectID string) ([]*model.Comment, error) {
	var roots []*model.Comment
	err := r.db.WithContext(ctx).
		Where("subject_id = ? AND parent_id IS NULL", subjectID).
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Order("created_at DESC, id DESC").
		Find(&roots).Error
	if err != nil {
		return nil, err
	}
	return roots, nil
}
