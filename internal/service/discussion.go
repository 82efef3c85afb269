package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Gopher0727/Eiga/config"
	"github.com/Gopher0727/Eiga/internal/model"
	"github.com/Gopher0727/Eiga/internal/outbox"
	"github.com/Gopher0727/Eiga/internal/realtime"
	"github.com/Gopher0727/Eiga/internal/repository"
	logger "github.com/Gopher0727/Eiga/middleware/log"
)

// CreateCommentRequest starts a thread when ParentID is nil and replies to
// the root comment ParentID otherwise. Title is only accepted on roots.
type CreateCommentRequest struct {
	SubjectID          string     `json:"-" form:"-"`
	ParentID           *int64     `json:"parent_id,string,omitempty" form:"parent_id"`
	Title              string     `json:"title" form:"title"`
	Content            string     `json:"content" form:"content"`
	HasSpoilers        bool       `json:"has_spoilers" form:"has_spoilers"`
	TimestampReference *Timestamp `json:"timestamp_reference" form:"timestamp_reference"`
}

// CommentPatch holds the fields an edit may change. Nil means unchanged.
type CommentPatch struct {
	Title              *string    `json:"title" form:"title"`
	Content            *string    `json:"content" form:"content"`
	HasSpoilers        *bool      `json:"has_spoilers" form:"has_spoilers"`
	TimestampReference *Timestamp `json:"timestamp_reference" form:"timestamp_reference"`
}

func (p *CommentPatch) empty() bool {
	return p.Title == nil && p.Content == nil && p.HasSpoilers == nil && p.TimestampReference == nil
}

// IDiscussionService defines the discussion tree operations
type IDiscussionService interface {
	Create(ctx context.Context, actor Actor, req *CreateCommentRequest) (int64, error)
	Edit(ctx context.Context, commentID int64, actor Actor, patch *CommentPatch) error
	Delete(ctx context.Context, commentID int64, actor Actor) error
	Get(ctx context.Context, commentID int64) (*model.Comment, error)
	ListThreads(ctx context.Context, subjectID string) ([]*model.Comment, error)
	ToggleHighlight(ctx context.Context, commentID int64, actor Actor) (bool, error)
}

type DiscussionService struct {
	notifier
	comments repository.ICommentRepository
	ids      IDGenerator
	cfg      config.DiscussionConfig
	log      *logger.Logger
	now      func() time.Time
}

func NewDiscussionService(
	comments repository.ICommentRepository,
	ids IDGenerator,
	ob outbox.Outbox,
	publisher realtime.Publisher,
	cfg config.DiscussionConfig,
	log *logger.Logger,
) *DiscussionService {
	return &DiscussionService{
		notifier: notifier{outbox: ob, publisher: publisher},
		comments: comments,
		ids:      ids,
		cfg:      cfg,
		log:      log.Named("discussion"),
		now:      time.Now,
	}
}

// Create validates and stores a comment, then announces it on the subject's
// topic. Replies may only target root comments.
func (s *DiscussionService) Create(ctx context.Context, actor Actor, req *CreateCommentRequest) (int64, error) {
	if actor.ID == "" {
		return 0, ErrUnauthorized
	}
	subjectID := strings.TrimSpace(req.SubjectID)
	if subjectID == "" {
		return 0, fmt.Errorf("%w: subject is required", ErrInvalid)
	}
	content, err := s.validateContent(req.Content)
	if err != nil {
		return 0, err
	}
	title, err := s.validateTitle(req.Title)
	if err != nil {
		return 0, err
	}

	if req.ParentID != nil {
		if title != "" {
			return 0, fmt.Errorf("%w: replies cannot have a title", ErrInvalid)
		}
		parent, err := s.comments.FindByID(ctx, *req.ParentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrParentNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("failed to load parent comment: %w", err)
		}
		if !parent.IsRoot() {
			return 0, ErrMaxDepth
		}
		if parent.SubjectID != subjectID {
			return 0, fmt.Errorf("%w: parent belongs to another subject", ErrInvalid)
		}
	}

	id, err := s.ids.NextID()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate comment id: %w", err)
	}
	comment := &model.Comment{
		ID:                 id,
		ParentID:           req.ParentID,
		AuthorID:           actor.ID,
		SubjectID:          subjectID,
		Title:              title,
		Content:            content,
		HasSpoilers:        req.HasSpoilers,
		TimestampReference: req.TimestampReference.seconds(),
		CreatedAt:          s.now(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		// 父评论在查询之后被删除
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return 0, ErrParentNotFound
		}
		return 0, fmt.Errorf("failed to create comment: %w", err)
	}

	s.log.DebugContext(ctx, "comment created", zap.Int64("comment_id", id), zap.String("subject_id", subjectID))
	s.announce(realtime.CommentCreated(subjectID, id, !comment.IsRoot()))
	return id, nil
}

// Edit applies patch when actor is the author or an admin and sets edited_at.
func (s *DiscussionService) Edit(ctx context.Context, commentID int64, actor Actor, patch *CommentPatch) error {
	comment, err := s.loadForChange(ctx, commentID, actor)
	if err != nil {
		return err
	}
	if patch == nil || patch.empty() {
		return fmt.Errorf("%w: nothing to update", ErrInvalid)
	}

	fields := make(map[string]any, 5)
	if patch.Content != nil {
		content, err := s.validateContent(*patch.Content)
		if err != nil {
			return err
		}
		fields["content"] = content
	}
	if patch.Title != nil {
		title, err := s.validateTitle(*patch.Title)
		if err != nil {
			return err
		}
		if title != "" && !comment.IsRoot() {
			return fmt.Errorf("%w: replies cannot have a title", ErrInvalid)
		}
		fields["title"] = title
	}
	if patch.HasSpoilers != nil {
		fields["has_spoilers"] = *patch.HasSpoilers
	}
	if patch.TimestampReference != nil {
		fields["timestamp_reference"] = int(*patch.TimestampReference)
	}
	fields["edited_at"] = s.now()

	if err := s.comments.Update(ctx, commentID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update comment: %w", err)
	}

	s.log.DebugContext(ctx, "comment edited", zap.Int64("comment_id", commentID), zap.String("editor_id", actor.ID))
	s.announce(realtime.CommentEdited(comment.SubjectID, commentID))
	return nil
}

// Delete removes the comment. Replies of a root go with it through the
// store's ON DELETE CASCADE.
func (s *DiscussionService) Delete(ctx context.Context, commentID int64, actor Actor) error {
	comment, err := s.loadForChange(ctx, commentID, actor)
	if err != nil {
		return err
	}

	removed, err := s.comments.Delete(ctx, commentID)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if !removed {
		return ErrNotFound
	}

	s.log.InfoContext(ctx, "comment deleted",
		zap.Int64("comment_id", commentID),
		zap.String("actor_id", actor.ID),
		zap.Bool("as_admin", actor.ID != comment.AuthorID),
	)
	s.announce(realtime.CommentDeleted(comment.SubjectID, commentID))
	return nil
}

func (s *DiscussionService) Get(ctx context.Context, commentID int64) (*model.Comment, error) {
	comment, err := s.comments.FindByID(ctx, commentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load comment: %w", err)
	}
	return comment, nil
}

// ListThreads returns root comments newest first, each with its replies
// oldest first.
func (s *DiscussionService) ListThreads(ctx context.Context, subjectID string) ([]*model.Comment, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalid)
	}
	threads, err := s.comments.ListThreads(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	return threads, nil
}

// ToggleHighlight flips the highlight flag. Admin only.
func (s *DiscussionService) ToggleHighlight(ctx context.Context, commentID int64, actor Actor) (bool, error) {
	if actor.ID == "" {
		return false, ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return false, ErrForbidden
	}
	comment, err := s.Get(ctx, commentID)
	if err != nil {
		return false, err
	}

	highlighted, err := s.comments.ToggleHighlight(ctx, commentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to toggle highlight: %w", err)
	}

	s.announce(realtime.HighlightToggled(comment.SubjectID, commentID))
	return highlighted, nil
}

func (s *DiscussionService) loadForChange(ctx context.Context, commentID int64, actor Actor) (*model.Comment, error) {
	if actor.ID == "" {
		return nil, ErrUnauthorized
	}
	comment, err := s.Get(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if !actor.canModify(comment.AuthorID) {
		return nil, ErrForbidden
	}
	return comment, nil
}

func (s *DiscussionService) validateContent(content string) (string, error) {
	return validateLength("content", content, s.cfg.MinContentLength, s.cfg.MaxContentLength)
}

func (s *DiscussionService) validateTitle(title string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", nil
	}
	return validateLength("title", title, 1, s.cfg.MaxTitleLength)
}
