package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Gopher0727/Eiga/internal/model"
	"github.com/Gopher0727/Eiga/internal/outbox"
	"github.com/Gopher0727/Eiga/internal/realtime"
	"github.com/Gopher0727/Eiga/internal/repository"
	logger "github.com/Gopher0727/Eiga/middleware/log"
)

type SetReactionResult struct {
	Created bool `json:"created"`
	Changed bool `json:"changed"`
}

type RemoveReactionResult struct {
	Removed bool `json:"removed"`
}

// ReactionSummary is what a client re-fetches after a reaction event.
type ReactionSummary struct {
	CommentID int64                        `json:"comment_id,string"`
	Counts    map[model.ReactionType]int64 `json:"counts"`
	Mine      model.ReactionType           `json:"mine,omitempty"`
}

// IReactionService defines the reaction ledger operations
type IReactionService interface {
	SetReaction(ctx context.Context, userID string, commentID int64, reactionType model.ReactionType) (SetReactionResult, error)
	RemoveReaction(ctx context.Context, userID string, commentID int64) (RemoveReactionResult, error)
	Summary(ctx context.Context, commentID int64, viewerID string) (*ReactionSummary, error)
}

type ReactionService struct {
	notifier
	comments  repository.ICommentRepository
	reactions repository.IReactionRepository
	ids       IDGenerator
	log       *logger.Logger
	now       func() time.Time
}

func NewReactionService(
	comments repository.ICommentRepository,
	reactions repository.IReactionRepository,
	ids IDGenerator,
	ob outbox.Outbox,
	publisher realtime.Publisher,
	log *logger.Logger,
) *ReactionService {
	return &ReactionService{
		notifier:  notifier{outbox: ob, publisher: publisher},
		comments:  comments,
		reactions: reactions,
		ids:       ids,
		log:       log.Named("reaction"),
		now:       time.Now,
	}
}

// SetReaction stores reactionType as userID's single reaction on the comment.
// The write is one upsert statement; the prior read only decides what to
// report, so a lost race at worst reports a stale Changed.
func (s *ReactionService) SetReaction(ctx context.Context, userID string, commentID int64, reactionType model.ReactionType) (SetReactionResult, error) {
	if userID == "" {
		return SetReactionResult{}, ErrUnauthorized
	}
	if !reactionType.Valid() {
		return SetReactionResult{}, fmt.Errorf("%w: unknown reaction type %q", ErrInvalid, reactionType)
	}
	comment, err := s.subjectOf(ctx, commentID)
	if err != nil {
		return SetReactionResult{}, err
	}

	prior, err := s.reactions.Find(ctx, userID, commentID)
	if err != nil {
		return SetReactionResult{}, fmt.Errorf("failed to load reaction: %w", err)
	}

	id, err := s.ids.NextID()
	if err != nil {
		return SetReactionResult{}, fmt.Errorf("failed to allocate reaction id: %w", err)
	}
	err = s.reactions.Upsert(ctx, &model.Reaction{
		ID:        id,
		UserID:    userID,
		CommentID: commentID,
		Type:      reactionType,
		CreatedAt: s.now(),
	})
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return SetReactionResult{}, ErrNotFound
	}
	if err != nil {
		return SetReactionResult{}, fmt.Errorf("failed to upsert reaction: %w", err)
	}

	res := SetReactionResult{Created: prior == nil}
	res.Changed = res.Created || prior.Type != reactionType
	if res.Changed {
		s.log.DebugContext(ctx, "reaction set", zap.Int64("comment_id", commentID), zap.String("user_id", userID), zap.String("type", string(reactionType)))
		s.announce(realtime.ReactionSet(comment.SubjectID, commentID, userID, string(reactionType)))
	}
	return res, nil
}

// RemoveReaction deletes userID's reaction on the comment if there is one.
func (s *ReactionService) RemoveReaction(ctx context.Context, userID string, commentID int64) (RemoveReactionResult, error) {
	if userID == "" {
		return RemoveReactionResult{}, ErrUnauthorized
	}
	comment, err := s.subjectOf(ctx, commentID)
	if err != nil {
		return RemoveReactionResult{}, err
	}

	removed, err := s.reactions.Delete(ctx, userID, commentID)
	if err != nil {
		return RemoveReactionResult{}, fmt.Errorf("failed to delete reaction: %w", err)
	}
	if removed {
		s.announce(realtime.ReactionRemoved(comment.SubjectID, commentID, userID))
	}
	return RemoveReactionResult{Removed: removed}, nil
}

// Summary counts reactions per type and includes viewerID's own, if any.
func (s *ReactionService) Summary(ctx context.Context, commentID int64, viewerID string) (*ReactionSummary, error) {
	if _, err := s.subjectOf(ctx, commentID); err != nil {
		return nil, err
	}
	counts, err := s.reactions.CountByType(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count reactions: %w", err)
	}

	summary := &ReactionSummary{CommentID: commentID, Counts: counts}
	if viewerID != "" {
		mine, err := s.reactions.Find(ctx, viewerID, commentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load reaction: %w", err)
		}
		if mine != nil {
			summary.Mine = mine.Type
		}
	}
	return summary, nil
}

func (s *ReactionService) subjectOf(ctx context.Context, commentID int64) (*model.Comment, error) {
	comment, err := s.comments.FindByID(ctx, commentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load comment: %w", err)
	}
	return comment, nil
}
