package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Gopher0727/Eiga/config"
	"github.com/Gopher0727/Eiga/internal/model"
	"github.com/Gopher0727/Eiga/internal/notify"
	"github.com/Gopher0727/Eiga/internal/outbox"
	"github.com/Gopher0727/Eiga/internal/repository"
	logger "github.com/Gopher0727/Eiga/middleware/log"
)

const maxIssueAttempts = 5

// RedeemRequest is bound from either a JSON or a form body.
type RedeemRequest struct {
	Code     string `json:"code" form:"code" binding:"required"`
	Email    string `json:"email" form:"email" binding:"required"`
	Username string `json:"username" form:"username" binding:"required"`
}

// IInviteService defines the invite ledger operations
type IInviteService interface {
	Redeem(ctx context.Context, req *RedeemRequest) (*model.User, error)
	Issue(ctx context.Context, actor Actor, validFor time.Duration) (*model.InviteCode, error)
	PurgeExpired(ctx context.Context, actor Actor) (int64, error)
}

type InviteService struct {
	tx        repository.ITxManager
	invites   repository.IInviteRepository
	users     repository.IUserRepository
	outbox    outbox.Outbox
	messenger notify.Messenger
	cfg       config.InviteConfig
	log       *logger.Logger
	now       func() time.Time
}

func NewInviteService(
	tx repository.ITxManager,
	invites repository.IInviteRepository,
	users repository.IUserRepository,
	ob outbox.Outbox,
	messenger notify.Messenger,
	cfg config.InviteConfig,
	log *logger.Logger,
) *InviteService {
	return &InviteService{
		tx:        tx,
		invites:   invites,
		users:     users,
		outbox:    ob,
		messenger: messenger,
		cfg:       cfg,
		log:       log.Named("invite"),
		now:       time.Now,
	}
}

// redemption is the outcome of one redemption transaction. Exactly one of
// user and failure is set; a failure always means the transaction rolled back.
type redemption struct {
	user    *model.User
	failure error
}

func (r redemption) ok() bool {
	return r.failure == nil && r.user != nil
}

var errAbortRedemption = errors.New("redemption aborted")

// Redeem consumes code and creates the account in one transaction. The invite
// row is locked for the duration, and the final claim is a conditional update
// that only succeeds while the code is still unused and unexpired, so at most
// one concurrent attempt can win even where the lock is not honoured.
func (s *InviteService) Redeem(ctx context.Context, req *RedeemRequest) (*model.User, error) {
	code := NormalizeCode(req.Code)
	if !IsValidFormat(code) {
		return nil, ErrInvalidCode
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	username, err := validateUsername(req.Username)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var outcome redemption
	err = s.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		outcome = s.attempt(ctx, tx, code, email, username, now)
		if !outcome.ok() {
			return errAbortRedemption
		}
		return nil
	})

	switch {
	case outcome.failure != nil:
		if ReasonOf(outcome.failure) == ReasonServer {
			s.log.ErrorContext(ctx, "redemption failed", zap.String("code", code), zap.Error(outcome.failure))
		} else {
			s.log.InfoContext(ctx, "redemption rejected", zap.String("code", code), zap.String("reason", string(ReasonOf(outcome.failure))))
		}
		return nil, outcome.failure
	case err != nil:
		// begin 或 commit 失败, 回调可能根本没有执行
		s.log.ErrorContext(ctx, "redemption transaction failed", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to run redemption: %w", err)
	case outcome.user == nil:
		return nil, fmt.Errorf("redemption produced no user: %w", errAbortRedemption)
	}

	user := outcome.user
	s.log.InfoContext(ctx, "invite redeemed", zap.String("code", code), zap.String("user_id", user.ID))
	s.sendWelcome(user)
	return user, nil
}

func (s *InviteService) attempt(ctx context.Context, tx *gorm.DB, code, email, username string, now time.Time) redemption {
	invites := s.invites.WithTx(tx)
	users := s.users.WithTx(tx)

	invite, err := invites.FindForUpdate(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return redemption{failure: ErrInvalidCode}
	}
	if err != nil {
		return redemption{failure: fmt.Errorf("failed to load invite: %w", err)}
	}
	if invite.UsedBy != nil {
		return redemption{failure: ErrCodeUsed}
	}
	if !invite.Redeemable(now) {
		return redemption{failure: ErrCodeExpired}
	}

	taken, err := users.ExistsByEmail(ctx, email)
	if err != nil {
		return redemption{failure: fmt.Errorf("failed to check email: %w", err)}
	}
	if taken {
		return redemption{failure: ErrEmailInUse}
	}
	taken, err = users.ExistsByUsername(ctx, username)
	if err != nil {
		return redemption{failure: fmt.Errorf("failed to check username: %w", err)}
	}
	if taken {
		return redemption{failure: ErrUsernameInUse}
	}

	user := &model.User{
		ID:       uuid.NewString(),
		UserName: username,
		Email:    email,
		Role:     model.RoleMember,
	}
	if err := users.Create(ctx, user); err != nil {
		s.log.WarnContext(ctx, "user insert failed", zap.Error(err))
		return redemption{failure: ErrCreateFailed}
	}

	claimed, err := invites.MarkUsed(ctx, code, user.ID, now)
	if err != nil {
		return redemption{failure: fmt.Errorf("failed to claim invite: %w", err)}
	}
	if !claimed {
		// 另一个事务抢先兑换
		return redemption{failure: ErrCodeUsed}
	}
	return redemption{user: user}
}

func (s *InviteService) sendWelcome(user *model.User) {
	msg := notify.Welcome{
		Email:    user.Email,
		Username: user.UserName,
		Link:     s.welcomeLink(user),
	}
	s.outbox.Enqueue("welcome", func(ctx context.Context) error {
		return s.messenger.SendWelcome(ctx, msg)
	})
}

func (s *InviteService) welcomeLink(user *model.User) string {
	u, err := url.Parse(s.cfg.WelcomeURL)
	if err != nil {
		return s.cfg.WelcomeURL
	}
	q := u.Query()
	q.Set("username", user.UserName)
	u.RawQuery = q.Encode()
	return u.String()
}

// Issue creates a fresh code valid for validFor, or for the configured
// default when validFor is not positive. Admin only.
func (s *InviteService) Issue(ctx context.Context, actor Actor, validFor time.Duration) (*model.InviteCode, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if validFor <= 0 {
		validFor = s.cfg.ValidFor
	}

	now := s.now()
	creator := actor.ID
	for range maxIssueAttempts {
		code, err := GenerateCode(s.cfg.Segments, s.cfg.SegmentLength, s.cfg.Prefix)
		if err != nil {
			return nil, err
		}
		invite := &model.InviteCode{
			Code:      code,
			CreatedBy: &creator,
			CreatedAt: now,
			ExpiresAt: now.Add(validFor),
		}
		err = s.invites.Create(ctx, invite)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to store invite: %w", err)
		}
		s.log.InfoContext(ctx, "invite issued", zap.String("code", code), zap.String("created_by", creator), zap.Time("expires_at", invite.ExpiresAt))
		return invite, nil
	}
	return nil, fmt.Errorf("failed to generate a unique invite code after %d attempts", maxIssueAttempts)
}

// PurgeExpired deletes unused codes past their expiry. Admin only.
func (s *InviteService) PurgeExpired(ctx context.Context, actor Actor) (int64, error) {
	if !actor.IsAdmin() {
		return 0, ErrForbidden
	}
	n, err := s.invites.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired invites: %w", err)
	}
	s.log.InfoContext(ctx, "expired invites purged", zap.Int64("count", n))
	return n, nil
}
