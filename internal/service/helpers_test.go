package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Gopher0727/Eiga/config"
	"github.com/Gopher0727/Eiga/internal/model"
	"github.com/Gopher0727/Eiga/internal/notify"
	"github.com/Gopher0727/Eiga/internal/outbox"
	"github.com/Gopher0727/Eiga/internal/pkg/idgen"
	"github.com/Gopher0727/Eiga/internal/realtime"
	"github.com/Gopher0727/Eiga/internal/repository"
	"github.com/Gopher0727/Eiga/internal/testinfra"
	logger "github.com/Gopher0727/Eiga/middleware/log"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db        *gorm.DB
	invites   repository.IInviteRepository
	users     repository.IUserRepository
	comments  repository.ICommentRepository
	reactions repository.IReactionRepository
	recorder  *realtime.Recorder
	messenger *notify.LogMessenger
	outbox    outbox.Outbox
	ids       *idgen.Generator
	log       *logger.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testinfra.NewDB(t)
	ids, err := idgen.New(1)
	require.NoError(t, err)

	log := logger.NewNop()
	return &fixture{
		db:        db,
		invites:   repository.NewInviteRepository(db),
		users:     repository.NewUserRepository(db),
		comments:  repository.NewCommentRepository(db),
		reactions: repository.NewReactionRepository(db),
		recorder:  realtime.NewRecorder(),
		messenger: notify.NewLogMessenger(log),
		outbox:    outbox.NewInline(time.Second, log),
		ids:       ids,
		log:       log,
	}
}

func inviteConfig() config.InviteConfig {
	return config.InviteConfig{
		Prefix:        DefaultCodePrefix,
		Segments:      DefaultCodeSegments,
		SegmentLength: DefaultCodeSegmentLength,
		ValidFor:      7 * 24 * time.Hour,
		WelcomeURL:    "https://eiga.example/welcome",
	}
}

func discussionConfig() config.DiscussionConfig {
	return config.DiscussionConfig{MinContentLength: 2, MaxContentLength: 200, MaxTitleLength: 40}
}

func (f *fixture) inviteService() *InviteService {
	svc := NewInviteService(repository.NewTxManager(f.db), f.invites, f.users, f.outbox, f.messenger, inviteConfig(), f.log)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func (f *fixture) discussionService() *DiscussionService {
	svc := NewDiscussionService(f.comments, f.ids, f.outbox, f.recorder, discussionConfig(), f.log)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func (f *fixture) reactionService() *ReactionService {
	svc := NewReactionService(f.comments, f.reactions, f.ids, f.outbox, f.recorder, f.log)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func (f *fixture) seedInvite(t *testing.T, code string, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, f.invites.Create(context.Background(), &model.InviteCode{
		Code:      code,
		CreatedAt: fixedNow.Add(-time.Hour),
		ExpiresAt: expiresAt,
	}))
}

func (f *fixture) countUsers(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.User{}).Count(&n).Error)
	return n
}

func (f *fixture) kinds() []realtime.Kind {
	var kinds []realtime.Kind
	for _, ev := range f.recorder.Events() {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

var (
	alice = Actor{ID: "user-alice", Username: "alice", Role: model.RoleMember}
	bob   = Actor{ID: "user-bob", Username: "bob", Role: model.RoleMember}
	admin = Actor{ID: "user-admin", Username: "admin", Role: model.RoleAdmin}
)
