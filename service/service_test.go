package service

import (
	"context"
	"testing"
	"time"

	"chat-service/database"
	"chat-service/profile"
	"chat-service/repository"

	"github.com/glebarez/sqlite"
	"github.com/neilotoole/slogt"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{NowFunc: database.NowUTC})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

type fakeProfiles struct {
	ProfileFunc func(ctx context.Context, userID string) (profile.Profile, error)
}

func (f *fakeProfiles) Profile(ctx context.Context, userID string) (profile.Profile, error) {
	return f.ProfileFunc(ctx, userID)
}

type fakeOnline map[string]bool

func (f fakeOnline) IsOnline(_ context.Context, userID string) (bool, error) {
	if userID == "broken" {
		return false, errors.New("redis down")
	}
	return f[userID], nil
}

type fixture struct {
	db            *gorm.DB
	conversations *ConversationService
	messages      *MessageService
	clock         time.Time
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func newFixture(t *testing.T, profiles ProfileProvider, online OnlineChecker) *fixture {
	t.Helper()
	db := newTestDB(t)
	log := slogt.New(t)

	f := &fixture{db: db, clock: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	f.conversations = NewConversationService(repository.NewConversationRepository(db), profiles, online, log, 10)
	f.conversations.now = func() time.Time { return f.clock }
	f.messages = NewMessageService(repository.NewMessageRepository(db), f.conversations, log, time.Hour)
	f.messages.now = func() time.Time {
		f.advance(time.Millisecond)
		return f.clock
	}
	return f
}
