package database

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{NowFunc: NowUTC})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func TestMigrate(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, Migrate(db))

	for _, table := range []string{"conversations", "conversation_flags", "messages"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestCasbin(t *testing.T) {
	db := newTestDB(t)

	e, err := Casbin(db, []string{"42"})
	require.NoError(t, err)

	ok, err := e.Enforce("42", "/v1/admin/presence/reconcile", "POST")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Enforce("7", "/v1/admin/presence/reconcile", "POST")
	require.NoError(t, err)
	assert.False(t, ok)

	// Seeding twice keeps a single grant.
	_, err = Casbin(db, []string{"42"})
	require.NoError(t, err)
}
