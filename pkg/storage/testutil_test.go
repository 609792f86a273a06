package storage_test

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/orderflow/hookq/pkg/storage"
)

var dbCounter atomic.Int64

// openTestDB creates a unique file-based SQLite database (removed on
// cleanup). The pool is limited to one connection so concurrent tests
// exercise the claim logic rather than SQLite writer contention.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	n := dbCounter.Add(1)
	dbPath := fmt.Sprintf("/tmp/hookq_storage_test_%d_%d.db", os.Getpid(), n)
	t.Cleanup(func() { _ = os.Remove(dbPath) })

	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_txlock=immediate", dbPath)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "open sqlite test db")

	sqlDB, err := db.DB()
	require.NoError(t, err, "get underlying sql.DB")
	sqlDB.SetMaxOpenConns(1)

	return db
}

// openTestStore opens a DB, creates a GormStore, and migrates.
func openTestStore(t *testing.T) *storage.GormStore {
	store, _ := openTestStoreDB(t)
	return store
}

// openTestStoreDB also returns the gorm handle for tests that need to
// doctor rows directly.
func openTestStoreDB(t *testing.T) (*storage.GormStore, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	store := storage.NewGormStore(db)
	require.NoError(t, store.Migrate(context.Background()), "migrate schema")
	return store, db
}
