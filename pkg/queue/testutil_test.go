package queue_test

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

	"github.com/orderflow/hookq/pkg/lock"
	"github.com/orderflow/hookq/pkg/queue"
	"github.com/orderflow/hookq/pkg/storage"
)

var dbCounter atomic.Int64

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	n := dbCounter.Add(1)
	dbPath := fmt.Sprintf("/tmp/hookq_queue_test_%d_%d.db", os.Getpid(), n)
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

// newTestService wires a service onto a fresh sqlite store with an
// in-process locker. The service is closed on test cleanup so stray
// reschedule timers cannot outlive the test.
func newTestService(t *testing.T, opts ...queue.Option) (*queue.Service, *storage.GormStore, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	store := storage.NewGormStore(db)
	require.NoError(t, store.Migrate(context.Background()), "migrate schema")

	svc := queue.New(store, lock.NewMemoryLocker(), opts...)
	t.Cleanup(svc.Close)
	return svc, store, db
}
