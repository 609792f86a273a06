package hookq_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/orderflow/hookq"
)

var facadeCounter atomic.Int64

func setupFacade(t *testing.T) *hookq.Service {
	t.Helper()
	n := facadeCounter.Add(1)
	dbPath := fmt.Sprintf("/tmp/hookq_facade_test_%d_%d.db", os.Getpid(), n)
	t.Cleanup(func() { _ = os.Remove(dbPath) })

	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_txlock=immediate", dbPath)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := hookq.NewGormStore(db)
	require.NoError(t, store.Migrate(context.Background()))

	svc := hookq.New(store, hookq.NewMemoryLocker())
	t.Cleanup(svc.Close)
	return svc
}

func TestFacade_EndToEnd(t *testing.T) {
	svc := setupFacade(t)
	ctx := context.Background()

	type orderPayload struct {
		OrderID int `json:"order_id"`
	}

	processed := make(chan int, 1)
	svc.Register("orders/persist", func(ctx context.Context, payload []byte) error {
		var p orderPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		processed <- p.OrderID
		return nil
	})

	require.NoError(t, svc.Enqueue(ctx, hookq.Request{
		TenantID:   "shop-1.example.com",
		Topic:      "orders/create",
		Intent:     "orders/persist",
		Payload:    map[string]any{"order_id": 42},
		ExternalID: "delivery-1",
	}))

	select {
	case id := <-processed:
		assert.Equal(t, 42, id)
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not run")
	}

	require.Eventually(t, func() bool {
		size, err := svc.QueueSize(ctx)
		return err == nil && size == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFacade_LockKeyStable(t *testing.T) {
	assert.Equal(t, hookq.LockKey("shop-1"), hookq.LockKey("shop-1"))
	assert.GreaterOrEqual(t, hookq.LockKey("shop-1"), int64(0))
}
