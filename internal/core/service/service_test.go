package service

import (
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/rentflow/payment-gateway/internal/adapter/secondary/database"
	"github.com/rentflow/payment-gateway/internal/constant/model/db"
	"github.com/rentflow/payment-gateway/internal/port/output"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *database.GormPaymentRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := gormDB.AutoMigrate(&db.Invoice{}, &db.Payment{}, &db.ExternalTransaction{}, &db.CallbackRecord{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database.NewGormPaymentRepository(gormDB)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ChunkDelay = time.Millisecond
	cfg.RetryBaseDelay = 10 * time.Millisecond
	cfg.RetryMaxAttempts = 3
	return cfg
}

// fakeMessaging captures published messages in memory.
type fakeMessaging struct {
	mu            sync.Mutex
	notifications []output.NotificationMessage
	scores        []output.ScoreRecomputeMessage
	retries       []output.RetryTask
	publishErr    error
}

func (f *fakeMessaging) PublishNotification(msg output.NotificationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.notifications = append(f.notifications, msg)
	return nil
}

func (f *fakeMessaging) PublishScoreRecompute(msg output.ScoreRecomputeMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.scores = append(f.scores, msg)
	return nil
}

func (f *fakeMessaging) PublishRetryTask(task output.RetryTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.retries = append(f.retries, task)
	return nil
}

func (f *fakeMessaging) Close() error { return nil }

func (f *fakeMessaging) retryTasks() []output.RetryTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]output.RetryTask, len(f.retries))
	copy(out, f.retries)
	return out
}
