package services

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/velora-hq/threadboard-backend/internal/logger"
	"github.com/velora-hq/threadboard-backend/internal/repos"
	"github.com/velora-hq/threadboard-backend/internal/types"
)

// newTestDB opens a per-test in-memory sqlite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// keep the shared in-memory database alive for the whole test
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := gdb.AutoMigrate(&types.Thread{}, &types.Message{}, &types.WebhookDelivery{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

type testEnv struct {
	db           *gorm.DB
	threadRepo   repos.ThreadRepo
	messageRepo  repos.MessageRepo
	deliveryRepo repos.WebhookDeliveryRepo
	threads      ThreadService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := newTestDB(t)
	log := logger.NewNop()
	threadRepo := repos.NewThreadRepo(gdb, log)
	messageRepo := repos.NewMessageRepo(gdb, log)
	deliveryRepo := repos.NewWebhookDeliveryRepo(gdb, log)
	return &testEnv{
		db:           gdb,
		threadRepo:   threadRepo,
		messageRepo:  messageRepo,
		deliveryRepo: deliveryRepo,
		threads:      NewThreadService(gdb, log, threadRepo, messageRepo, nil),
	}
}

func recordOne(t *testing.T, env *testEnv, threadID, direction string) *RecordMessageResult {
	t.Helper()
	res, err := env.threads.RecordMessage(t.Context(), RecordMessageInput{
		ThreadID:  threadID,
		Operator:  "alice",
		Model:     "aurora-2",
		Direction: direction,
		Text:      "hello there",
	})
	if err != nil {
		t.Fatalf("RecordMessage(%s, %s): %v", threadID, direction, err)
	}
	return res
}
