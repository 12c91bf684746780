package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/velora-hq/threadboard-backend/internal/logger"
	"github.com/velora-hq/threadboard-backend/internal/types"
)

type MessageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, messages []*types.Message) ([]*types.Message, error)
	GetByThreadID(ctx context.Context, tx *gorm.DB, threadID string) ([]*types.Message, error)
	GetRecentByThreadID(ctx context.Context, tx *gorm.DB, threadID string, limit int) ([]*types.Message, error)
	CountByThreadIDs(ctx context.Context, tx *gorm.DB, threadIDs []string) (int64, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	repoLog := baseLog.With("repo", "MessageRepo")
	return &messageRepo{db: db, log: repoLog}
}

func (mr *messageRepo) Create(ctx context.Context, tx *gorm.DB, messages []*types.Message) ([]*types.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	if len(messages) == 0 {
		return []*types.Message{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// GetByThreadID returns the full message log for a thread in chronological
// order. The id tiebreak keeps ordering stable for same-timestamp rows.
func (mr *messageRepo) GetByThreadID(ctx context.Context, tx *gorm.DB, threadID string) ([]*types.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var results []*types.Message
	if err := transaction.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetRecentByThreadID returns up to limit messages, newest first.
func (mr *messageRepo) GetRecentByThreadID(ctx context.Context, tx *gorm.DB, threadID string, limit int) ([]*types.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var results []*types.Message
	q := transaction.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (mr *messageRepo) CountByThreadIDs(ctx context.Context, tx *gorm.DB, threadIDs []string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var count int64
	if len(threadIDs) == 0 {
		return 0, nil
	}
	if err := transaction.WithContext(ctx).
		Model(&types.Message{}).
		Where("thread_id IN ?", threadIDs).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
