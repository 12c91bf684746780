package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/velora-hq/threadboard-backend/internal/logger"
	"github.com/velora-hq/threadboard-backend/internal/types"
)

type ThreadRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, threadID string) (*types.Thread, error)
	Create(ctx context.Context, tx *gorm.DB, thread *types.Thread) (*types.Thread, error)
	Update(ctx context.Context, tx *gorm.DB, threadID string, fields map[string]any) error
	List(ctx context.Context, tx *gorm.DB, filter types.ThreadFilter, limit int) ([]*types.Thread, error)
	DistinctValues(ctx context.Context, tx *gorm.DB, column string) ([]string, error)
}

type threadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewThreadRepo(db *gorm.DB, baseLog *logger.Logger) ThreadRepo {
	repoLog := baseLog.With("repo", "ThreadRepo")
	return &threadRepo{db: db, log: repoLog}
}

func (tr *threadRepo) GetByID(ctx context.Context, tx *gorm.DB, threadID string) (*types.Thread, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	var results []*types.Thread
	if err := transaction.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (tr *threadRepo) Create(ctx context.Context, tx *gorm.DB, thread *types.Thread) (*types.Thread, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	if err := transaction.WithContext(ctx).Create(thread).Error; err != nil {
		return nil, err
	}
	return thread, nil
}

func (tr *threadRepo) Update(ctx context.Context, tx *gorm.DB, threadID string, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	if len(fields) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Thread{}).
		Where("thread_id = ?", threadID).
		Updates(fields).Error
}

// List returns threads matching the filter, newest activity first.
func (tr *threadRepo) List(ctx context.Context, tx *gorm.DB, filter types.ThreadFilter, limit int) ([]*types.Thread, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	q := applyThreadFilter(transaction.WithContext(ctx).Model(&types.Thread{}), filter, time.Now().UTC())
	q = q.Order("last_message_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var results []*types.Thread
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (tr *threadRepo) DistinctValues(ctx context.Context, tx *gorm.DB, column string) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	var values []string
	if err := transaction.WithContext(ctx).
		Model(&types.Thread{}).
		Distinct(column).
		Order(column + " ASC").
		Pluck(column, &values).Error; err != nil {
		return nil, err
	}
	return values, nil
}

// applyThreadFilter translates the filter conjunction into WHERE clauses.
// Absent fields add nothing.
func applyThreadFilter(q *gorm.DB, f types.ThreadFilter, now time.Time) *gorm.DB {
	if len(f.Operators) > 0 {
		q = q.Where("operator IN ?", f.Operators)
	}
	if len(f.Models) > 0 {
		q = q.Where("model IN ?", f.Models)
	}
	if f.Start != nil {
		q = q.Where("last_message_at >= ?", *f.Start)
	}
	if f.End != nil {
		q = q.Where("last_message_at <= ?", *f.End)
	}
	if f.Since > 0 {
		q = q.Where("last_message_at >= ?", now.Add(-f.Since))
	}
	if f.AnalyzedOnly {
		q = q.Where("acknowledgment_score IS NOT NULL AND engagement_score IS NOT NULL AND conversion_score IS NOT NULL")
	}
	switch f.LastMessageType {
	case types.DirectionIncoming:
		q = q.Where("responded = ?", types.RespondedYes)
	case types.DirectionOutgoing:
		q = q.Where("responded = ?", types.RespondedNo)
	}
	return q
}
