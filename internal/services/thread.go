package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velora-hq/threadboard-backend/internal/logger"
	"github.com/velora-hq/threadboard-backend/internal/repos"
	"github.com/velora-hq/threadboard-backend/internal/types"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// FilterCache is an optional read-through cache for the dashboard's filter
// dropdown values. A nil cache disables caching.
type FilterCache interface {
	Get(ctx context.Context) (*types.FilterValues, bool)
	Set(ctx context.Context, values *types.FilterValues)
}

type RecordMessageInput struct {
	ThreadID  string
	Operator  string
	Model     string
	Direction string
	Text      string
	Converted string
}

type RecordMessageResult struct {
	Thread *types.Thread
	// Messages is the full chronological log after the append; the dispatcher
	// reuses it so the payload matches exactly what the transaction saw.
	Messages []*types.Message
	// Dispatch is set on the write that first brings both direction counts to
	// three or more. The latch lives on the thread row, so it fires once.
	Dispatch bool
}

type ThreadService interface {
	RecordMessage(ctx context.Context, input RecordMessageInput) (*RecordMessageResult, error)
	ListThreads(ctx context.Context, filter types.ThreadFilter, chatView bool) ([]*types.Thread, error)
	Stats(ctx context.Context, filter types.ThreadFilter) (*types.ThreadStats, error)
	Filters(ctx context.Context) (*types.FilterValues, error)
	ApplyScores(ctx context.Context, threadID string, scores map[string]*int) (*types.Thread, error)
}

type threadService struct {
	db          *gorm.DB
	log         *logger.Logger
	threadRepo  repos.ThreadRepo
	messageRepo repos.MessageRepo
	filterCache FilterCache
}

func NewThreadService(db *gorm.DB, log *logger.Logger, threadRepo repos.ThreadRepo, messageRepo repos.MessageRepo, filterCache FilterCache) ThreadService {
	serviceLog := log.With("service", "ThreadService")
	return &threadService{
		db:          db,
		log:         serviceLog,
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		filterCache: filterCache,
	}
}

func validateRecordMessageInput(input *RecordMessageInput) error {
	input.ThreadID = strings.TrimSpace(input.ThreadID)
	input.Operator = strings.TrimSpace(input.Operator)
	input.Model = strings.TrimSpace(input.Model)
	input.Direction = strings.ToLower(strings.TrimSpace(input.Direction))
	input.Text = strings.TrimSpace(input.Text)

	if input.ThreadID == "" || input.Operator == "" || input.Model == "" || input.Text == "" {
		return fmt.Errorf("%w: thread_id, operator, model and message are required", ErrInvalidInput)
	}
	if !types.ValidDirection(input.Direction) {
		return fmt.Errorf("%w: type must be %q or %q", ErrInvalidInput, types.DirectionIncoming, types.DirectionOutgoing)
	}
	return nil
}

func convertedRequested(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true", "1":
		return true
	}
	return false
}

// RecordMessage appends a message and recomputes every derived thread field in
// one transaction. No intermediate state is visible to other readers; any
// failure rolls the whole write back.
func (ts *threadService) RecordMessage(ctx context.Context, input RecordMessageInput) (*RecordMessageResult, error) {
	if err := validateRecordMessageInput(&input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var result *RecordMessageResult

	if err := ts.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		thread, err := ts.threadRepo.GetByID(ctx, tx, input.ThreadID)
		if err != nil {
			return fmt.Errorf("load thread: %w", err)
		}
		if thread == nil {
			thread, err = ts.threadRepo.Create(ctx, tx, &types.Thread{
				ThreadID:  input.ThreadID,
				Operator:  input.Operator,
				Model:     input.Model,
				Responded: types.RespondedNo,
			})
			if err != nil {
				return fmt.Errorf("create thread: %w", err)
			}
		}

		msg := &types.Message{
			ID:        uuid.New(),
			ThreadID:  input.ThreadID,
			Operator:  input.Operator,
			Model:     input.Model,
			Direction: input.Direction,
			Text:      input.Text,
			CreatedAt: now,
		}
		if _, err := ts.messageRepo.Create(ctx, tx, []*types.Message{msg}); err != nil {
			return fmt.Errorf("append message: %w", err)
		}

		messages, err := ts.messageRepo.GetByThreadID(ctx, tx, input.ThreadID)
		if err != nil {
			return fmt.Errorf("reload messages: %w", err)
		}
		derived := deriveThreadState(messages)

		fields := map[string]any{
			"operator":                  input.Operator,
			"model":                     input.Model,
			"last_message_at":           derived.LastMessageAt,
			"avg_response_time_seconds": derived.AvgResponseTimeSeconds,
			"responded":                 derived.Responded,
			"incoming_count":            derived.IncomingCount,
			"outgoing_count":            derived.OutgoingCount,
		}
		// New content invalidates whatever the scorer said about the old content.
		for _, col := range types.ScoreFields {
			fields[col] = nil
		}
		if convertedRequested(input.Converted) && thread.Converted == nil {
			fields["converted"] = types.ConvertedYes
		}

		dispatch := false
		if readyForDispatch(derived) && thread.LastDispatchedAt == nil {
			fields["last_dispatched_at"] = now
			dispatch = true
		}

		if err := ts.threadRepo.Update(ctx, tx, input.ThreadID, fields); err != nil {
			return fmt.Errorf("update thread: %w", err)
		}

		updated, err := ts.threadRepo.GetByID(ctx, tx, input.ThreadID)
		if err != nil {
			return fmt.Errorf("reload thread: %w", err)
		}
		result = &RecordMessageResult{Thread: updated, Messages: messages, Dispatch: dispatch}
		return nil
	}); err != nil {
		ts.log.Warn("RecordMessage transaction failed", "thread_id", input.ThreadID, "error", err)
		return nil, err
	}
	return result, nil
}

func (ts *threadService) ListThreads(ctx context.Context, filter types.ThreadFilter, chatView bool) ([]*types.Thread, error) {
	threads, err := ts.threadRepo.List(ctx, nil, filter, 0)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	if !chatView {
		return threads, nil
	}
	for _, t := range threads {
		msgs, err := ts.messageRepo.GetByThreadID(ctx, nil, t.ThreadID)
		if err != nil {
			return nil, fmt.Errorf("load messages for %s: %w", t.ThreadID, err)
		}
		t.Messages = msgs
	}
	return threads, nil
}

func (ts *threadService) Stats(ctx context.Context, filter types.ThreadFilter) (*types.ThreadStats, error) {
	threads, err := ts.threadRepo.List(ctx, nil, filter, 0)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	stats := &types.ThreadStats{TotalThreads: len(threads)}
	ids := make([]string, 0, len(threads))
	var avgSum float64
	avgCount := 0
	for _, t := range threads {
		ids = append(ids, t.ThreadID)
		if t.Responded == types.RespondedYes {
			stats.Responded++
		} else {
			stats.AwaitingReply++
		}
		if t.Converted != nil {
			stats.Converted++
		}
		if t.Analyzed() {
			stats.Analyzed++
		}
		if t.AvgResponseTimeSeconds != nil {
			avgSum += *t.AvgResponseTimeSeconds
			avgCount++
		}
	}
	if avgCount > 0 {
		avg := avgSum / float64(avgCount)
		stats.AvgResponseTimeSeconds = &avg
	}

	total, err := ts.messageRepo.CountByThreadIDs(ctx, nil, ids)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	stats.TotalMessages = int(total)
	return stats, nil
}

func (ts *threadService) Filters(ctx context.Context) (*types.FilterValues, error) {
	if ts.filterCache != nil {
		if cached, ok := ts.filterCache.Get(ctx); ok {
			return cached, nil
		}
	}

	operators, err := ts.threadRepo.DistinctValues(ctx, nil, "operator")
	if err != nil {
		return nil, fmt.Errorf("distinct operators: %w", err)
	}
	models, err := ts.threadRepo.DistinctValues(ctx, nil, "model")
	if err != nil {
		return nil, fmt.Errorf("distinct models: %w", err)
	}

	values := &types.FilterValues{Operators: operators, Models: models}
	if ts.filterCache != nil {
		ts.filterCache.Set(ctx, values)
	}
	return values, nil
}

// ApplyScores updates only the provided score columns; a nil value clears the
// column. The write path never calls this — scores arrive solely from the
// external scorer's callback.
func (ts *threadService) ApplyScores(ctx context.Context, threadID string, scores map[string]*int) (*types.Thread, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, fmt.Errorf("%w: thread id required", ErrInvalidInput)
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: no score fields provided", ErrInvalidInput)
	}

	fields := map[string]any{}
	for col, val := range scores {
		if !isScoreField(col) {
			return nil, fmt.Errorf("%w: unknown score field %q", ErrInvalidInput, col)
		}
		if val != nil && (*val < 0 || *val > 100) {
			return nil, fmt.Errorf("%w: %s must be between 0 and 100", ErrInvalidInput, col)
		}
		if val == nil {
			fields[col] = nil
		} else {
			fields[col] = *val
		}
	}

	var updated *types.Thread
	if err := ts.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		thread, err := ts.threadRepo.GetByID(ctx, tx, threadID)
		if err != nil {
			return fmt.Errorf("load thread: %w", err)
		}
		if thread == nil {
			return fmt.Errorf("%w: thread %s", ErrNotFound, threadID)
		}
		if err := ts.threadRepo.Update(ctx, tx, threadID, fields); err != nil {
			return fmt.Errorf("update scores: %w", err)
		}
		updated, err = ts.threadRepo.GetByID(ctx, tx, threadID)
		return err
	}); err != nil {
		return nil, err
	}
	return updated, nil
}

func isScoreField(col string) bool {
	for _, known := range types.ScoreFields {
		if col == known {
			return true
		}
	}
	return false
}
