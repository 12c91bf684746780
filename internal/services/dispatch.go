package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/velora-hq/threadboard-backend/internal/logger"
	"github.com/velora-hq/threadboard-backend/internal/repos"
	"github.com/velora-hq/threadboard-backend/internal/types"
)

const (
	defaultAnalysisChats = 20
	maxAnalysisChats     = 200
	defaultAnalysisDepth = 50
	maxAnalysisDepth     = 500

	// concurrent per-thread message fetches during bulk analysis
	analysisFetchParallelism = 8
)

type AnalysisResult struct {
	Sent  int    `json:"sent"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type DispatchService interface {
	// DispatchThread fires a single-thread payload at the scoring webhook from
	// a detached goroutine. It never blocks the caller and never reports
	// failure back; failures land in the logs and the delivery audit table.
	DispatchThread(thread *types.Thread, messages []*types.Message)
	// RunAnalysis is the manually-invoked bulk variant: it blocks for the full
	// query + POST and ignores the per-thread dispatch latch.
	RunAnalysis(ctx context.Context, filter types.ThreadFilter, numberOfChats, threadDepth int) (*AnalysisResult, error)
	// RecentDeliveries lists the newest audit rows for the dashboard.
	RecentDeliveries(ctx context.Context, limit int) ([]*types.WebhookDelivery, error)
	// Wait blocks until in-flight detached dispatches finish. Test/shutdown hook.
	Wait()
}

type dispatchService struct {
	log          *logger.Logger
	client       WebhookClient
	threadRepo   repos.ThreadRepo
	messageRepo  repos.MessageRepo
	deliveryRepo repos.WebhookDeliveryRepo
	timeout      time.Duration
	wg           sync.WaitGroup
}

func NewDispatchService(log *logger.Logger, client WebhookClient, threadRepo repos.ThreadRepo, messageRepo repos.MessageRepo, deliveryRepo repos.WebhookDeliveryRepo, timeout time.Duration) DispatchService {
	serviceLog := log.With("service", "DispatchService")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &dispatchService{
		log:          serviceLog,
		client:       client,
		threadRepo:   threadRepo,
		messageRepo:  messageRepo,
		deliveryRepo: deliveryRepo,
		timeout:      timeout,
	}
}

func (ds *dispatchService) DispatchThread(thread *types.Thread, messages []*types.Message) {
	if ds.client == nil {
		ds.log.Warn("No webhook client configured, skipping dispatch", "thread_id", thread.ThreadID)
		return
	}
	payload := BuildThreadPayload(thread, messages)

	ds.wg.Add(1)
	go func() {
		defer ds.wg.Done()
		// Detached from the triggering request: the write response must not
		// wait on, or fail because of, the scorer.
		ctx, cancel := context.WithTimeout(context.Background(), ds.timeout)
		defer cancel()

		status, err := ds.client.Post(ctx, []ThreadPayload{payload})

		// fresh context: ctx may already be dead when the POST timed out
		auditCtx, auditCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer auditCancel()
		ds.recordDelivery(auditCtx, payload.ThreadID, types.DeliveryKindAuto, []ThreadPayload{payload}, status, err)
		if err != nil {
			ds.log.Warn("Webhook dispatch failed", "thread_id", payload.ThreadID, "status", status, "error", err)
			return
		}
		ds.log.Info("Webhook dispatch sent", "thread_id", payload.ThreadID, "status", status, "messages", len(payload.Messages))
	}()
}

func (ds *dispatchService) RunAnalysis(ctx context.Context, filter types.ThreadFilter, numberOfChats, threadDepth int) (*AnalysisResult, error) {
	if ds.client == nil {
		return nil, fmt.Errorf("no webhook client configured")
	}
	if numberOfChats <= 0 {
		numberOfChats = defaultAnalysisChats
	}
	if numberOfChats > maxAnalysisChats {
		numberOfChats = maxAnalysisChats
	}
	if threadDepth <= 0 {
		threadDepth = defaultAnalysisDepth
	}
	if threadDepth > maxAnalysisDepth {
		threadDepth = maxAnalysisDepth
	}

	threads, err := ds.threadRepo.List(ctx, nil, filter, numberOfChats)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	if len(threads) == 0 {
		return &AnalysisResult{Sent: 0, OK: true}, nil
	}

	payloads := make([]ThreadPayload, len(threads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(analysisFetchParallelism)
	for i, t := range threads {
		g.Go(func() error {
			recent, err := ds.messageRepo.GetRecentByThreadID(gctx, nil, t.ThreadID, threadDepth)
			if err != nil {
				return fmt.Errorf("load messages for %s: %w", t.ThreadID, err)
			}
			// GetRecent returns newest-first; the scorer wants chronological.
			for l, r := 0, len(recent)-1; l < r; l, r = l+1, r-1 {
				recent[l], recent[r] = recent[r], recent[l]
			}
			payloads[i] = BuildThreadPayload(t, recent)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	status, postErr := ds.client.Post(ctx, payloads)
	ds.recordDelivery(ctx, "", types.DeliveryKindBulk, payloads, status, postErr)
	if postErr != nil {
		ds.log.Warn("Bulk analysis POST failed", "threads", len(payloads), "status", status, "error", postErr)
		return &AnalysisResult{Sent: len(payloads), OK: false, Error: postErr.Error()}, nil
	}
	ds.log.Info("Bulk analysis sent", "threads", len(payloads), "status", status)
	return &AnalysisResult{Sent: len(payloads), OK: true}, nil
}

func (ds *dispatchService) RecentDeliveries(ctx context.Context, limit int) ([]*types.WebhookDelivery, error) {
	if ds.deliveryRepo == nil {
		return []*types.WebhookDelivery{}, nil
	}
	return ds.deliveryRepo.GetRecent(ctx, nil, limit)
}

func (ds *dispatchService) Wait() {
	ds.wg.Wait()
}

// recordDelivery writes the audit row. Best effort: an insert failure must not
// disturb the dispatch path, so it is logged and swallowed.
func (ds *dispatchService) recordDelivery(ctx context.Context, threadID, kind string, payloads []ThreadPayload, status int, postErr error) {
	if ds.deliveryRepo == nil {
		return
	}
	row := &types.WebhookDelivery{
		ID:          uuid.New(),
		ThreadID:    threadID,
		Kind:        kind,
		Success:     postErr == nil,
		HTTPStatus:  status,
		ThreadCount: len(payloads),
	}
	if postErr != nil {
		row.Error = postErr.Error()
	}
	if raw, err := json.Marshal(payloads); err == nil {
		row.Payload = datatypes.JSON(raw)
	}
	if _, err := ds.deliveryRepo.Create(ctx, nil, []*types.WebhookDelivery{row}); err != nil {
		ds.log.Warn("Failed to record webhook delivery", "kind", kind, "thread_id", threadID, "error", err)
	}
}
