package services

import (
	"errors"
	"testing"
	"time"

	"github.com/velora-hq/threadboard-backend/internal/types"
)

func intPtr(v int) *int { return &v }

func TestRecordMessageValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name  string
		input RecordMessageInput
	}{
		{name: "missing_thread_id", input: RecordMessageInput{Operator: "a", Model: "m", Direction: "incoming", Text: "x"}},
		{name: "missing_operator", input: RecordMessageInput{ThreadID: "t", Model: "m", Direction: "incoming", Text: "x"}},
		{name: "missing_model", input: RecordMessageInput{ThreadID: "t", Operator: "a", Direction: "incoming", Text: "x"}},
		{name: "missing_text", input: RecordMessageInput{ThreadID: "t", Operator: "a", Model: "m", Direction: "incoming"}},
		{name: "bad_direction", input: RecordMessageInput{ThreadID: "t", Operator: "a", Model: "m", Direction: "sideways", Text: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.threads.RecordMessage(t.Context(), tc.input); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err=%v, want ErrInvalidInput", err)
			}
		})
	}

	// nothing may have been written
	threads, err := env.threads.ListThreads(t.Context(), types.ThreadFilter{}, false)
	if err != nil {
		t.Fatalf("ListThreads: %v", err)
	}
	if len(threads) != 0 {
		t.Fatalf("rejected writes left %d threads behind", len(threads))
	}
}

func TestRecordMessageDerivesThreadState(t *testing.T) {
	env := newTestEnv(t)

	res := recordOne(t, env, "t1", "incoming")
	if res.Thread.Responded != types.RespondedYes {
		t.Fatalf("responded=%q after incoming, want Yes", res.Thread.Responded)
	}
	if res.Thread.LastMessageAt == nil {
		t.Fatal("last_message_at not set")
	}

	res = recordOne(t, env, "t1", "outgoing")
	if res.Thread.Responded != types.RespondedNo {
		t.Fatalf("responded=%q after outgoing, want No", res.Thread.Responded)
	}
	if res.Thread.IncomingCount != 1 || res.Thread.OutgoingCount != 1 {
		t.Fatalf("counts=%d/%d, want 1/1", res.Thread.IncomingCount, res.Thread.OutgoingCount)
	}
	if res.Thread.AvgResponseTimeSeconds == nil {
		t.Fatal("avg_response_time not computed after a completed pair")
	}
}

func TestRecordMessageResetsScores(t *testing.T) {
	env := newTestEnv(t)

	recordOne(t, env, "t1", "incoming")
	if _, err := env.threads.ApplyScores(t.Context(), "t1", map[string]*int{
		"acknowledgment_score": intPtr(85),
		"engagement_score":     intPtr(70),
		"conversion_score":     intPtr(40),
	}); err != nil {
		t.Fatalf("ApplyScores: %v", err)
	}

	res := recordOne(t, env, "t1", "outgoing")
	if res.Thread.AcknowledgmentScore != nil || res.Thread.EngagementScore != nil || res.Thread.ConversionScore != nil {
		t.Fatalf("scores survived a new message: %+v", res.Thread)
	}
}

func TestRecordMessageConvertedIsMonotonic(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.threads.RecordMessage(t.Context(), RecordMessageInput{
		ThreadID: "t1", Operator: "alice", Model: "aurora-2",
		Direction: "incoming", Text: "buying now", Converted: "Yes",
	})
	if err != nil {
		t.Fatalf("RecordMessage: %v", err)
	}
	if res.Thread.Converted == nil || *res.Thread.Converted != types.ConvertedYes {
		t.Fatalf("converted=%v, want Yes", res.Thread.Converted)
	}

	// later writes without the flag must not revert it
	res = recordOne(t, env, "t1", "outgoing")
	if res.Thread.Converted == nil || *res.Thread.Converted != types.ConvertedYes {
		t.Fatalf("converted reverted to %v", res.Thread.Converted)
	}
}

func TestDispatchLatchFiresOncePerThread(t *testing.T) {
	env := newTestEnv(t)

	directions := []string{"incoming", "outgoing", "incoming", "outgoing", "incoming", "outgoing"}
	fired := 0
	for i, d := range directions {
		res := recordOne(t, env, "t1", d)
		if res.Dispatch {
			fired++
			if i != len(directions)-1 {
				t.Fatalf("dispatch fired early at message %d", i+1)
			}
			if len(res.Messages) != 6 {
				t.Fatalf("dispatch payload has %d messages, want 6", len(res.Messages))
			}
			if res.Thread.LastDispatchedAt == nil {
				t.Fatal("latch not persisted")
			}
		}
	}
	if fired != 1 {
		t.Fatalf("dispatch fired %d times, want exactly once", fired)
	}

	// messages after the crossing never re-fire
	for i := 0; i < 4; i++ {
		res := recordOne(t, env, "t1", "incoming")
		if res.Dispatch {
			t.Fatalf("dispatch re-fired on message %d after the latch", i+7)
		}
	}
}

func TestApplyScores(t *testing.T) {
	env := newTestEnv(t)
	recordOne(t, env, "t1", "incoming")

	t.Run("out_of_range_rejected", func(t *testing.T) {
		_, err := env.threads.ApplyScores(t.Context(), "t1", map[string]*int{"acknowledgment_score": intPtr(150)})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("err=%v, want ErrInvalidInput", err)
		}
	})

	t.Run("unknown_thread", func(t *testing.T) {
		_, err := env.threads.ApplyScores(t.Context(), "nope", map[string]*int{"acknowledgment_score": intPtr(50)})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err=%v, want ErrNotFound", err)
		}
	})

	t.Run("partial_update_preserves_other_fields", func(t *testing.T) {
		if _, err := env.threads.ApplyScores(t.Context(), "t1", map[string]*int{
			"engagement_score": intPtr(70),
			"conversion_score": intPtr(40),
		}); err != nil {
			t.Fatalf("seed scores: %v", err)
		}
		updated, err := env.threads.ApplyScores(t.Context(), "t1", map[string]*int{"acknowledgment_score": intPtr(85)})
		if err != nil {
			t.Fatalf("ApplyScores: %v", err)
		}
		if updated.AcknowledgmentScore == nil || *updated.AcknowledgmentScore != 85 {
			t.Fatalf("acknowledgment_score=%v, want 85", updated.AcknowledgmentScore)
		}
		if updated.EngagementScore == nil || *updated.EngagementScore != 70 {
			t.Fatalf("engagement_score=%v, want untouched 70", updated.EngagementScore)
		}
		if updated.ConversionScore == nil || *updated.ConversionScore != 40 {
			t.Fatalf("conversion_score=%v, want untouched 40", updated.ConversionScore)
		}
	})

	t.Run("explicit_null_clears_field", func(t *testing.T) {
		updated, err := env.threads.ApplyScores(t.Context(), "t1", map[string]*int{"engagement_score": nil})
		if err != nil {
			t.Fatalf("ApplyScores: %v", err)
		}
		if updated.EngagementScore != nil {
			t.Fatalf("engagement_score=%v, want nil", *updated.EngagementScore)
		}
	})
}

func TestListThreadsFilters(t *testing.T) {
	env := newTestEnv(t)

	// alice/t1 responded=Yes, bob/t2 responded=No
	recordOne(t, env, "t1", "incoming")
	if _, err := env.threads.RecordMessage(t.Context(), RecordMessageInput{
		ThreadID: "t2", Operator: "bob", Model: "nimbus-1",
		Direction: "outgoing", Text: "following up",
	}); err != nil {
		t.Fatalf("RecordMessage: %v", err)
	}

	t.Run("no_filter_returns_all", func(t *testing.T) {
		threads, err := env.threads.ListThreads(t.Context(), types.ThreadFilter{}, false)
		if err != nil {
			t.Fatalf("ListThreads: %v", err)
		}
		if len(threads) != 2 {
			t.Fatalf("got %d threads, want 2", len(threads))
		}
	})

	t.Run("operator_set", func(t *testing.T) {
		threads, err := env.threads.ListThreads(t.Context(), types.ThreadFilter{Operators: []string{"bob"}}, false)
		if err != nil {
			t.Fatalf("ListThreads: %v", err)
		}
		if len(threads) != 1 || threads[0].ThreadID != "t2" {
			t.Fatalf("operator filter returned %+v", threads)
		}
	})

	t.Run("last_message_type", func(t *testing.T) {
		threads, err := env.threads.ListThreads(t.Context(), types.ThreadFilter{LastMessageType: "incoming"}, false)
		if err != nil {
			t.Fatalf("ListThreads: %v", err)
		}
		if len(threads) != 1 || threads[0].ThreadID != "t1" {
			t.Fatalf("lastMessageType filter returned %+v", threads)
		}
	})

	t.Run("since_bucket_excludes_stale", func(t *testing.T) {
		stale := time.Now().UTC().Add(-3 * time.Hour)
		if err := env.threadRepo.Update(t.Context(), nil, "t2", map[string]any{"last_message_at": stale}); err != nil {
			t.Fatalf("age t2: %v", err)
		}
		threads, err := env.threads.ListThreads(t.Context(), types.ThreadFilter{Since: 2 * time.Hour}, false)
		if err != nil {
			t.Fatalf("ListThreads: %v", err)
		}
		if len(threads) != 1 || threads[0].ThreadID != "t1" {
			t.Fatalf("since filter returned %+v", threads)
		}
	})

	t.Run("analyzed_only", func(t *testing.T) {
		if _, err := env.threads.ApplyScores(t.Context(), "t1", map[string]*int{
			"acknowledgment_score": intPtr(80),
			"engagement_score":     intPtr(60),
			"conversion_score":     intPtr(90),
		}); err != nil {
			t.Fatalf("ApplyScores: %v", err)
		}
		threads, err := env.threads.ListThreads(t.Context(), types.ThreadFilter{AnalyzedOnly: true}, false)
		if err != nil {
			t.Fatalf("ListThreads: %v", err)
		}
		if len(threads) != 1 || threads[0].ThreadID != "t1" {
			t.Fatalf("analyzedOnly filter returned %+v", threads)
		}
	})

	t.Run("chat_view_loads_messages", func(t *testing.T) {
		threads, err := env.threads.ListThreads(t.Context(), types.ThreadFilter{Operators: []string{"alice"}}, true)
		if err != nil {
			t.Fatalf("ListThreads: %v", err)
		}
		if len(threads) != 1 || len(threads[0].Messages) != 1 {
			t.Fatalf("chatView did not load messages: %+v", threads)
		}
	})
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)

	recordOne(t, env, "t1", "incoming")
	recordOne(t, env, "t1", "outgoing")
	if _, err := env.threads.RecordMessage(t.Context(), RecordMessageInput{
		ThreadID: "t2", Operator: "bob", Model: "nimbus-1",
		Direction: "incoming", Text: "hi", Converted: "Yes",
	}); err != nil {
		t.Fatalf("RecordMessage: %v", err)
	}

	stats, err := env.threads.Stats(t.Context(), types.ThreadFilter{})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalThreads != 2 {
		t.Fatalf("total_threads=%d, want 2", stats.TotalThreads)
	}
	if stats.Responded != 1 || stats.AwaitingReply != 1 {
		t.Fatalf("responded/awaiting=%d/%d, want 1/1", stats.Responded, stats.AwaitingReply)
	}
	if stats.Converted != 1 {
		t.Fatalf("converted=%d, want 1", stats.Converted)
	}
	if stats.TotalMessages != 3 {
		t.Fatalf("total_messages=%d, want 3", stats.TotalMessages)
	}
	if stats.AvgResponseTimeSeconds == nil {
		t.Fatal("avg_response_time missing, t1 has a completed pair")
	}

	t.Run("empty_filter_result_is_zero_not_error", func(t *testing.T) {
		stats, err := env.threads.Stats(t.Context(), types.ThreadFilter{Operators: []string{"nobody"}})
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if stats.TotalThreads != 0 || stats.TotalMessages != 0 {
			t.Fatalf("empty filter produced %+v", stats)
		}
	})
}

func TestFiltersDistinctValues(t *testing.T) {
	env := newTestEnv(t)

	recordOne(t, env, "t1", "incoming")
	if _, err := env.threads.RecordMessage(t.Context(), RecordMessageInput{
		ThreadID: "t2", Operator: "bob", Model: "nimbus-1",
		Direction: "incoming", Text: "hi",
	}); err != nil {
		t.Fatalf("RecordMessage: %v", err)
	}

	values, err := env.threads.Filters(t.Context())
	if err != nil {
		t.Fatalf("Filters: %v", err)
	}
	if len(values.Operators) != 2 || values.Operators[0] != "alice" || values.Operators[1] != "bob" {
		t.Fatalf("operators=%v, want [alice bob]", values.Operators)
	}
	if len(values.Models) != 2 {
		t.Fatalf("models=%v, want two distinct values", values.Models)
	}
}
