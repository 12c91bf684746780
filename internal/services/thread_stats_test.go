package services

import (
	"testing"
	"time"

	"github.com/velora-hq/threadboard-backend/internal/types"
)

func msgAt(direction string, at time.Time) *types.Message {
	return &types.Message{Direction: direction, CreatedAt: at}
}

func TestDeriveThreadStateResponded(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		directions []string
		want       string
	}{
		{name: "empty_log", directions: nil, want: types.RespondedNo},
		{name: "last_incoming", directions: []string{"incoming"}, want: types.RespondedYes},
		{name: "last_outgoing", directions: []string{"incoming", "outgoing"}, want: types.RespondedNo},
		{name: "incoming_after_reply", directions: []string{"incoming", "outgoing", "incoming"}, want: types.RespondedYes},
		{name: "double_outgoing_tail", directions: []string{"incoming", "outgoing", "outgoing"}, want: types.RespondedNo},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msgs := make([]*types.Message, 0, len(tc.directions))
			for i, d := range tc.directions {
				msgs = append(msgs, msgAt(d, base.Add(time.Duration(i)*time.Minute)))
			}
			got := deriveThreadState(msgs)
			if got.Responded != tc.want {
				t.Fatalf("responded=%q, want %q", got.Responded, tc.want)
			}
		})
	}
}

func TestDeriveThreadStateAvgResponseTime(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	t.Run("three_completed_pairs", func(t *testing.T) {
		// gaps: 60s, 120s, 300s -> mean 160s
		msgs := []*types.Message{
			msgAt("incoming", base),
			msgAt("outgoing", base.Add(60*time.Second)),
			msgAt("incoming", base.Add(10*time.Minute)),
			msgAt("outgoing", base.Add(12*time.Minute)),
			msgAt("incoming", base.Add(20*time.Minute)),
			msgAt("outgoing", base.Add(25*time.Minute)),
		}
		got := deriveThreadState(msgs)
		if got.AvgResponseTimeSeconds == nil {
			t.Fatal("avg is nil, want 160")
		}
		if *got.AvgResponseTimeSeconds != 160 {
			t.Fatalf("avg=%v, want 160", *got.AvgResponseTimeSeconds)
		}
		if got.IncomingCount != 3 || got.OutgoingCount != 3 {
			t.Fatalf("counts=%d/%d, want 3/3", got.IncomingCount, got.OutgoingCount)
		}
		if got.Responded != types.RespondedNo {
			t.Fatalf("responded=%q, want No", got.Responded)
		}
	})

	t.Run("consecutive_incoming_collapse_onto_first", func(t *testing.T) {
		// the outgoing answers the first unanswered incoming: gap 180s
		msgs := []*types.Message{
			msgAt("incoming", base),
			msgAt("incoming", base.Add(60*time.Second)),
			msgAt("outgoing", base.Add(180*time.Second)),
		}
		got := deriveThreadState(msgs)
		if got.AvgResponseTimeSeconds == nil || *got.AvgResponseTimeSeconds != 180 {
			t.Fatalf("avg=%v, want 180", got.AvgResponseTimeSeconds)
		}
	})

	t.Run("outgoing_without_pending_incoming", func(t *testing.T) {
		msgs := []*types.Message{
			msgAt("outgoing", base),
			msgAt("outgoing", base.Add(time.Minute)),
		}
		got := deriveThreadState(msgs)
		if got.AvgResponseTimeSeconds != nil {
			t.Fatalf("avg=%v, want nil (no completed pairs)", *got.AvgResponseTimeSeconds)
		}
	})

	t.Run("unanswered_trailing_incoming_excluded", func(t *testing.T) {
		msgs := []*types.Message{
			msgAt("incoming", base),
			msgAt("outgoing", base.Add(30*time.Second)),
			msgAt("incoming", base.Add(time.Hour)),
		}
		got := deriveThreadState(msgs)
		if got.AvgResponseTimeSeconds == nil || *got.AvgResponseTimeSeconds != 30 {
			t.Fatalf("avg=%v, want 30", got.AvgResponseTimeSeconds)
		}
	})

	t.Run("recompute_is_idempotent", func(t *testing.T) {
		msgs := []*types.Message{
			msgAt("incoming", base),
			msgAt("outgoing", base.Add(45*time.Second)),
			msgAt("incoming", base.Add(2*time.Minute)),
		}
		first := deriveThreadState(msgs)
		second := deriveThreadState(msgs)
		if *first.AvgResponseTimeSeconds != *second.AvgResponseTimeSeconds {
			t.Fatalf("recompute changed avg: %v vs %v", *first.AvgResponseTimeSeconds, *second.AvgResponseTimeSeconds)
		}
		if first.Responded != second.Responded {
			t.Fatalf("recompute changed responded: %q vs %q", first.Responded, second.Responded)
		}
	})
}

func TestReadyForDispatch(t *testing.T) {
	cases := []struct {
		name     string
		incoming int
		outgoing int
		want     bool
	}{
		{name: "below_both", incoming: 2, outgoing: 2, want: false},
		{name: "incoming_only", incoming: 5, outgoing: 2, want: false},
		{name: "outgoing_only", incoming: 2, outgoing: 5, want: false},
		{name: "exactly_three_each", incoming: 3, outgoing: 3, want: true},
		{name: "above_threshold", incoming: 10, outgoing: 4, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := readyForDispatch(threadDerived{IncomingCount: tc.incoming, OutgoingCount: tc.outgoing})
			if got != tc.want {
				t.Fatalf("readyForDispatch(%d,%d)=%v, want %v", tc.incoming, tc.outgoing, got, tc.want)
			}
		})
	}
}
