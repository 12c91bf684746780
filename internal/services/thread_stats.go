package services

import (
	"time"

	"github.com/velora-hq/threadboard-backend/internal/types"
)

// threadDerived holds every thread summary field that is a pure function of
// the ordered message log. Recomputing it twice over the same log yields the
// same values.
type threadDerived struct {
	LastMessageAt          *time.Time
	AvgResponseTimeSeconds *float64
	Responded              string
	IncomingCount          int
	OutgoingCount          int
}

// deriveThreadState folds once over the chronological message log.
//
// Average response time is the mean over completed incoming→outgoing pairs: an
// outgoing message answers the nearest preceding unanswered incoming one.
// Consecutive incoming messages collapse onto the first unanswered one;
// outgoing messages with nothing pending contribute no pair.
func deriveThreadState(messages []*types.Message) threadDerived {
	out := threadDerived{Responded: types.RespondedNo}
	if len(messages) == 0 {
		return out
	}

	var pendingIncoming *time.Time
	var totalGap time.Duration
	pairs := 0

	for _, m := range messages {
		switch m.Direction {
		case types.DirectionIncoming:
			out.IncomingCount++
			if pendingIncoming == nil {
				t := m.CreatedAt
				pendingIncoming = &t
			}
		case types.DirectionOutgoing:
			out.OutgoingCount++
			if pendingIncoming != nil {
				totalGap += m.CreatedAt.Sub(*pendingIncoming)
				pairs++
				pendingIncoming = nil
			}
		}
	}

	last := messages[len(messages)-1]
	lastAt := last.CreatedAt
	out.LastMessageAt = &lastAt
	if last.Direction == types.DirectionIncoming {
		out.Responded = types.RespondedYes
	}

	if pairs > 0 {
		avg := totalGap.Seconds() / float64(pairs)
		out.AvgResponseTimeSeconds = &avg
	}
	return out
}

// readyForDispatch reports whether a thread has crossed the scoring threshold:
// at least three messages in each direction.
func readyForDispatch(derived threadDerived) bool {
	return derived.IncomingCount >= 3 && derived.OutgoingCount >= 3
}
