package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/velora-hq/threadboard-backend/internal/types"
)

// parseSinceBucket turns a relative-age query value ("30m", "2h", "7d") into a
// duration. Empty and "all" mean no restriction.
func parseSinceBucket(raw string) (time.Duration, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == "all" {
		return 0, nil
	}
	if strings.HasSuffix(raw, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid lastMessageSince value %q", raw)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid lastMessageSince value %q", raw)
	}
	return d, nil
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBoolParam(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func parseTimeParam(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q, want RFC3339", raw)
	}
	return &t, nil
}

// parseThreadFilterQuery reads the shared filter query params used by
// GET /threads and GET /stats.
func parseThreadFilterQuery(c *gin.Context) (types.ThreadFilter, error) {
	var filter types.ThreadFilter

	filter.Operators = splitCSV(c.Query("operator"))
	filter.Models = splitCSV(c.Query("model"))
	filter.AnalyzedOnly = parseBoolParam(c.Query("analyzedOnly"))

	start, err := parseTimeParam(c.Query("start"))
	if err != nil {
		return filter, err
	}
	filter.Start = start

	end, err := parseTimeParam(c.Query("end"))
	if err != nil {
		return filter, err
	}
	filter.End = end

	since, err := parseSinceBucket(c.Query("lastMessageSince"))
	if err != nil {
		return filter, err
	}
	filter.Since = since

	lastType := strings.ToLower(strings.TrimSpace(c.Query("lastMessageType")))
	if lastType != "" && !types.ValidDirection(lastType) {
		return filter, fmt.Errorf("invalid lastMessageType %q", lastType)
	}
	filter.LastMessageType = lastType

	return filter, nil
}
