package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/velora-hq/threadboard-backend/internal/logger"
	"github.com/velora-hq/threadboard-backend/internal/services"
	"github.com/velora-hq/threadboard-backend/internal/types"
)

type AnalysisHandler struct {
	log             *logger.Logger
	dispatchService services.DispatchService
}

func NewAnalysisHandler(log *logger.Logger, dispatchService services.DispatchService) *AnalysisHandler {
	handlerLog := log.With("handler", "AnalysisHandler")
	return &AnalysisHandler{log: handlerLog, dispatchService: dispatchService}
}

type runAnalysisRequest struct {
	Filters       runAnalysisFilters `json:"filters"`
	NumberOfChats int                `json:"numberOfChats"`
	ThreadDepth   int                `json:"threadDepth"`
}

type runAnalysisFilters struct {
	Operators        []string `json:"operators"`
	Models           []string `json:"models"`
	LastMessageSince string   `json:"lastMessageSince"`
	AnalyzedOnly     bool     `json:"analyzedOnly"`
	LastMessageType  string   `json:"lastMessageType"`
}

// Run sends a filtered batch of threads to the scoring webhook. It blocks for
// the whole query + POST, unlike the per-message trigger.
func (ah *AnalysisHandler) Run(c *gin.Context) {
	var req runAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	since, err := parseSinceBucket(req.Filters.LastMessageSince)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_filter", err)
		return
	}
	lastType := strings.ToLower(strings.TrimSpace(req.Filters.LastMessageType))
	if lastType != "" && !types.ValidDirection(lastType) {
		RespondError(c, http.StatusBadRequest, "invalid_filter", fmt.Errorf("invalid lastMessageType %q", lastType))
		return
	}

	filter := types.ThreadFilter{
		Operators:       req.Filters.Operators,
		Models:          req.Filters.Models,
		Since:           since,
		AnalyzedOnly:    req.Filters.AnalyzedOnly,
		LastMessageType: lastType,
	}

	started := time.Now()
	result, err := ah.dispatchService.RunAnalysis(c.Request.Context(), filter, req.NumberOfChats, req.ThreadDepth)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "analysis_failed", err)
		return
	}
	ah.log.Info("Bulk analysis finished", "sent", result.Sent, "ok", result.OK, "took", time.Since(started).String())
	RespondOK(c, result)
}

// Deliveries lists recent webhook dispatch audit rows, newest first.
func (ah *AnalysisHandler) Deliveries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	deliveries, err := ah.dispatchService.RecentDeliveries(c.Request.Context(), limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "deliveries_failed", err)
		return
	}
	RespondOK(c, gin.H{"deliveries": deliveries, "count": len(deliveries)})
}
