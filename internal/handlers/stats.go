package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/velora-hq/threadboard-backend/internal/logger"
	"github.com/velora-hq/threadboard-backend/internal/services"
)

type StatsHandler struct {
	log           *logger.Logger
	threadService services.ThreadService
}

func NewStatsHandler(log *logger.Logger, threadService services.ThreadService) *StatsHandler {
	handlerLog := log.With("handler", "StatsHandler")
	return &StatsHandler{log: handlerLog, threadService: threadService}
}

func (sh *StatsHandler) Stats(c *gin.Context) {
	filter, err := parseThreadFilterQuery(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_filter", err)
		return
	}
	stats, err := sh.threadService.Stats(c.Request.Context(), filter)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "stats_failed", err)
		return
	}
	RespondOK(c, stats)
}

func (sh *StatsHandler) Filters(c *gin.Context) {
	values, err := sh.threadService.Filters(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "filters_failed", err)
		return
	}
	RespondOK(c, values)
}
