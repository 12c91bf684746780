package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/velora-hq/threadboard-backend/internal/logger"
	"github.com/velora-hq/threadboard-backend/internal/services"
	"github.com/velora-hq/threadboard-backend/internal/types"
)

type ThreadHandler struct {
	log             *logger.Logger
	threadService   services.ThreadService
	dispatchService services.DispatchService
}

func NewThreadHandler(log *logger.Logger, threadService services.ThreadService, dispatchService services.DispatchService) *ThreadHandler {
	handlerLog := log.With("handler", "ThreadHandler")
	return &ThreadHandler{log: handlerLog, threadService: threadService, dispatchService: dispatchService}
}

type createMessageRequest struct {
	Operator  string `json:"operator"`
	ThreadID  string `json:"thread_id"`
	Model     string `json:"model"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Converted string `json:"converted"`
}

// Create appends a message to a thread. The dispatch to the scoring webhook,
// when triggered, is handed off after the transaction commits and never
// affects this response.
func (th *ThreadHandler) Create(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result, err := th.threadService.RecordMessage(c.Request.Context(), services.RecordMessageInput{
		ThreadID:  req.ThreadID,
		Operator:  req.Operator,
		Model:     req.Model,
		Direction: req.Type,
		Text:      req.Message,
		Converted: req.Converted,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			RespondError(c, http.StatusBadRequest, "invalid_input", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "write_failed", err)
		return
	}

	if result.Dispatch {
		th.dispatchService.DispatchThread(result.Thread, result.Messages)
	}

	c.JSON(http.StatusCreated, gin.H{"thread": result.Thread})
}

func (th *ThreadHandler) List(c *gin.Context) {
	filter, err := parseThreadFilterQuery(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_filter", err)
		return
	}
	chatView := parseBoolParam(c.Query("chatView"))

	threads, err := th.threadService.ListThreads(c.Request.Context(), filter, chatView)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, gin.H{"threads": threads, "count": len(threads)})
}

// UpdateScores is the external scorer's callback. Only the provided score
// fields change; each must be null or an integer in [0,100].
func (th *ThreadHandler) UpdateScores(c *gin.Context) {
	threadID := c.Param("id")

	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	scores := map[string]*int{}
	for _, field := range types.ScoreFields {
		raw, ok := body[field]
		if !ok {
			continue
		}
		val, err := parseScoreValue(field, raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_score", err)
			return
		}
		scores[field] = val
	}

	thread, err := th.threadService.ApplyScores(c.Request.Context(), threadID, scores)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			RespondError(c, http.StatusNotFound, "thread_not_found", err)
		case errors.Is(err, services.ErrInvalidInput):
			RespondError(c, http.StatusBadRequest, "invalid_score", err)
		default:
			RespondError(c, http.StatusInternalServerError, "update_failed", err)
		}
		return
	}
	RespondOK(c, gin.H{"thread": thread})
}

func parseScoreValue(field string, raw json.RawMessage) (*int, error) {
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%s must be a number or null", field)
	}
	if v == nil {
		return nil, nil
	}
	if *v != math.Trunc(*v) {
		return nil, fmt.Errorf("%s must be an integer", field)
	}
	i := int(*v)
	return &i, nil
}
