package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"basegraph.app/boardroom/common/id"
	"basegraph.app/boardroom/internal/broadcast"
	"basegraph.app/boardroom/internal/fallback"
	"basegraph.app/boardroom/internal/http/dto"
	"basegraph.app/boardroom/internal/model"
	"basegraph.app/boardroom/internal/service"
)

const heartbeatInterval = 25 * time.Second

type DiscussionHandler struct {
	discussions service.DiscussionService
	subscriber  broadcast.Subscriber
	heartbeat   time.Duration
}

// NewDiscussionHandler wires the discussion endpoints. subscriber may be nil, in which case
// streaming is unavailable.
func NewDiscussionHandler(discussions service.DiscussionService, subscriber broadcast.Subscriber) *DiscussionHandler {
	return &DiscussionHandler{discussions: discussions, subscriber: subscriber, heartbeat: heartbeatInterval}
}

func (h *DiscussionHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateDiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	start := service.StartRequest{Topic: req.Topic, Roles: req.Roles}

	if c.Query("wait") != "true" {
		state, err := h.discussions.Start(ctx, start)
		if err != nil {
			h.writeStartError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, dto.CreateDiscussionResponse{ID: state.ID, Status: state.Status})
		return
	}

	state, err := h.discussions.Run(ctx, start)
	if err != nil {
		h.writeStartError(c, err)
		return
	}
	if state.Status == model.DiscussionStatusFailed {
		msg := "discussion failed"
		if state.Failure != nil {
			msg = state.Failure.Message
		}
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: msg, Details: dto.ToDiscussionResponse(state)})
		return
	}
	c.JSON(http.StatusOK, dto.ToDiscussionResponse(state))
}

func (h *DiscussionHandler) writeStartError(c *gin.Context, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request", Details: vErr.Fields})
	case errors.Is(err, service.ErrTooManyDiscussions):
		c.JSON(http.StatusTooManyRequests, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrServiceShuttingDown):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: err.Error()})
	default:
		slog.ErrorContext(c.Request.Context(), "failed to start discussion", "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to start discussion"})
	}
}

func (h *DiscussionHandler) Get(c *gin.Context) {
	discussionID, ok := parseID(c)
	if !ok {
		return
	}

	state, err := h.discussions.Get(c.Request.Context(), discussionID)
	if err != nil {
		writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToDiscussionResponse(state))
}

func (h *DiscussionHandler) Cancel(c *gin.Context) {
	discussionID, ok := parseID(c)
	if !ok {
		return
	}

	state, err := h.discussions.Cancel(c.Request.Context(), discussionID)
	if err != nil {
		writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.ToDiscussionResponse(state))
}

func (h *DiscussionHandler) Summary(c *gin.Context) {
	ctx := c.Request.Context()
	discussionID, ok := parseID(c)
	if !ok {
		return
	}

	summary, err := h.discussions.Summarize(ctx, discussionID)
	if err != nil {
		var exhausted *fallback.AllBackendsExhaustedError
		switch {
		case errors.Is(err, service.ErrNotCompleted):
			c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
		case errors.Is(err, service.ErrSummaryDisabled):
			c.JSON(http.StatusNotImplemented, dto.ErrorResponse{Error: err.Error()})
		case errors.As(err, &exhausted):
			c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: "summary generation failed", Details: exhausted.Causes()})
		default:
			writeLookupError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, dto.ToSummaryResponse(summary))
}

func (h *DiscussionHandler) Attempts(c *gin.Context) {
	discussionID, ok := parseID(c)
	if !ok {
		return
	}

	attempts, err := h.discussions.Attempts(c.Request.Context(), discussionID)
	if err != nil {
		writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": dto.ToAttemptResponses(attempts)})
}

// Stream sends the discussion's events as server-sent events until the discussion ends or
// the client goes away. last_id resumes after a previously received event id.
func (h *DiscussionHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	if h.subscriber == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "streaming not configured"})
		return
	}
	discussionID, ok := parseID(c)
	if !ok {
		return
	}
	if _, err := h.discussions.Get(ctx, discussionID); err != nil {
		writeLookupError(c, err)
		return
	}

	lastID := c.Query("last_id")
	if lastID == "" {
		lastID = broadcast.FromStart
	}
	events, err := h.subscriber.Subscribe(ctx, discussionID, lastID)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "streaming not supported"})
		return
	}
	setSSEHeaders(c.Writer)
	c.Status(http.StatusOK)

	sseWrite(c.Writer, "", "ping", "ready")
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			sseWrite(c.Writer, "", "ping", time.Now().UTC().Format(time.RFC3339Nano))
			flusher.Flush()
		case msg, open := <-events:
			if !open {
				return
			}
			if msg.Err != nil {
				sseWrite(c.Writer, "", "error", dto.ErrorResponse{Error: msg.Err.Error()})
			} else {
				sseWrite(c.Writer, msg.ID, string(msg.Event.Type), msg.Event)
			}
			flusher.Flush()
		}
	}
}

func parseID(c *gin.Context) (int64, bool) {
	discussionID, err := id.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid discussion id"})
		return 0, false
	}
	return discussionID, true
}

func writeLookupError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
		return
	}
	slog.ErrorContext(c.Request.Context(), "discussion request failed", "error", err)
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
}
