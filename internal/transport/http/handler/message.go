package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"paperchat/internal/app"
	"paperchat/internal/transport/http/response"
)

type MessageHandler struct {
	chatService *app.ChatService
}

type AskRequest struct {
	Message string `json:"message" binding:"required"`
}

func NewMessageHandler(chatService *app.ChatService) *MessageHandler {
	return &MessageHandler{chatService: chatService}
}

// Stream answers one question over server-sent events. Each model increment
// goes out as a `data:` frame; the stream ends with `event: done` carrying
// the full answer, or `event: error` if generation failed mid-way.
func (h *MessageHandler) Stream(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "streaming unsupported")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	answer, err := h.chatService.StreamAnswer(c.Request.Context(), app.AskInput{
		FileID:  c.Param("id"),
		Message: req.Message,
		UserID:  userID,
	}, func(delta string) error {
		if _, werr := fmt.Fprintf(c.Writer, "data: %s\n\n", sanitizeSSE(delta)); werr != nil {
			return werr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		fmt.Fprintf(c.Writer, "event: error\ndata: %s\n\n", sanitizeSSE(streamErrorMessage(err)))
		flusher.Flush()
		return
	}

	fmt.Fprintf(c.Writer, "event: done\ndata: %s\n\n", sanitizeSSE(answer.Text))
	flusher.Flush()
}

func (h *MessageHandler) ListMessages(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	cursor := c.Query("cursor")

	page, err := h.chatService.ListMessages(c.Request.Context(), userID, c.Param("id"), limit, cursor)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeFileNotFound, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list messages failed")
		}
		return
	}

	response.OK(c, page)
}

func streamErrorMessage(err error) string {
	switch {
	case errors.Is(err, app.ErrNotFound):
		return "file not found"
	case errors.Is(err, app.ErrInvalidInput):
		return "message must not be empty"
	default:
		return "answer generation failed"
	}
}

// sanitizeSSE keeps every model increment on a single data line; the client
// reverses the escape before rendering.
func sanitizeSSE(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", "\\n")
}
