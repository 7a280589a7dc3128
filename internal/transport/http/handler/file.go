package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"paperchat/internal/app"
	"paperchat/internal/billing"
	"paperchat/internal/transport/http/response"
)

type FileHandler struct {
	ingestService *app.IngestService
	authService   *app.AuthService
}

// UploadCompleteRequest is the triple the upload transport posts once the
// file bytes are durably stored.
type UploadCompleteRequest struct {
	Key  string `json:"key" binding:"required"`
	Name string `json:"name"`
	URL  string `json:"url" binding:"required,url"`
}

func NewFileHandler(ingestService *app.IngestService, authService *app.AuthService) *FileHandler {
	return &FileHandler{ingestService: ingestService, authService: authService}
}

// UploadComplete registers the document and kicks off ingestion in the
// background; clients poll GetFile for the status transition.
func (h *FileHandler) UploadComplete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req UploadCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	doc, created, err := h.ingestService.Register(c.Request.Context(), app.UploadCompleteInput{
		Key:    req.Key,
		Name:   req.Name,
		URL:    req.URL,
		UserID: userID,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrUnauthorized):
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "register upload failed")
		}
		return
	}

	if created {
		h.processAsync(doc.ID, userID)
	}
	response.OK(c, doc)
}

func (h *FileHandler) GetFile(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	doc, err := h.ingestService.GetFile(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeFileNotFound, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get file failed")
		}
		return
	}

	response.OK(c, doc)
}

func (h *FileHandler) ListFiles(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	docs, err := h.ingestService.ListFiles(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list files failed")
		return
	}

	response.OK(c, docs)
}

// Retry re-runs ingestion for a FAILED document.
func (h *FileHandler) Retry(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	doc, err := h.ingestService.Retry(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrNotFound):
			response.Error(c, http.StatusNotFound, response.CodeFileNotFound, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "retry failed")
		}
		return
	}

	h.processAsync(doc.ID, userID)
	response.OK(c, doc)
}

func (h *FileHandler) processAsync(documentID string, userID uint) {
	go func() {
		ctx := context.Background()

		doc, err := h.ingestService.GetFile(ctx, documentID, userID)
		if err != nil {
			log.Printf("ingest %s: load document failed: %v", documentID, err)
			return
		}

		plan := billing.PlanByName("")
		if user, userErr := h.authService.GetUserByID(userID); userErr == nil && user != nil {
			plan = billing.PlanByName(user.Plan)
		}

		if err := h.ingestService.Process(ctx, doc, plan); err != nil {
			log.Printf("ingest %s: %v", documentID, err)
		}
	}()
}
