package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/leave-approval-api/internal/models"
	"github.com/noah-isme/leave-approval-api/pkg/response"
)

type relieverDirectory interface {
	Relievers(ctx context.Context, viewer models.Identity) []models.DirectoryUser
}

// DirectoryHandler exposes directory lookups.
type DirectoryHandler struct {
	directory relieverDirectory
}

// NewDirectoryHandler constructs a DirectoryHandler.
func NewDirectoryHandler(directory relieverDirectory) *DirectoryHandler {
	return &DirectoryHandler{directory: directory}
}

// Relievers godoc
// @Summary Users the caller may nominate as reliever
// @Tags Directory
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /directory/relievers [get]
func (h *DirectoryHandler) Relievers(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, h.directory.Relievers(c.Request.Context(), identity), nil)
}
