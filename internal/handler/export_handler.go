package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/leave-approval-api/internal/service"
	"github.com/noah-isme/leave-approval-api/pkg/response"
)

type documentOpener interface {
	Open(token string) (*service.ExportResult, error)
}

// ExportHandler serves documents behind signed links.
type ExportHandler struct {
	documents documentOpener
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(documents documentOpener) *ExportHandler {
	return &ExportHandler{documents: documents}
}

// Download godoc
// @Summary Download a signed document
// @Tags Export
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /export/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	doc, err := h.documents.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Payload)
}
