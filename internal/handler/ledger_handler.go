package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/leave-approval-api/internal/dto"
	"github.com/noah-isme/leave-approval-api/internal/middleware"
	"github.com/noah-isme/leave-approval-api/internal/models"
	"github.com/noah-isme/leave-approval-api/internal/service"
	appErrors "github.com/noah-isme/leave-approval-api/pkg/errors"
	"github.com/noah-isme/leave-approval-api/pkg/response"
)

type ledgerReader interface {
	Ledger(ctx context.Context, viewer models.Identity, query dto.LedgerQuery) ([]models.LeaveRequest, error)
	Get(ctx context.Context, id string, viewer models.Identity) (*models.LeaveRequest, error)
}

type ledgerRenderer interface {
	RenderLedger(requests []models.LeaveRequest, format string) (*service.ExportResult, error)
	RequestDocument(ctx context.Context, req *models.LeaveRequest, viewer models.Identity) (*service.ExportResult, error)
}

// LedgerHandler serves the organisation wide ledger and its exports.
type LedgerHandler struct {
	leaves  ledgerReader
	exports ledgerRenderer
}

// NewLedgerHandler constructs a LedgerHandler.
func NewLedgerHandler(leaves ledgerReader, exports ledgerRenderer) *LedgerHandler {
	return &LedgerHandler{leaves: leaves, exports: exports}
}

// List godoc
// @Summary Master ledger
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name or ID substring"
// @Param status query string false "Pending, Approved, Completed or Rejected"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /ledger [get]
func (h *LedgerHandler) List(c *gin.Context) {
	list, ok := h.load(c)
	if !ok {
		return
	}
	middleware.SetMeta(c, "total", len(list))
	response.JSON(c, http.StatusOK, list, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Export the ledger
// @Tags Ledger
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /ledger/export [get]
func (h *LedgerHandler) Export(c *gin.Context) {
	list, ok := h.load(c)
	if !ok {
		return
	}
	result, err := h.exports.RenderLedger(list, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Payload)
}

// Document godoc
// @Summary Certificate or audit record of one request
// @Tags Ledger
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /ledger/{id}/pdf [get]
func (h *LedgerHandler) Document(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	leave, err := h.leaves.Get(c.Request.Context(), c.Param("id"), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	doc, err := h.exports.RequestDocument(c.Request.Context(), leave, identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Payload)
}

func (h *LedgerHandler) load(c *gin.Context) ([]models.LeaveRequest, bool) {
	identity, ok := currentIdentity(c)
	if !ok {
		return nil, false
	}
	var query dto.LedgerQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid ledger query"))
		return nil, false
	}
	list, err := h.leaves.Ledger(c.Request.Context(), identity, query)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return list, true
}
