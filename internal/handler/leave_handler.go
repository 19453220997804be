package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/leave-approval-api/internal/dto"
	"github.com/noah-isme/leave-approval-api/internal/middleware"
	"github.com/noah-isme/leave-approval-api/internal/models"
	appErrors "github.com/noah-isme/leave-approval-api/pkg/errors"
	"github.com/noah-isme/leave-approval-api/pkg/response"
)

type leaveService interface {
	Submit(ctx context.Context, requester models.Identity, req dto.SubmitLeaveRequest) (*models.LeaveRequest, error)
	Act(ctx context.Context, id string, actor models.Identity, action models.ApprovalAction, comment string) (*models.LeaveRequest, error)
	Get(ctx context.Context, id string, viewer models.Identity) (*models.LeaveRequest, error)
	Mine(ctx context.Context, viewer models.Identity) ([]models.LeaveRequest, error)
	PendingForMe(ctx context.Context, viewer models.Identity) ([]models.LeaveRequest, error)
	CompletedThisMonth(ctx context.Context, viewer models.Identity) (int, error)
	Dashboard(ctx context.Context, viewer models.Identity) (*dto.DashboardStats, error)
}

type certificateLinker interface {
	CertificateLink(ctx context.Context, req *models.LeaveRequest) (*dto.CertificateLink, error)
}

// LeaveHandler exposes submission, approval and personal views of leave requests.
type LeaveHandler struct {
	leaves       leaveService
	certificates certificateLinker
}

// NewLeaveHandler constructs a LeaveHandler.
func NewLeaveHandler(leaves leaveService, certificates certificateLinker) *LeaveHandler {
	return &LeaveHandler{leaves: leaves, certificates: certificates}
}

// Submit godoc
// @Summary Submit a leave request
// @Tags Leave
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SubmitLeaveRequest true "Leave request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /leave-requests [post]
func (h *LeaveHandler) Submit(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req dto.SubmitLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid leave request payload"))
		return
	}
	leave, err := h.leaves.Submit(c.Request.Context(), identity, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, leave)
}

// Mine godoc
// @Summary List my leave requests
// @Tags Leave
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /leave-requests/mine [get]
func (h *LeaveHandler) Mine(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	list, err := h.leaves.Mine(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "total", len(list))
	response.JSON(c, http.StatusOK, list, nil, middleware.ExtractMeta(c))
}

// Pending godoc
// @Summary List requests awaiting my action
// @Tags Leave
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /leave-requests/pending [get]
func (h *LeaveHandler) Pending(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	list, err := h.leaves.PendingForMe(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "total", len(list))
	response.JSON(c, http.StatusOK, list, nil, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get a leave request
// @Tags Leave
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leave-requests/{id} [get]
func (h *LeaveHandler) Get(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	leave, err := h.leaves.Get(c.Request.Context(), c.Param("id"), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}

// Approve godoc
// @Summary Approve the current step
// @Tags Leave
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body dto.LeaveActionRequest false "Optional comment"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leave-requests/{id}/approve [post]
func (h *LeaveHandler) Approve(c *gin.Context) {
	h.act(c, models.ActionApprove)
}

// Reject godoc
// @Summary Reject the request at the current step
// @Tags Leave
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body dto.LeaveActionRequest false "Optional comment"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leave-requests/{id}/reject [post]
func (h *LeaveHandler) Reject(c *gin.Context) {
	h.act(c, models.ActionReject)
}

func (h *LeaveHandler) act(c *gin.Context, action models.ApprovalAction) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	// The body is optional; an empty stream means no comment.
	var req dto.LeaveActionRequest
	if c.Request.Body != nil {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid action payload"))
			return
		}
	}
	leave, err := h.leaves.Act(c.Request.Context(), c.Param("id"), identity, action, req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}

// Certificate godoc
// @Summary Signed link to the approval certificate
// @Tags Leave
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leave-requests/{id}/certificate [get]
func (h *LeaveHandler) Certificate(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	leave, err := h.leaves.Get(c.Request.Context(), c.Param("id"), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	link, err := h.certificates.CertificateLink(c.Request.Context(), leave)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Dashboard godoc
// @Summary Request counts for the caller
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /stats/dashboard [get]
func (h *LeaveHandler) Dashboard(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	stats, err := h.leaves.Dashboard(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// CompletedThisMonth godoc
// @Summary Requests completed this calendar month
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /stats/completed-this-month [get]
func (h *LeaveHandler) CompletedThisMonth(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	count, err := h.leaves.CompletedThisMonth(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"count": count}, nil)
}
