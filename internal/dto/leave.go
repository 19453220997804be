package dto

import "github.com/noah-isme/leave-approval-api/internal/models"

// DateLayout is the wire format for leave dates.
const DateLayout = "2006-01-02"

// SubmitLeaveRequest is the payload of a new leave application.
type SubmitLeaveRequest struct {
	StartDate    string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Reason       string `json:"reason" validate:"required,max=2000"`
	RelieverName string `json:"relieverName" validate:"required,max=200"`
}

// LeaveActionRequest carries the optional note attached to an approve or reject.
type LeaveActionRequest struct {
	Comment string `json:"comment" validate:"max=1000"`
}

// LedgerQuery mirrors the ledger filters.
type LedgerQuery struct {
	Search string `form:"search" validate:"max=200"`
	Status string `form:"status" validate:"omitempty,oneof=Pending Approved Completed Rejected"`
	Format string `form:"format" validate:"omitempty,oneof=csv pdf xlsx"`
}

// DashboardStats summarises the requests visible to a viewer.
type DashboardStats struct {
	MyRequests         int                          `json:"myRequests"`
	AwaitingMyAction   int                          `json:"awaitingMyAction"`
	CompletedThisMonth int                          `json:"completedThisMonth"`
	ByStatus           map[models.RequestStatus]int `json:"byStatus"`
}

// CertificateLink is returned when a certificate has been rendered.
type CertificateLink struct {
	RequestID string `json:"requestId"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}
