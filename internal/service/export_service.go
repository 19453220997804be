package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/leave-approval-api/internal/approval"
	"github.com/noah-isme/leave-approval-api/internal/dto"
	"github.com/noah-isme/leave-approval-api/internal/models"
	appErrors "github.com/noah-isme/leave-approval-api/pkg/errors"
	"github.com/noah-isme/leave-approval-api/pkg/export"
	"github.com/noah-isme/leave-approval-api/pkg/storage"
)

// LedgerHeaders are the columns of every ledger export.
var LedgerHeaders = []string{"ID", "Employee", "Role", "Start Date", "End Date", "Total Days", "Status", "Reason", "Proxy Agent", "Submitted At"}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
	Exists(filename string) bool
}

type certificateRenderer interface {
	Render(cert export.Certificate) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix    string
	Organization string
}

// ExportResult is a rendered document ready to be served.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders ledger exports and approval certificates and issues signed links for
// stored certificates.
type ExportService struct {
	storage      fileStorage
	signer       *storage.SignedURLSigner
	certificates certificateRenderer
	logger       *zap.Logger
	cfg          ExportConfig
	now          func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, certificates certificateRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if certificates == nil {
		certificates = export.NewCertificateRenderer()
	}
	if cfg.Organization == "" {
		cfg.Organization = "Leave Approval"
	}
	return &ExportService{storage: store, signer: signer, certificates: certificates, logger: logger, cfg: cfg, now: time.Now}
}

// LedgerDataset flattens requests into the ledger table.
func LedgerDataset(requests []models.LeaveRequest) export.Dataset {
	rows := make([]map[string]string, 0, len(requests))
	for _, r := range requests {
		rows = append(rows, map[string]string{
			"ID":           r.ID,
			"Employee":     r.RequesterName,
			"Role":         string(r.RequesterRole),
			"Start Date":   displayDate(r.StartDate),
			"End Date":     displayDate(r.EndDate),
			"Total Days":   strconv.Itoa(r.LeaveDays),
			"Status":       string(r.Status),
			"Reason":       r.Reason,
			"Proxy Agent":  r.RelieverName,
			"Submitted At": displayDate(r.SubmittedAt),
		})
	}
	return export.Dataset{Title: "Leave Ledger", Headers: LedgerHeaders, Rows: rows}
}

// RenderLedger encodes the requests in the requested format.
func (s *ExportService) RenderLedger(requests []models.LeaveRequest, rawFormat string) (*ExportResult, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	payload, err := export.RendererFor(format).Render(LedgerDataset(requests))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render ledger")
	}
	return &ExportResult{
		Filename:    fmt.Sprintf("leave_ledger_%s.%s", s.now().UTC().Format("2006-01-02"), format),
		ContentType: format.ContentType(),
		Payload:     payload,
	}, nil
}

// WriteCertificate renders and stores the certificate of a completed request, returning its
// storage path.
func (s *ExportService) WriteCertificate(_ context.Context, req *models.LeaveRequest) (string, error) {
	if req == nil || req.Status != models.RequestStatusCompleted {
		return "", appErrors.Clone(appErrors.ErrConflict, "certificate is only available for completed requests")
	}
	payload, err := s.certificates.Render(s.certificateFor(req))
	if err != nil {
		return "", fmt.Errorf("render certificate %s: %w", req.ID, err)
	}
	path, err := s.storage.Save(certificateName(req.ID), payload)
	if err != nil {
		return "", fmt.Errorf("store certificate %s: %w", req.ID, err)
	}
	s.logger.Info("certificate stored", zap.String("leave_id", req.ID), zap.String("path", path))
	return path, nil
}

// CertificateLink returns a signed download link for the request's certificate, rendering it
// first when it has not been stored yet.
func (s *ExportService) CertificateLink(ctx context.Context, req *models.LeaveRequest) (*dto.CertificateLink, error) {
	if req == nil || req.Status != models.RequestStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "certificate is only available for completed requests")
	}
	name := certificateName(req.ID)
	if !s.storage.Exists(name) {
		if _, err := s.WriteCertificate(ctx, req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate certificate")
		}
	}
	token, expiresAt, err := s.signer.Generate(req.ID, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign certificate link")
	}
	return &dto.CertificateLink{
		RequestID: req.ID,
		URL:       s.cfg.APIPrefix + "/export/" + token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	}, nil
}

// RequestDocument renders the PDF for a single request. Completed requests yield the approval
// certificate. Privileged viewers also get an audit record for requests in any other status,
// showing the chain up to and including a rejection.
func (s *ExportService) RequestDocument(_ context.Context, req *models.LeaveRequest, viewer models.Identity) (*ExportResult, error) {
	if req == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
	}
	completed := req.Status == models.RequestStatusCompleted
	if !completed && !approval.IsPrivileged(viewer) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "certificate is only available for completed requests")
	}
	payload, err := s.certificates.Render(s.certificateFor(req))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render document")
	}
	filename := fmt.Sprintf("Leave_Approval_%s.pdf", req.ID)
	if !completed {
		filename = fmt.Sprintf("Leave_Audit_%s.pdf", req.ID)
	}
	s.logger.Info("request document rendered",
		zap.String("leave_id", req.ID),
		zap.String("status", string(req.Status)),
		zap.String("viewer_id", viewer.ID),
	)
	return &ExportResult{Filename: filename, ContentType: export.FormatPDF.ContentType(), Payload: payload}, nil
}

// Open resolves a signed token to the stored document.
func (s *ExportService) Open(token string) (*ExportResult, error) {
	grant, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	payload, err := s.storage.Read(grant.Path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read document")
	}
	return &ExportResult{
		Filename:    fmt.Sprintf("Leave_Approval_%s.pdf", grant.ResourceID),
		ContentType: export.FormatPDF.ContentType(),
		Payload:     payload,
	}, nil
}

func (s *ExportService) certificateFor(req *models.LeaveRequest) export.Certificate {
	steps := make([]export.CertificateStep, len(req.ApprovalChain))
	for i, step := range req.ApprovalChain {
		steps[i] = export.CertificateStep{Role: string(step.Role), Status: string(step.Status), Timestamp: step.Timestamp}
	}
	title, watermark := export.TitleApprovalCertificate, "SYSTEM VERIFIED"
	if req.Status != models.RequestStatusCompleted {
		title, watermark = export.TitleAuditRecord, strings.ToUpper(string(req.Status))
	}
	return export.Certificate{
		Title:        title,
		Watermark:    watermark,
		Status:       string(req.Status),
		Organization: s.cfg.Organization,
		RequestID:    req.ID,
		Employee:     req.RequesterName,
		Role:         string(req.RequesterRole),
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		LeaveDays:    req.LeaveDays,
		Reliever:     req.RelieverName,
		SubmittedAt:  req.SubmittedAt,
		Reason:       req.Reason,
		Steps:        steps,
	}
}

func certificateName(id string) string {
	return id + ".pdf"
}

func displayDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}
