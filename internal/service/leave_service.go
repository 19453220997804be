package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/noah-isme/leave-approval-api/internal/approval"
	"github.com/noah-isme/leave-approval-api/internal/clients/enrichment"
	"github.com/noah-isme/leave-approval-api/internal/dto"
	"github.com/noah-isme/leave-approval-api/internal/events"
	"github.com/noah-isme/leave-approval-api/internal/models"
	"github.com/noah-isme/leave-approval-api/internal/observability"
	appErrors "github.com/noah-isme/leave-approval-api/pkg/errors"
)

const defaultActionAttempts = 3

// LeaveStore persists leave requests. Update must reject writes whose expected version is stale.
type LeaveStore interface {
	Create(ctx context.Context, req *models.LeaveRequest) error
	GetByID(ctx context.Context, id string) (*models.LeaveRequest, error)
	ListAll(ctx context.Context) ([]models.LeaveRequest, error)
	Update(ctx context.Context, req *models.LeaveRequest, expectedVersion int) error
	SetAnalysis(ctx context.Context, id string, analysis models.LeaveAnalysis) error
}

type reasonAnalyzer interface {
	Analyze(ctx context.Context, reason string) (models.LeaveAnalysis, error)
}

type leaveNotifier interface {
	Dispatch(eventType events.Type, actor models.Identity, req *models.LeaveRequest)
}

// LeaveService runs submissions and approval actions through the chain engine and persists
// the resulting snapshots.
type LeaveService struct {
	store     LeaveStore
	engine    *approval.Engine
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	notifier  leaveNotifier
	analyzer  reasonAnalyzer

	attempts        int
	analysisTimeout time.Duration
	now             func() time.Time
	async           func(func())
}

// LeaveServiceOption configures the service.
type LeaveServiceOption func(*LeaveService)

// WithLeaveNotifier sets the collaborator told about every transition.
func WithLeaveNotifier(n leaveNotifier) LeaveServiceOption {
	return func(s *LeaveService) {
		s.notifier = n
	}
}

// WithReasonAnalyzer enables enrichment of submitted reasons.
func WithReasonAnalyzer(a reasonAnalyzer, timeout time.Duration) LeaveServiceOption {
	return func(s *LeaveService) {
		s.analyzer = a
		if timeout > 0 {
			s.analysisTimeout = timeout
		}
	}
}

// WithLeaveMetrics records submission and action counters.
func WithLeaveMetrics(m *MetricsService) LeaveServiceOption {
	return func(s *LeaveService) {
		s.metrics = m
	}
}

// WithActionAttempts bounds how often an action is re-applied after a stale write.
func WithActionAttempts(n int) LeaveServiceOption {
	return func(s *LeaveService) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithLeaveClock overrides the clock used for period projections.
func WithLeaveClock(now func() time.Time) LeaveServiceOption {
	return func(s *LeaveService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAsyncRunner overrides how background enrichment is started.
func WithAsyncRunner(run func(func())) LeaveServiceOption {
	return func(s *LeaveService) {
		if run != nil {
			s.async = run
		}
	}
}

// NewLeaveService constructs the service with defaults.
func NewLeaveService(store LeaveStore, engine *approval.Engine, validate *validator.Validate, logger *zap.Logger, opts ...LeaveServiceOption) *LeaveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if engine == nil {
		engine = approval.NewEngine(nil)
	}
	svc := &LeaveService{
		store:           store,
		engine:          engine,
		validator:       validate,
		logger:          logger,
		attempts:        defaultActionAttempts,
		analysisTimeout: 10 * time.Second,
		now:             time.Now,
		async:           func(f func()) { go f() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit validates the form and stores a new pending request for the requester.
func (s *LeaveService) Submit(ctx context.Context, requester models.Identity, req dto.SubmitLeaveRequest) (*models.LeaveRequest, error) {
	ctx, span := observability.StartSpan(ctx, "leave.submit", attribute.String("leave.requester_role", string(requester.Role)))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	if err = s.validator.Struct(req); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave request payload")
		s.metrics.RecordSubmission(string(requester.Role), "invalid")
		return nil, err
	}
	start, err := time.Parse(dto.DateLayout, req.StartDate)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start date")
		s.metrics.RecordSubmission(string(requester.Role), "invalid")
		return nil, err
	}
	end, err := time.Parse(dto.DateLayout, req.EndDate)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid end date")
		s.metrics.RecordSubmission(string(requester.Role), "invalid")
		return nil, err
	}
	form := approval.LeaveForm{
		StartDate:    start,
		EndDate:      end,
		Reason:       req.Reason,
		RelieverName: req.RelieverName,
	}

	var leave *models.LeaveRequest
	for attempt := 1; attempt <= s.attempts; attempt++ {
		leave, err = s.engine.CreateRequest(requester, form)
		if err != nil {
			s.metrics.RecordSubmission(string(requester.Role), outcomeOf(err))
			return nil, err
		}
		err = s.store.Create(ctx, leave)
		if !errors.Is(err, appErrors.ErrConflict) {
			break
		}
		s.logger.Warn("leave request id collision, regenerating", zap.String("leave_id", leave.ID), zap.Int("attempt", attempt))
	}
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store leave request")
		s.metrics.RecordSubmission(string(requester.Role), "error")
		return nil, err
	}
	span.SetAttributes(attribute.String("leave.id", leave.ID))
	s.metrics.RecordSubmission(string(requester.Role), "ok")
	s.logger.Info("leave request submitted",
		zap.String("leave_id", leave.ID),
		zap.String("requester_id", requester.ID),
		zap.Int("steps", len(leave.ApprovalChain)),
	)

	s.notify(events.TypeSubmitted, requester, leave)
	s.enrich(leave.ID, leave.Reason)
	return leave, nil
}

// Approve records the actor's approval of the current step.
func (s *LeaveService) Approve(ctx context.Context, id string, actor models.Identity, comment string) (*models.LeaveRequest, error) {
	return s.Act(ctx, id, actor, models.ActionApprove, comment)
}

// Reject records the actor's rejection, finalizing the request.
func (s *LeaveService) Reject(ctx context.Context, id string, actor models.Identity, comment string) (*models.LeaveRequest, error) {
	return s.Act(ctx, id, actor, models.ActionReject, comment)
}

// Act applies an approval action. When another writer updated the request between read and
// write, the action is re-validated against the fresh state and retried.
func (s *LeaveService) Act(ctx context.Context, id string, actor models.Identity, action models.ApprovalAction, comment string) (*models.LeaveRequest, error) {
	ctx, span := observability.StartSpan(ctx, "leave."+string(action),
		attribute.String("leave.id", id),
		attribute.String("actor.role", string(actor.Role)),
	)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	if err = s.validator.Struct(dto.LeaveActionRequest{Comment: comment}); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid action payload")
		s.metrics.RecordApprovalAction(string(action), "invalid")
		return nil, err
	}

	for attempt := 1; attempt <= s.attempts; attempt++ {
		var current, next *models.LeaveRequest
		current, err = s.store.GetByID(ctx, id)
		if err != nil {
			s.metrics.RecordApprovalAction(string(action), outcomeOf(err))
			return nil, err
		}
		next, err = s.engine.ApplyAction(current, actor, action, comment)
		if err != nil {
			s.metrics.RecordApprovalAction(string(action), outcomeOf(err))
			return nil, err
		}
		err = s.store.Update(ctx, next, current.Version)
		if errors.Is(err, appErrors.ErrStaleWrite) {
			s.metrics.RecordStaleRetry()
			s.logger.Debug("stale leave write, retrying", zap.String("leave_id", id), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			s.metrics.RecordApprovalAction(string(action), "error")
			return nil, err
		}

		span.SetAttributes(attribute.String("leave.status", string(next.Status)))
		s.metrics.RecordApprovalAction(string(action), "ok")
		s.logger.Info("leave request actioned",
			zap.String("leave_id", id),
			zap.String("action", string(action)),
			zap.String("actor_id", actor.ID),
			zap.String("status", string(next.Status)),
		)
		s.notify(events.TypeFor(next.Status), actor, next)
		return next, nil
	}

	s.metrics.RecordApprovalAction(string(action), "stale")
	err = appErrors.ErrStaleWrite
	return nil, err
}

// Get returns a request the viewer is allowed to see: their own, one they approve or
// approved, or any request for a privileged viewer.
func (s *LeaveService) Get(ctx context.Context, id string, viewer models.Identity) (*models.LeaveRequest, error) {
	req, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(req, viewer) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "leave request is not visible to you")
	}
	return req, nil
}

// Mine lists the viewer's own requests.
func (s *LeaveService) Mine(ctx context.Context, viewer models.Identity) ([]models.LeaveRequest, error) {
	all, err := s.listAll(ctx)
	if err != nil {
		return nil, err
	}
	return approval.Mine(all, viewer), nil
}

// PendingForMe lists the requests awaiting the viewer's action.
func (s *LeaveService) PendingForMe(ctx context.Context, viewer models.Identity) ([]models.LeaveRequest, error) {
	all, err := s.listAll(ctx)
	if err != nil {
		return nil, err
	}
	return approval.PendingFor(all, viewer), nil
}

// Ledger lists every request matching the filter. Only privileged viewers may read it.
func (s *LeaveService) Ledger(ctx context.Context, viewer models.Identity, query dto.LedgerQuery) ([]models.LeaveRequest, error) {
	if !approval.IsPrivileged(viewer) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "ledger is restricted to project managers")
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ledger query")
	}
	all, err := s.listAll(ctx)
	if err != nil {
		return nil, err
	}
	return approval.Ledger(all, approval.LedgerFilter{
		Search: strings.TrimSpace(query.Search),
		Status: models.RequestStatus(query.Status),
	}), nil
}

// CompletedThisMonth counts requests completed in the current calendar month.
func (s *LeaveService) CompletedThisMonth(ctx context.Context, viewer models.Identity) (int, error) {
	all, err := s.listAll(ctx)
	if err != nil {
		return 0, err
	}
	return approval.CompletedInPeriod(all, viewer, approval.MonthPeriod(s.now()), approval.IsPrivileged(viewer)), nil
}

// Dashboard summarises the requests visible to the viewer.
func (s *LeaveService) Dashboard(ctx context.Context, viewer models.Identity) (*dto.DashboardStats, error) {
	all, err := s.listAll(ctx)
	if err != nil {
		return nil, err
	}
	privileged := approval.IsPrivileged(viewer)
	mine := approval.Mine(all, viewer)
	scope := mine
	if privileged {
		scope = all
	}
	return &dto.DashboardStats{
		MyRequests:         len(mine),
		AwaitingMyAction:   len(approval.PendingFor(all, viewer)),
		CompletedThisMonth: approval.CompletedInPeriod(all, viewer, approval.MonthPeriod(s.now()), privileged),
		ByStatus:           approval.StatusCounts(scope),
	}, nil
}

func (s *LeaveService) listAll(ctx context.Context) ([]models.LeaveRequest, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leave requests")
	}
	return all, nil
}

func (s *LeaveService) notify(eventType events.Type, actor models.Identity, req *models.LeaveRequest) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(eventType, actor, req)
}

// enrich attaches reason analysis in the background. Failures degrade to the neutral
// fallback and never affect the workflow.
func (s *LeaveService) enrich(id, reason string) {
	if s.analyzer == nil {
		return
	}
	s.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.analysisTimeout)
		defer cancel()

		analysis, err := s.analyzer.Analyze(ctx, reason)
		if err != nil {
			s.logger.Warn("reason analysis failed, using fallback", zap.String("leave_id", id), zap.Error(err))
			analysis = enrichment.Fallback(reason)
		}
		if err := s.store.SetAnalysis(ctx, id, analysis); err != nil {
			s.logger.Warn("failed to store reason analysis", zap.String("leave_id", id), zap.Error(err))
		}
	})
}

func canView(req *models.LeaveRequest, viewer models.Identity) bool {
	if approval.IsPrivileged(viewer) || req.RequesterID == viewer.ID {
		return true
	}
	for _, step := range req.ApprovalChain {
		if step.ApproverID != nil && *step.ApproverID == viewer.ID {
			return true
		}
		if approval.ResolveActor(req, step, viewer) {
			return true
		}
	}
	return false
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, appErrors.ErrUnauthorizedAction):
		return "unauthorized"
	case errors.Is(err, appErrors.ErrRequestFinalized):
		return "finalized"
	case errors.Is(err, appErrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, appErrors.ErrInvalidChain):
		return "invalid_chain"
	case errors.Is(err, appErrors.ErrInvalidDateRange):
		return "invalid_dates"
	case errors.Is(err, appErrors.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
