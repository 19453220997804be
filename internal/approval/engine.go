package approval

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/leave-approval-api/internal/models"
	appErrors "github.com/noah-isme/leave-approval-api/pkg/errors"
)

// LeaveForm carries the requester supplied fields of a submission.
type LeaveForm struct {
	StartDate    time.Time
	EndDate      time.Time
	Reason       string
	RelieverName string
}

// Engine creates leave requests from the chain policy and advances them one action at a
// time. It holds no request state: every operation returns a new snapshot.
type Engine struct {
	policy *ChainPolicy
	now    func() time.Time
	newID  func() string
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithClock overrides the time source used for step timestamps and submissions.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides request id generation.
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// NewEngine constructs an engine for the given policy, falling back to the default chains.
func NewEngine(policy *ChainPolicy, opts ...EngineOption) *Engine {
	if policy == nil {
		policy = DefaultPolicy()
	}
	e := &Engine{policy: policy, now: time.Now, newID: NewRequestID}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Policy exposes the chain policy the engine was built with.
func (e *Engine) Policy() *ChainPolicy {
	return e.policy
}

// NewRequestID returns an opaque request identifier such as REQ-3F9A1C07B2E4, carrying 48
// random bits.
func NewRequestID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "REQ-" + strings.ToUpper(raw[:12])
}

// LeaveDays counts calendar days covered by the range, both ends inclusive. It returns zero
// for unset dates or when end precedes start.
func LeaveDays(start, end time.Time) int {
	if start.IsZero() || end.IsZero() {
		return 0
	}
	diff := end.Sub(start)
	if diff < 0 {
		return 0
	}
	return int(math.Ceil(diff.Hours()/24)) + 1
}

// CreateRequest instantiates a pending request whose chain mirrors the requester's policy.
func (e *Engine) CreateRequest(requester models.Identity, form LeaveForm) (*models.LeaveRequest, error) {
	chain := e.policy.ChainFor(requester.Role)
	if len(chain) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidChain, "role "+string(requester.Role)+" has no configured approval chain")
	}
	days := LeaveDays(form.StartDate, form.EndDate)
	if days <= 0 {
		return nil, appErrors.ErrInvalidDateRange
	}
	if strings.TrimSpace(requester.ID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "requester id is required")
	}
	reliever := strings.TrimSpace(form.RelieverName)
	if reliever == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "relieverName is required")
	}
	if reliever == requester.Name {
		return nil, appErrors.Clone(appErrors.ErrValidation, "requester cannot be their own reliever")
	}
	reason := strings.TrimSpace(form.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reason is required")
	}

	steps := make(models.ApprovalChain, len(chain))
	for i, role := range chain {
		steps[i] = models.ApprovalStep{Role: role, Status: models.StepStatusPending}
	}
	return &models.LeaveRequest{
		ID:               e.newID(),
		RequesterID:      requester.ID,
		RequesterName:    requester.Name,
		RequesterRole:    requester.Role,
		StartDate:        form.StartDate,
		EndDate:          form.EndDate,
		LeaveDays:        days,
		Reason:           reason,
		RelieverName:     reliever,
		Status:           models.RequestStatusPending,
		CurrentStepIndex: 0,
		ApprovalChain:    steps,
		SubmittedAt:      e.now().UTC(),
	}, nil
}

// ResolveActor reports whether actor fills the given step of the request. A Reliever step is
// resolved by exact name match against the designated reliever; every other step by role.
func ResolveActor(req *models.LeaveRequest, step models.ApprovalStep, actor models.Identity) bool {
	if req == nil {
		return false
	}
	if step.Role == models.RoleReliever {
		return actor.Name != "" && actor.Name == req.RelieverName
	}
	return actor.Role == step.Role
}

// CanAct reports whether actor may act on the request's current step.
func CanAct(req *models.LeaveRequest, actor models.Identity) bool {
	step := req.CurrentStep()
	if step == nil || step.Status != models.StepStatusPending {
		return false
	}
	return ResolveActor(req, *step, actor)
}

// Actionable reports whether the request accepts further actions.
func Actionable(req *models.LeaveRequest) bool {
	if req == nil {
		return false
	}
	return (req.Status == models.RequestStatusPending || req.Status == models.RequestStatusApproved) &&
		req.CurrentStep() != nil
}

// ApplyAction records actor's decision on the current step and returns the updated snapshot.
// The input request is never modified.
func (e *Engine) ApplyAction(req *models.LeaveRequest, actor models.Identity, action models.ApprovalAction, comment string) (*models.LeaveRequest, error) {
	if req == nil {
		return nil, appErrors.ErrNotFound
	}
	if action != models.ActionApprove && action != models.ActionReject {
		return nil, appErrors.Clone(appErrors.ErrValidation, "action must be approve or reject")
	}
	if !Actionable(req) {
		return nil, appErrors.ErrRequestFinalized
	}
	if !CanAct(req, actor) {
		return nil, appErrors.ErrUnauthorizedAction
	}

	out := req.Clone()
	idx := out.CurrentStepIndex
	stamp := e.nextTimestamp(out.ApprovalChain)
	approver := actor.ID
	step := &out.ApprovalChain[idx]
	step.ApproverID = &approver
	step.Timestamp = &stamp
	if note := strings.TrimSpace(comment); note != "" {
		step.Comment = &note
	}

	switch action {
	case models.ActionReject:
		step.Status = models.StepStatusRejected
		out.Status = models.RequestStatusRejected
	case models.ActionApprove:
		step.Status = models.StepStatusApproved
		out.CurrentStepIndex = idx + 1
		if out.CurrentStepIndex == len(out.ApprovalChain) {
			out.Status = models.RequestStatusCompleted
		} else {
			out.Status = models.RequestStatusApproved
		}
	}
	return out, nil
}

// nextTimestamp keeps step timestamps strictly increasing along a chain even when the clock
// has not advanced between two actions.
func (e *Engine) nextTimestamp(chain models.ApprovalChain) time.Time {
	now := e.now().UTC()
	for _, step := range chain {
		if step.Timestamp != nil && !now.After(*step.Timestamp) {
			now = step.Timestamp.Add(time.Microsecond)
		}
	}
	return now
}
