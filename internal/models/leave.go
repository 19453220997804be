package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RequestStatus captures the lifecycle of a leave request. It is derived from chain progress.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "Pending"
	RequestStatusApproved  RequestStatus = "Approved"
	RequestStatusCompleted RequestStatus = "Completed"
	RequestStatusRejected  RequestStatus = "Rejected"
)

// Valid reports whether the status belongs to the closed set.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusCompleted, RequestStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further actions are accepted.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusRejected
}

// StepStatus is the state of a single approval step.
type StepStatus string

const (
	StepStatusPending  StepStatus = "pending"
	StepStatusApproved StepStatus = "approved"
	StepStatusRejected StepStatus = "rejected"
)

// ApprovalAction enumerates the decisions an approver can take.
type ApprovalAction string

const (
	ActionApprove ApprovalAction = "approve"
	ActionReject  ApprovalAction = "reject"
)

// ApprovalStep is one entry of a request's approval chain.
type ApprovalStep struct {
	Role       Role       `json:"role"`
	Status     StepStatus `json:"status"`
	ApproverID *string    `json:"approverId,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	Comment    *string    `json:"comments,omitempty"`
}

// ApprovalChain is the fixed-length sequence of steps, persisted as JSONB.
type ApprovalChain []ApprovalStep

// Value marshals the chain to JSON for persistence.
func (c ApprovalChain) Value() (driver.Value, error) {
	if c == nil {
		c = ApprovalChain{}
	}
	data, err := json.Marshal([]ApprovalStep(c))
	if err != nil {
		return nil, fmt.Errorf("marshal approval chain: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSON payload into the chain.
func (c *ApprovalChain) Scan(value interface{}) error {
	data, err := jsonBytes(value, "ApprovalChain")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*c = ApprovalChain{}
		return nil
	}
	var steps []ApprovalStep
	if err := json.Unmarshal(data, &steps); err != nil {
		return fmt.Errorf("unmarshal approval chain: %w", err)
	}
	*c = steps
	return nil
}

// Clone returns a deep copy so that snapshots never share step pointers.
func (c ApprovalChain) Clone() ApprovalChain {
	if c == nil {
		return nil
	}
	out := make(ApprovalChain, len(c))
	for i, step := range c {
		out[i] = ApprovalStep{Role: step.Role, Status: step.Status}
		if step.ApproverID != nil {
			v := *step.ApproverID
			out[i].ApproverID = &v
		}
		if step.Timestamp != nil {
			v := *step.Timestamp
			out[i].Timestamp = &v
		}
		if step.Comment != nil {
			v := *step.Comment
			out[i].Comment = &v
		}
	}
	return out
}

// LeaveAnalysis is non-authoritative metadata produced by the text-analysis collaborator.
type LeaveAnalysis struct {
	Summary   string `json:"summary"`
	Priority  int    `json:"priority"`
	Sentiment string `json:"sentiment"`
}

// Value marshals the analysis to JSON for persistence.
func (a LeaveAnalysis) Value() (driver.Value, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal leave analysis: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the analysis struct.
func (a *LeaveAnalysis) Scan(value interface{}) error {
	data, err := jsonBytes(value, "LeaveAnalysis")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*a = LeaveAnalysis{}
		return nil
	}
	if err := json.Unmarshal(data, a); err != nil {
		return fmt.Errorf("unmarshal leave analysis: %w", err)
	}
	return nil
}

// LeaveRequest is a single leave application and its embedded approval chain.
type LeaveRequest struct {
	ID               string         `db:"id" json:"id"`
	RequesterID      string         `db:"requester_id" json:"userId"`
	RequesterName    string         `db:"requester_name" json:"userName"`
	RequesterRole    Role           `db:"requester_role" json:"userRole"`
	StartDate        time.Time      `db:"start_date" json:"startDate"`
	EndDate          time.Time      `db:"end_date" json:"endDate"`
	LeaveDays        int            `db:"leave_days" json:"leaveDays"`
	Reason           string         `db:"reason" json:"reason"`
	RelieverName     string         `db:"reliever_name" json:"relieverName"`
	Status           RequestStatus  `db:"status" json:"status"`
	CurrentStepIndex int            `db:"current_step_index" json:"currentStepIndex"`
	ApprovalChain    ApprovalChain  `db:"approval_chain" json:"approvalChain"`
	SubmittedAt      time.Time      `db:"submitted_at" json:"submittedAt"`
	Version          int            `db:"version" json:"version"`
	Analysis         *LeaveAnalysis `db:"analysis" json:"analysis,omitempty"`
}

// CurrentStep returns the step at the cursor, or nil once the cursor passed the chain.
func (r *LeaveRequest) CurrentStep() *ApprovalStep {
	if r == nil || r.CurrentStepIndex < 0 || r.CurrentStepIndex >= len(r.ApprovalChain) {
		return nil
	}
	return &r.ApprovalChain[r.CurrentStepIndex]
}

// FinalStep returns the last step of the chain.
func (r *LeaveRequest) FinalStep() *ApprovalStep {
	if r == nil || len(r.ApprovalChain) == 0 {
		return nil
	}
	return &r.ApprovalChain[len(r.ApprovalChain)-1]
}

// Clone returns a deep copy of the request.
func (r *LeaveRequest) Clone() *LeaveRequest {
	if r == nil {
		return nil
	}
	out := *r
	out.ApprovalChain = r.ApprovalChain.Clone()
	if r.Analysis != nil {
		a := *r.Analysis
		out.Analysis = &a
	}
	return &out
}

// LeaveRequestFilter constrains listing queries at the persistence layer.
type LeaveRequestFilter struct {
	RequesterID string
	Status      []RequestStatus
	Limit       int
}

func jsonBytes(value interface{}, typeName string) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T for %s", value, typeName)
	}
}
