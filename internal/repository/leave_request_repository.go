package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/leave-approval-api/internal/models"
	appErrors "github.com/noah-isme/leave-approval-api/pkg/errors"
)

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

const leaveRequestColumns = `id, requester_id, requester_name, requester_role, start_date, end_date, leave_days,
       reason, reliever_name, status, current_step_index, approval_chain, submitted_at, version, analysis`

// LeaveRequestRepository persists leave requests in Postgres with versioned writes.
type LeaveRequestRepository struct {
	db *sqlx.DB
}

// NewLeaveRequestRepository constructs the repository.
func NewLeaveRequestRepository(db *sqlx.DB) *LeaveRequestRepository {
	return &LeaveRequestRepository{db: db}
}

// Create inserts a new request at version 1.
func (r *LeaveRequestRepository) Create(ctx context.Context, req *models.LeaveRequest) error {
	if req.Version == 0 {
		req.Version = 1
	}
	const query = `INSERT INTO leave_requests
	(id, requester_id, requester_name, requester_role, start_date, end_date, leave_days, reason, reliever_name,
	 status, current_step_index, approval_chain, submitted_at, version, analysis)
	VALUES (:id, :requester_id, :requester_name, :requester_role, :start_date, :end_date, :leave_days, :reason, :reliever_name,
	 :status, :current_step_index, :approval_chain, :submitted_at, :version, :analysis)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "leave request already exists")
		}
		return fmt.Errorf("create leave request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *LeaveRequestRepository) GetByID(ctx context.Context, id string) (*models.LeaveRequest, error) {
	query := "SELECT " + leaveRequestColumns + " FROM leave_requests WHERE id = $1"
	var req models.LeaveRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
		}
		return nil, fmt.Errorf("get leave request: %w", err)
	}
	return &req, nil
}

// List returns requests matching the filter, newest first.
func (r *LeaveRequestRepository) List(ctx context.Context, filter models.LeaveRequestFilter) ([]models.LeaveRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString("SELECT " + leaveRequestColumns + " FROM leave_requests")

	conditions := make([]string, 0, 2)
	if filter.RequesterID != "" {
		args = append(args, filter.RequesterID)
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY submitted_at DESC")
	if filter.Limit > 0 {
		builder.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
	}

	var requests []models.LeaveRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list leave requests: %w", err)
	}
	return requests, nil
}

// ListAll returns every stored request, newest first.
func (r *LeaveRequestRepository) ListAll(ctx context.Context) ([]models.LeaveRequest, error) {
	return r.List(ctx, models.LeaveRequestFilter{})
}

// Update writes the workflow columns (status, cursor and chain) when the stored version still equals
// expectedVersion. A concurrent writer leaves zero rows affected and yields ErrStaleWrite.
func (r *LeaveRequestRepository) Update(ctx context.Context, req *models.LeaveRequest, expectedVersion int) error {
	const query = `UPDATE leave_requests
	SET status = :status, current_step_index = :current_step_index, approval_chain = :approval_chain,
	    version = version + 1
	WHERE id = :id AND version = :expected_version`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                 req.ID,
		"status":             req.Status,
		"current_step_index": req.CurrentStepIndex,
		"approval_chain":     req.ApprovalChain,
		"expected_version":   expectedVersion,
	})
	if err != nil {
		return fmt.Errorf("update leave request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update leave request rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, req.ID); err != nil {
			return err
		}
		return appErrors.ErrStaleWrite
	}
	req.Version = expectedVersion + 1
	return nil
}

// SetAnalysis attaches enrichment metadata without touching the workflow version.
func (r *LeaveRequestRepository) SetAnalysis(ctx context.Context, id string, analysis models.LeaveAnalysis) error {
	const query = `UPDATE leave_requests SET analysis = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, analysis, id)
	if err != nil {
		return fmt.Errorf("set leave analysis: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
	}
	return nil
}
