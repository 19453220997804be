package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leave-approval-api/internal/models"
	appErrors "github.com/noah-isme/leave-approval-api/pkg/errors"
)

var leaveColumns = []string{"id", "requester_id", "requester_name", "requester_role", "start_date", "end_date", "leave_days",
	"reason", "reliever_name", "status", "current_step_index", "approval_chain", "submitted_at", "version", "analysis"}

func newLeaveRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sampleLeaveRequest() *models.LeaveRequest {
	return &models.LeaveRequest{
		ID:            "REQ-1A2B3C4D",
		RequesterID:   "u1",
		RequesterName: "John Operator",
		RequesterRole: models.RoleOperator,
		StartDate:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
		LeaveDays:     3,
		Reason:        "family event",
		RelieverName:  "Alex Reliever",
		Status:        models.RequestStatusPending,
		ApprovalChain: models.ApprovalChain{
			{Role: models.RoleReliever, Status: models.StepStatusPending},
			{Role: models.RoleProjectManager, Status: models.StepStatusPending},
		},
		SubmittedAt: time.Date(2024, 4, 20, 9, 0, 0, 0, time.UTC),
	}
}

func TestLeaveRequestRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO leave_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := sampleLeaveRequest()
	require.NoError(t, repo.Create(context.Background(), req))
	require.Equal(t, 1, req.Version)

	chain := `[{"role":"Reliever","status":"pending"},{"role":"Project Manager","status":"pending"}]`
	rows := sqlmock.NewRows(leaveColumns).
		AddRow(req.ID, "u1", "John Operator", "EME Operator", req.StartDate, req.EndDate, 3,
			"family event", "Alex Reliever", "Pending", 0, []byte(chain), req.SubmittedAt, 1, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, requester_id, requester_name")).
		WithArgs(req.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, req.ID, found.ID)
	require.Equal(t, models.RoleOperator, found.RequesterRole)
	require.Len(t, found.ApprovalChain, 2)
	require.Equal(t, models.RoleProjectManager, found.ApprovalChain[1].Role)
	require.Nil(t, found.Analysis)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRequestRepositoryCreateDuplicateIsConflict(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO leave_requests")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), sampleLeaveRequest())
	require.True(t, errors.Is(err, appErrors.ErrConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRequestRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRequestRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, requester_id")).
		WithArgs("REQ-MISSING").
		WillReturnRows(sqlmock.NewRows(leaveColumns))

	_, err := repo.GetByID(context.Background(), "REQ-MISSING")
	require.True(t, errors.Is(err, appErrors.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRequestRepository(db)
	req := sampleLeaveRequest()
	rows := sqlmock.NewRows(leaveColumns).
		AddRow(req.ID, "u1", "John Operator", "EME Operator", req.StartDate, req.EndDate, 3,
			"family event", "Alex Reliever", "Pending", 0, []byte(`[]`), req.SubmittedAt, 1,
			[]byte(`{"summary":"family","priority":2,"sentiment":"Neutral"}`))
	mock.ExpectQuery(`requester_id = \$1 AND status IN \(\$2,\$3\) ORDER BY submitted_at DESC LIMIT 10`).
		WithArgs("u1", models.RequestStatusPending, models.RequestStatusApproved).
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.LeaveRequestFilter{
		RequesterID: "u1",
		Status:      []models.RequestStatus{models.RequestStatusPending, models.RequestStatusApproved},
		Limit:       10,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Analysis)
	require.Equal(t, 2, list[0].Analysis.Priority)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRequestRepositoryUpdateBumpsVersion(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := sampleLeaveRequest()
	req.Version = 3
	req.Status = models.RequestStatusApproved
	req.CurrentStepIndex = 1
	require.NoError(t, repo.Update(context.Background(), req, 3))
	require.Equal(t, 4, req.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRequestRepositoryUpdateStaleWrite(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRequestRepository(db)
	req := sampleLeaveRequest()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_requests")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, requester_id")).
		WithArgs(req.ID).
		WillReturnRows(sqlmock.NewRows(leaveColumns).
			AddRow(req.ID, "u1", "John Operator", "EME Operator", req.StartDate, req.EndDate, 3,
				"family event", "Alex Reliever", "Approved", 1, []byte(`[]`), req.SubmittedAt, 2, nil))

	err := repo.Update(context.Background(), req, 1)
	require.True(t, errors.Is(err, appErrors.ErrStaleWrite))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRequestRepositorySetAnalysis(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_requests SET analysis")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetAnalysis(context.Background(), "REQ-1", models.LeaveAnalysis{Summary: "trip", Priority: 3, Sentiment: "Neutral"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
