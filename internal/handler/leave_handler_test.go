package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leave-approval-api/internal/dto"
	"github.com/noah-isme/leave-approval-api/internal/middleware"
	"github.com/noah-isme/leave-approval-api/internal/models"
	"github.com/noah-isme/leave-approval-api/internal/service"
	appErrors "github.com/noah-isme/leave-approval-api/pkg/errors"
)

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

type fakeLeaveSrv struct {
	submitted   dto.SubmitLeaveRequest
	lastAction  models.ApprovalAction
	lastComment string
	lastActor   models.Identity
	result      *models.LeaveRequest
	list        []models.LeaveRequest
	stats       *dto.DashboardStats
	err         error
}

func (f *fakeLeaveSrv) Submit(_ context.Context, requester models.Identity, req dto.SubmitLeaveRequest) (*models.LeaveRequest, error) {
	f.submitted = req
	f.lastActor = requester
	return f.result, f.err
}

func (f *fakeLeaveSrv) Act(_ context.Context, _ string, actor models.Identity, action models.ApprovalAction, comment string) (*models.LeaveRequest, error) {
	f.lastActor = actor
	f.lastAction = action
	f.lastComment = comment
	return f.result, f.err
}

func (f *fakeLeaveSrv) Get(context.Context, string, models.Identity) (*models.LeaveRequest, error) {
	return f.result, f.err
}

func (f *fakeLeaveSrv) Mine(context.Context, models.Identity) ([]models.LeaveRequest, error) {
	return f.list, f.err
}

func (f *fakeLeaveSrv) PendingForMe(context.Context, models.Identity) ([]models.LeaveRequest, error) {
	return f.list, f.err
}

func (f *fakeLeaveSrv) CompletedThisMonth(context.Context, models.Identity) (int, error) {
	return len(f.list), f.err
}

func (f *fakeLeaveSrv) Dashboard(context.Context, models.Identity) (*dto.DashboardStats, error) {
	return f.stats, f.err
}

type fakeLinker struct {
	link *dto.CertificateLink
	err  error
}

func (f *fakeLinker) CertificateLink(context.Context, *models.LeaveRequest) (*dto.CertificateLink, error) {
	return f.link, f.err
}

func newTestContext(method, target string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

func operatorClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "u1", Name: "John Operator", Role: models.RoleOperator}
}

func TestLeaveHandlerSubmitRequiresIdentity(t *testing.T) {
	h := NewLeaveHandler(&fakeLeaveSrv{}, &fakeLinker{})
	c, rec := newTestContext(http.MethodPost, "/leave-requests", []byte(`{}`), nil)

	h.Submit(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLeaveHandlerSubmitRejectsMalformedBody(t *testing.T) {
	h := NewLeaveHandler(&fakeLeaveSrv{}, &fakeLinker{})
	c, rec := newTestContext(http.MethodPost, "/leave-requests", []byte(`{"startDate":`), operatorClaims())

	h.Submit(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, env.Error.Code)
}

func TestLeaveHandlerSubmitCreates(t *testing.T) {
	srv := &fakeLeaveSrv{result: &models.LeaveRequest{ID: "REQ-00000001", Status: models.RequestStatusPending}}
	h := NewLeaveHandler(srv, &fakeLinker{})
	body := []byte(`{"startDate":"2026-03-02","endDate":"2026-03-04","reason":"Family","relieverName":"Alex Reliever"}`)
	c, rec := newTestContext(http.MethodPost, "/leave-requests", body, operatorClaims())

	h.Submit(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Alex Reliever", srv.submitted.RelieverName)
	assert.Equal(t, "u1", srv.lastActor.ID)
	var leave models.LeaveRequest
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &leave))
	assert.Equal(t, "REQ-00000001", leave.ID)
}

func TestLeaveHandlerApproveWithoutBody(t *testing.T) {
	srv := &fakeLeaveSrv{result: &models.LeaveRequest{ID: "REQ-1", Status: models.RequestStatusApproved}}
	h := NewLeaveHandler(srv, &fakeLinker{})
	c, rec := newTestContext(http.MethodPost, "/leave-requests/REQ-1/approve", nil, operatorClaims())
	c.Params = gin.Params{{Key: "id", Value: "REQ-1"}}

	h.Approve(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ActionApprove, srv.lastAction)
	assert.Empty(t, srv.lastComment)
}

func TestLeaveHandlerRejectPassesComment(t *testing.T) {
	srv := &fakeLeaveSrv{result: &models.LeaveRequest{ID: "REQ-1", Status: models.RequestStatusRejected}}
	h := NewLeaveHandler(srv, &fakeLinker{})
	c, rec := newTestContext(http.MethodPost, "/leave-requests/REQ-1/reject", []byte(`{"comment":"short staffed"}`), operatorClaims())
	c.Params = gin.Params{{Key: "id", Value: "REQ-1"}}

	h.Reject(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ActionReject, srv.lastAction)
	assert.Equal(t, "short staffed", srv.lastComment)
}

func TestLeaveHandlerReadsChunkedComment(t *testing.T) {
	srv := &fakeLeaveSrv{result: &models.LeaveRequest{ID: "REQ-1", Status: models.RequestStatusApproved}}
	h := NewLeaveHandler(srv, &fakeLinker{})
	c, rec := newTestContext(http.MethodPost, "/leave-requests/REQ-1/approve", []byte(`{"comment":"covered by Alex"}`), operatorClaims())
	c.Request.ContentLength = -1
	c.Params = gin.Params{{Key: "id", Value: "REQ-1"}}

	h.Approve(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "covered by Alex", srv.lastComment)
}

func TestLeaveHandlerActRejectsMalformedBody(t *testing.T) {
	srv := &fakeLeaveSrv{}
	h := NewLeaveHandler(srv, &fakeLinker{})
	c, rec := newTestContext(http.MethodPost, "/leave-requests/REQ-1/reject", []byte(`{"comment":`), operatorClaims())

	h.Reject(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, srv.lastAction)
}

func TestLeaveHandlerActMapsDomainErrors(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"unauthorized actor": {appErrors.ErrUnauthorizedAction, appErrors.ErrUnauthorizedAction.Status},
		"finalized":          {appErrors.ErrRequestFinalized, appErrors.ErrRequestFinalized.Status},
		"missing":            {appErrors.ErrNotFound, http.StatusNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := NewLeaveHandler(&fakeLeaveSrv{err: tc.err}, &fakeLinker{})
			c, rec := newTestContext(http.MethodPost, "/leave-requests/REQ-1/approve", nil, operatorClaims())

			h.Approve(c)

			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestLeaveHandlerMineSetsTotal(t *testing.T) {
	srv := &fakeLeaveSrv{list: []models.LeaveRequest{{ID: "REQ-1"}, {ID: "REQ-2"}}}
	h := NewLeaveHandler(srv, &fakeLinker{})
	c, rec := newTestContext(http.MethodGet, "/leave-requests/mine", nil, operatorClaims())

	h.Mine(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.EqualValues(t, 2, env.Meta["total"])
}

func TestLeaveHandlerCertificateLink(t *testing.T) {
	srv := &fakeLeaveSrv{result: &models.LeaveRequest{ID: "REQ-1", Status: models.RequestStatusCompleted}}
	linker := &fakeLinker{link: &dto.CertificateLink{RequestID: "REQ-1", URL: "/api/v1/export/token", ExpiresAt: "2026-03-05T10:00:00Z"}}
	h := NewLeaveHandler(srv, linker)
	c, rec := newTestContext(http.MethodGet, "/leave-requests/REQ-1/certificate", nil, operatorClaims())

	h.Certificate(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var link dto.CertificateLink
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &link))
	assert.Equal(t, "/api/v1/export/token", link.URL)
}

func TestLeaveHandlerCertificateRequiresCompletion(t *testing.T) {
	srv := &fakeLeaveSrv{result: &models.LeaveRequest{ID: "REQ-1", Status: models.RequestStatusPending}}
	h := NewLeaveHandler(srv, &fakeLinker{err: appErrors.ErrConflict})
	c, rec := newTestContext(http.MethodGet, "/leave-requests/REQ-1/certificate", nil, operatorClaims())

	h.Certificate(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLeaveHandlerStats(t *testing.T) {
	srv := &fakeLeaveSrv{
		list:  []models.LeaveRequest{{ID: "REQ-1"}},
		stats: &dto.DashboardStats{MyRequests: 3, AwaitingMyAction: 1},
	}
	h := NewLeaveHandler(srv, &fakeLinker{})

	c, rec := newTestContext(http.MethodGet, "/stats/completed-this-month", nil, operatorClaims())
	h.CompletedThisMonth(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":1}`, string(decodeEnvelope(t, rec).Data))

	c, rec = newTestContext(http.MethodGet, "/stats/dashboard", nil, operatorClaims())
	h.Dashboard(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	var stats dto.DashboardStats
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &stats))
	assert.Equal(t, 3, stats.MyRequests)
}

type fakeLedgerSrv struct {
	query  dto.LedgerQuery
	list   []models.LeaveRequest
	result *models.LeaveRequest
	err    error
}

func (f *fakeLedgerSrv) Get(context.Context, string, models.Identity) (*models.LeaveRequest, error) {
	return f.result, f.err
}

func (f *fakeLedgerSrv) Ledger(_ context.Context, _ models.Identity, query dto.LedgerQuery) ([]models.LeaveRequest, error) {
	f.query = query
	return f.list, f.err
}

type fakeRenderer struct {
	format string
	viewer models.Identity
}

func (f *fakeRenderer) RequestDocument(_ context.Context, req *models.LeaveRequest, viewer models.Identity) (*service.ExportResult, error) {
	f.viewer = viewer
	if req.Status != models.RequestStatusCompleted && viewer.Role != models.RoleProjectManager {
		return nil, appErrors.Clone(appErrors.ErrConflict, "certificate is only available for completed requests")
	}
	return &service.ExportResult{Filename: "Leave_Audit_" + req.ID + ".pdf", ContentType: "application/pdf", Payload: []byte("%PDF")}, nil
}

func (f *fakeRenderer) RenderLedger(_ []models.LeaveRequest, format string) (*service.ExportResult, error) {
	f.format = format
	if format == "doc" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported format")
	}
	return &service.ExportResult{Filename: "leave_ledger_2026-03-05.csv", ContentType: "text/csv", Payload: []byte("a,b\n")}, nil
}

func TestLedgerHandlerForbiddenForNonManagers(t *testing.T) {
	h := NewLedgerHandler(&fakeLedgerSrv{err: appErrors.ErrForbidden}, &fakeRenderer{})
	c, rec := newTestContext(http.MethodGet, "/ledger", nil, operatorClaims())

	h.List(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLedgerHandlerListBindsFilters(t *testing.T) {
	srv := &fakeLedgerSrv{list: []models.LeaveRequest{{ID: "REQ-1"}}}
	h := NewLedgerHandler(srv, &fakeRenderer{})
	claims := &models.JWTClaims{UserID: "u4", Name: "David PM", Role: models.RoleProjectManager}
	c, rec := newTestContext(http.MethodGet, "/ledger?search=john&status=Pending", nil, claims)

	h.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "john", srv.query.Search)
	assert.Equal(t, "Pending", srv.query.Status)
}

func TestLedgerHandlerExportWritesAttachment(t *testing.T) {
	renderer := &fakeRenderer{}
	h := NewLedgerHandler(&fakeLedgerSrv{}, renderer)
	claims := &models.JWTClaims{UserID: "u4", Name: "David PM", Role: models.RoleProjectManager}
	c, rec := newTestContext(http.MethodGet, "/ledger/export?format=csv", nil, claims)

	h.Export(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", renderer.format)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "leave_ledger_2026-03-05.csv")
	assert.Equal(t, "a,b\n", rec.Body.String())
}

func TestLedgerHandlerDocumentForRejectedRequest(t *testing.T) {
	srv := &fakeLedgerSrv{result: &models.LeaveRequest{ID: "REQ-9", Status: models.RequestStatusRejected}}
	renderer := &fakeRenderer{}
	h := NewLedgerHandler(srv, renderer)
	claims := &models.JWTClaims{UserID: "u4", Name: "David PM", Role: models.RoleProjectManager}
	c, rec := newTestContext(http.MethodGet, "/ledger/REQ-9/pdf", nil, claims)
	c.Params = gin.Params{{Key: "id", Value: "REQ-9"}}

	h.Document(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u4", renderer.viewer.ID)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Leave_Audit_REQ-9.pdf")
}

func TestLedgerHandlerDocumentRefusedForNonManager(t *testing.T) {
	srv := &fakeLedgerSrv{result: &models.LeaveRequest{ID: "REQ-9", Status: models.RequestStatusRejected}}
	h := NewLedgerHandler(srv, &fakeRenderer{})
	c, rec := newTestContext(http.MethodGet, "/ledger/REQ-9/pdf", nil, operatorClaims())

	h.Document(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

type fakeDirectory struct {
	users []models.DirectoryUser
}

func (f *fakeDirectory) Relievers(context.Context, models.Identity) []models.DirectoryUser {
	return f.users
}

func TestDirectoryHandlerRelievers(t *testing.T) {
	h := NewDirectoryHandler(&fakeDirectory{users: []models.DirectoryUser{{ID: "u5", Name: "Alex Reliever", Role: models.RoleReliever}}})
	c, rec := newTestContext(http.MethodGet, "/directory/relievers", nil, operatorClaims())

	h.Relievers(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var users []models.DirectoryUser
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "Alex Reliever", users[0].Name)
}

type fakeOpener struct {
	err error
}

func (f *fakeOpener) Open(string) (*service.ExportResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.ExportResult{Filename: "Leave_Approval_REQ-1.pdf", ContentType: "application/pdf", Payload: []byte("%PDF")}, nil
}

func TestExportHandlerDownload(t *testing.T) {
	h := NewExportHandler(&fakeOpener{})
	c, rec := newTestContext(http.MethodGet, "/export/token", nil, nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}

	h.Download(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Leave_Approval_REQ-1.pdf")
}

func TestExportHandlerExpiredToken(t *testing.T) {
	h := NewExportHandler(&fakeOpener{err: appErrors.ErrForbidden})
	c, rec := newTestContext(http.MethodGet, "/export/bad", nil, nil)

	h.Download(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
