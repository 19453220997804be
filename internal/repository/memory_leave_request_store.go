package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/noah-isme/leave-approval-api/internal/models"
	appErrors "github.com/noah-isme/leave-approval-api/pkg/errors"
)

// MemoryLeaveRequestStore keeps requests in process memory. It enforces the same version
// check as the Postgres repository and is used when no database is configured.
type MemoryLeaveRequestStore struct {
	mu       sync.RWMutex
	requests map[string]*models.LeaveRequest
}

// NewMemoryLeaveRequestStore constructs an empty store.
func NewMemoryLeaveRequestStore() *MemoryLeaveRequestStore {
	return &MemoryLeaveRequestStore{requests: make(map[string]*models.LeaveRequest)}
}

// Create stores a new request at version 1.
func (s *MemoryLeaveRequestStore) Create(_ context.Context, req *models.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return appErrors.Clone(appErrors.ErrConflict, "leave request already exists")
	}
	if req.Version == 0 {
		req.Version = 1
	}
	s.requests[req.ID] = req.Clone()
	return nil
}

// GetByID returns a copy of the stored request.
func (s *MemoryLeaveRequestStore) GetByID(_ context.Context, id string) (*models.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
	}
	return req.Clone(), nil
}

// List returns copies of the requests matching the filter, newest first.
func (s *MemoryLeaveRequestStore) List(_ context.Context, filter models.LeaveRequestFilter) ([]models.LeaveRequest, error) {
	s.mu.RLock()
	out := make([]models.LeaveRequest, 0, len(s.requests))
	for _, req := range s.requests {
		if filter.RequesterID != "" && req.RequesterID != filter.RequesterID {
			continue
		}
		if len(filter.Status) > 0 && !containsStatus(filter.Status, req.Status) {
			continue
		}
		out = append(out, *req.Clone())
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ListAll returns every stored request, newest first.
func (s *MemoryLeaveRequestStore) ListAll(ctx context.Context) ([]models.LeaveRequest, error) {
	return s.List(ctx, models.LeaveRequestFilter{})
}

// Update replaces the workflow state when the stored version equals expectedVersion.
func (s *MemoryLeaveRequestStore) Update(_ context.Context, req *models.LeaveRequest, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.requests[req.ID]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
	}
	if current.Version != expectedVersion {
		return appErrors.ErrStaleWrite
	}
	next := current.Clone()
	next.Status = req.Status
	next.CurrentStepIndex = req.CurrentStepIndex
	next.ApprovalChain = req.ApprovalChain.Clone()
	next.Version = expectedVersion + 1
	s.requests[req.ID] = next
	req.Version = next.Version
	return nil
}

// SetAnalysis attaches enrichment metadata without touching the workflow version.
func (s *MemoryLeaveRequestStore) SetAnalysis(_ context.Context, id string, analysis models.LeaveAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.requests[id]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
	}
	a := analysis
	current.Analysis = &a
	return nil
}

func containsStatus(statuses []models.RequestStatus, status models.RequestStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
