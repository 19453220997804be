package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leave-approval-api/internal/models"
	appErrors "github.com/noah-isme/leave-approval-api/pkg/errors"
)

func TestMemoryStoreCreateGetIsolation(t *testing.T) {
	store := NewMemoryLeaveRequestStore()
	ctx := context.Background()
	req := sampleLeaveRequest()
	require.NoError(t, store.Create(ctx, req))
	require.Error(t, store.Create(ctx, req))

	got, err := store.GetByID(ctx, req.ID)
	require.NoError(t, err)
	got.ApprovalChain[0].Status = models.StepStatusApproved

	again, err := store.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusPending, again.ApprovalChain[0].Status)

	_, err = store.GetByID(ctx, "REQ-NOPE")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestMemoryStoreListOrderingAndFilter(t *testing.T) {
	store := NewMemoryLeaveRequestStore()
	ctx := context.Background()
	base := time.Date(2024, 4, 20, 9, 0, 0, 0, time.UTC)
	for i, owner := range []string{"u1", "u2", "u1"} {
		req := sampleLeaveRequest()
		req.ID = []string{"REQ-A", "REQ-B", "REQ-C"}[i]
		req.RequesterID = owner
		req.SubmittedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.Create(ctx, req))
	}

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "REQ-C", all[0].ID)
	assert.Equal(t, "REQ-A", all[2].ID)

	mine, err := store.List(ctx, models.LeaveRequestFilter{RequesterID: "u1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "REQ-C", mine[0].ID)
}

func TestMemoryStoreVersionCheck(t *testing.T) {
	store := NewMemoryLeaveRequestStore()
	ctx := context.Background()
	req := sampleLeaveRequest()
	require.NoError(t, store.Create(ctx, req))

	first, _ := store.GetByID(ctx, req.ID)
	second, _ := store.GetByID(ctx, req.ID)

	first.Status = models.RequestStatusApproved
	first.CurrentStepIndex = 1
	require.NoError(t, store.Update(ctx, first, first.Version))
	assert.Equal(t, 2, first.Version)

	second.Status = models.RequestStatusRejected
	err := store.Update(ctx, second, second.Version)
	assert.True(t, errors.Is(err, appErrors.ErrStaleWrite))

	stored, _ := store.GetByID(ctx, req.ID)
	assert.Equal(t, models.RequestStatusApproved, stored.Status)
}

func TestMemoryStoreConcurrentUpdatesSingleWinner(t *testing.T) {
	store := NewMemoryLeaveRequestStore()
	ctx := context.Background()
	req := sampleLeaveRequest()
	require.NoError(t, store.Create(ctx, req))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snapshot, _ := store.GetByID(ctx, req.ID)
			snapshot.CurrentStepIndex = 1
			if err := store.Update(ctx, snapshot, 1); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemoryStoreSetAnalysisKeepsVersion(t *testing.T) {
	store := NewMemoryLeaveRequestStore()
	ctx := context.Background()
	req := sampleLeaveRequest()
	require.NoError(t, store.Create(ctx, req))

	require.NoError(t, store.SetAnalysis(ctx, req.ID, models.LeaveAnalysis{Summary: "trip", Priority: 2}))
	stored, _ := store.GetByID(ctx, req.ID)
	require.NotNil(t, stored.Analysis)
	assert.Equal(t, 1, stored.Version)
}
