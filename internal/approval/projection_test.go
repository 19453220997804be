package approval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leave-approval-api/internal/models"
)

func ids(requests []models.LeaveRequest) []string {
	out := make([]string, 0, len(requests))
	for _, r := range requests {
		out = append(out, r.ID)
	}
	return out
}

func approveAll(t *testing.T, engine *Engine, req *models.LeaveRequest, actors ...models.Identity) *models.LeaveRequest {
	t.Helper()
	var err error
	for _, actor := range actors {
		req, err = engine.ApplyAction(req, actor, models.ActionApprove, "")
		require.NoError(t, err)
	}
	return req
}

func TestMineAndPendingFor(t *testing.T) {
	engine := newTestEngine(day(2024, 5, 1))

	first, err := engine.CreateRequest(operator, validForm())
	require.NoError(t, err)
	second, err := engine.CreateRequest(operator2, validForm())
	require.NoError(t, err)
	third, err := engine.CreateRequest(operator, validForm())
	require.NoError(t, err)
	third = approveAll(t, engine, third, reliever)

	all := []models.LeaveRequest{*first, *second, *third}

	assert.Equal(t, []string{third.ID, first.ID}, ids(Mine(all, operator)))
	assert.Equal(t, []string{second.ID}, ids(Mine(all, operator2)))

	assert.Equal(t, []string{second.ID, first.ID}, ids(PendingFor(all, reliever)))
	assert.Equal(t, []string{third.ID}, ids(PendingFor(all, teamLead)))
	assert.Empty(t, PendingFor(all, manager))
	assert.Empty(t, PendingFor(all, operator))
}

func TestPendingForExcludesFinalizedRequests(t *testing.T) {
	engine := newTestEngine(day(2024, 5, 1))

	rejected, err := engine.CreateRequest(incharge, validForm())
	require.NoError(t, err)
	rejected, err = engine.ApplyAction(rejected, reliever, models.ActionReject, "")
	require.NoError(t, err)

	completed, err := engine.CreateRequest(incharge, validForm())
	require.NoError(t, err)
	completed = approveAll(t, engine, completed, reliever, manager)

	all := []models.LeaveRequest{*rejected, *completed}
	for _, viewer := range []models.Identity{operator, teamLead, incharge, manager, reliever} {
		assert.Empty(t, PendingFor(all, viewer))
	}
}

func TestLedgerFilters(t *testing.T) {
	engine := newTestEngine(day(2024, 5, 1))
	a, err := engine.CreateRequest(operator, validForm())
	require.NoError(t, err)
	b, err := engine.CreateRequest(teamLead, validForm())
	require.NoError(t, err)
	b, err = engine.ApplyAction(b, reliever, models.ActionReject, "")
	require.NoError(t, err)

	all := []models.LeaveRequest{*a, *b}

	assert.Equal(t, []string{b.ID, a.ID}, ids(Ledger(all, LedgerFilter{})))
	assert.Equal(t, []string{a.ID}, ids(Ledger(all, LedgerFilter{Search: "JOHN"})))
	assert.Equal(t, []string{b.ID}, ids(Ledger(all, LedgerFilter{Search: b.ID[4:]})))
	assert.Equal(t, []string{b.ID}, ids(Ledger(all, LedgerFilter{Status: models.RequestStatusRejected})))
	assert.Empty(t, Ledger(all, LedgerFilter{Search: "john", Status: models.RequestStatusRejected}))
}

func TestMonthPeriod(t *testing.T) {
	p := MonthPeriod(time.Date(2024, 2, 17, 15, 4, 5, 0, time.UTC))

	assert.Equal(t, day(2024, 2, 1), p.Start)
	assert.Equal(t, day(2024, 3, 1), p.End)
	assert.True(t, p.Contains(p.Start))
	assert.False(t, p.Contains(p.End))
	assert.True(t, p.Contains(p.End.Add(-time.Nanosecond)))
}

func TestCompletedInPeriod(t *testing.T) {
	engine := newTestEngine(time.Date(2024, 5, 31, 23, 54, 0, 0, time.UTC))

	mine, err := engine.CreateRequest(incharge, validForm())
	require.NoError(t, err)
	mine = approveAll(t, engine, mine, reliever, manager)

	theirs, err := engine.CreateRequest(operator, validForm())
	require.NoError(t, err)
	theirs = approveAll(t, engine, theirs, reliever, teamLead, incharge, manager)

	open, err := engine.CreateRequest(operator, validForm())
	require.NoError(t, err)

	all := []models.LeaveRequest{*mine, *theirs, *open}

	may := MonthPeriod(day(2024, 5, 15))
	june := MonthPeriod(day(2024, 6, 15))

	// mine completes at 23:56 on May 31, theirs rolls over into June.
	assert.Equal(t, 1, CompletedInPeriod(all, manager, may, true))
	assert.Equal(t, 1, CompletedInPeriod(all, manager, june, true))
	assert.Equal(t, 1, CompletedInPeriod(all, incharge, may, false))
	assert.Equal(t, 0, CompletedInPeriod(all, incharge, june, false))
	assert.Equal(t, 1, CompletedInPeriod(all, operator, june, false))
	assert.Equal(t, 0, CompletedInPeriod(all, operator2, june, false))
}

func TestStatusCounts(t *testing.T) {
	all := []models.LeaveRequest{
		{Status: models.RequestStatusPending},
		{Status: models.RequestStatusPending},
		{Status: models.RequestStatusCompleted},
	}
	counts := StatusCounts(all)
	assert.Equal(t, 2, counts[models.RequestStatusPending])
	assert.Equal(t, 1, counts[models.RequestStatusCompleted])
	assert.Equal(t, 0, counts[models.RequestStatusRejected])
}

func TestRelieversExcludesViewer(t *testing.T) {
	users := []models.DirectoryUser{
		{ID: "u1", Name: "John Operator", Role: models.RoleOperator},
		{ID: "u5", Name: "Alex Reliever", Role: models.RoleReliever},
		{ID: "u6", Name: "Lisa Tech", Role: models.RoleOperator},
	}

	got := Relievers(users, operator)
	require.Len(t, got, 2)
	assert.Equal(t, "Alex Reliever", got[0].Name)
	assert.Equal(t, "Lisa Tech", got[1].Name)
}

func TestIsPrivileged(t *testing.T) {
	assert.True(t, IsPrivileged(manager))
	assert.False(t, IsPrivileged(incharge))
}
