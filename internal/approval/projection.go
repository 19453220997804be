package approval

import (
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/leave-approval-api/internal/models"
)

// IsPrivileged reports whether the viewer may see the full ledger.
func IsPrivileged(viewer models.Identity) bool {
	return viewer.Role == models.RoleProjectManager
}

// Mine returns the requests submitted by the viewer, newest first.
func Mine(requests []models.LeaveRequest, viewer models.Identity) []models.LeaveRequest {
	return filter(requests, func(r *models.LeaveRequest) bool {
		return r.RequesterID == viewer.ID
	})
}

// PendingFor returns exactly the requests the viewer may act on next.
func PendingFor(requests []models.LeaveRequest, viewer models.Identity) []models.LeaveRequest {
	return filter(requests, func(r *models.LeaveRequest) bool {
		return Actionable(r) && CanAct(r, viewer)
	})
}

// LedgerFilter narrows the privileged ledger view.
type LedgerFilter struct {
	Search string
	Status models.RequestStatus
}

// Ledger filters the full collection by case-insensitive substring on requester name or id
// and by exact status when set.
func Ledger(requests []models.LeaveRequest, f LedgerFilter) []models.LeaveRequest {
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	return filter(requests, func(r *models.LeaveRequest) bool {
		if f.Status != "" && r.Status != f.Status {
			return false
		}
		if needle == "" {
			return true
		}
		return strings.Contains(strings.ToLower(r.RequesterName), needle) ||
			strings.Contains(strings.ToLower(r.ID), needle)
	})
}

// Period is a half-open time interval [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// MonthPeriod returns the calendar month containing t, in t's location.
func MonthPeriod(t time.Time) Period {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// Contains reports whether ts falls inside the period.
func (p Period) Contains(ts time.Time) bool {
	return !ts.Before(p.Start) && ts.Before(p.End)
}

// CompletedInPeriod counts completed requests whose final step was stamped inside the period.
// Privileged viewers count every request, others only their own.
func CompletedInPeriod(requests []models.LeaveRequest, viewer models.Identity, period Period, privileged bool) int {
	count := 0
	for i := range requests {
		r := &requests[i]
		if r.Status != models.RequestStatusCompleted {
			continue
		}
		if !privileged && r.RequesterID != viewer.ID {
			continue
		}
		final := r.FinalStep()
		if final == nil || final.Timestamp == nil {
			continue
		}
		if period.Contains(*final.Timestamp) {
			count++
		}
	}
	return count
}

// StatusCounts tallies requests per status.
func StatusCounts(requests []models.LeaveRequest) map[models.RequestStatus]int {
	counts := map[models.RequestStatus]int{
		models.RequestStatusPending:   0,
		models.RequestStatusApproved:  0,
		models.RequestStatusCompleted: 0,
		models.RequestStatusRejected:  0,
	}
	for _, r := range requests {
		counts[r.Status]++
	}
	return counts
}

// Relievers lists directory users the viewer may nominate as their reliever.
func Relievers(users []models.DirectoryUser, viewer models.Identity) []models.DirectoryUser {
	out := make([]models.DirectoryUser, 0, len(users))
	for _, u := range users {
		if u.ID == viewer.ID {
			continue
		}
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func filter(requests []models.LeaveRequest, keep func(*models.LeaveRequest) bool) []models.LeaveRequest {
	out := make([]models.LeaveRequest, 0)
	for i := range requests {
		if keep(&requests[i]) {
			out = append(out, requests[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out
}
