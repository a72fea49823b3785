package model

import (
	"slices"
	"time"
)

// Priority is the derived urgency of a complaint (and the display priority
// of a notification).
type Priority string

// Priorities, lowest first.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityOrder = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func (p Priority) Valid() bool {
	return slices.Contains(priorityOrder, p)
}

// Rank orders priorities; higher is more urgent. Unknown values rank -1.
func (p Priority) Rank() int {
	return slices.Index(priorityOrder, p)
}

// Escalation thresholds measured from complaint creation.
const (
	EscalateToHighAfter   = 48 * time.Hour
	EscalateToUrgentAfter = 72 * time.Hour
)

// BasePriority is the severity a category carries before any age escalation.
func BasePriority(category ComplaintCategory) Priority {
	switch category {
	case CategoryElectrical, CategoryPlumbing, CategorySecurity:
		return PriorityHigh
	}
	return PriorityMedium
}

// ComputePriority derives a complaint's priority at time now. Resolved
// complaints keep their base severity. Open ones older than 72h are urgent,
// and medium ones older than 48h become high.
func ComputePriority(category ComplaintCategory, createdAt time.Time, status ComplaintStatus, now time.Time) Priority {
	base := BasePriority(category)
	if status == StatusResolved {
		return base
	}

	age := now.Sub(createdAt)
	switch {
	case age > EscalateToUrgentAfter:
		return PriorityUrgent
	case age > EscalateToHighAfter && base == PriorityMedium:
		return PriorityHigh
	}
	return base
}
