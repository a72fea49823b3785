package model

import (
	"regexp"
	"slices"
	"time"
)

// ComplaintCategory classifies a maintenance complaint.
type ComplaintCategory string

// Complaint categories.
const (
	CategoryElectrical  ComplaintCategory = "electrical"
	CategoryPlumbing    ComplaintCategory = "plumbing"
	CategoryFurniture   ComplaintCategory = "furniture"
	CategoryCleanliness ComplaintCategory = "cleanliness"
	CategoryNoise       ComplaintCategory = "noise"
	CategorySecurity    ComplaintCategory = "security"
	CategoryOther       ComplaintCategory = "other"
)

// ComplaintCategories lists every complaint category.
var ComplaintCategories = []ComplaintCategory{
	CategoryElectrical, CategoryPlumbing, CategoryFurniture, CategoryCleanliness,
	CategoryNoise, CategorySecurity, CategoryOther,
}

func (c ComplaintCategory) Valid() bool {
	return slices.Contains(ComplaintCategories, c)
}

// ComplaintStatus is the state of a complaint.
type ComplaintStatus string

// Complaint statuses.
const (
	StatusPending          ComplaintStatus = "pending"
	StatusInProgress       ComplaintStatus = "in-progress"
	StatusAwaitingApproval ComplaintStatus = "awaiting-approval"
	StatusResolved         ComplaintStatus = "resolved"
	StatusRejected         ComplaintStatus = "rejected"
)

// ComplaintStatuses lists every complaint status.
var ComplaintStatuses = []ComplaintStatus{
	StatusPending, StatusInProgress, StatusAwaitingApproval, StatusResolved, StatusRejected,
}

func (s ComplaintStatus) Valid() bool {
	return slices.Contains(ComplaintStatuses, s)
}

// Terminal reports whether no further status change is allowed.
func (s ComplaintStatus) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

var complaintTransitions = map[ComplaintStatus][]ComplaintStatus{
	StatusPending:          {StatusInProgress, StatusAwaitingApproval, StatusResolved, StatusRejected},
	StatusInProgress:       {StatusAwaitingApproval, StatusResolved, StatusRejected},
	StatusAwaitingApproval: {StatusInProgress, StatusResolved, StatusRejected},
}

// CanTransitionComplaint reports whether a complaint may move from one status
// to another. Staying in a non-terminal status is allowed so that staff can
// reassign or annotate without changing state.
func CanTransitionComplaint(from, to ComplaintStatus) bool {
	if from == to {
		return !from.Terminal()
	}
	return slices.Contains(complaintTransitions[from], to)
}

// Feedback is the reporter's verdict on a resolution.
type Feedback struct {
	Resolved    *bool      `json:"resolved,omitempty"`
	Rating      int        `json:"rating,omitempty"`
	Comment     string     `json:"comment,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

// AnonymousReporter replaces the reporter of an anonymous complaint for
// everyone but the reporter.
const AnonymousReporter = "Anonymous"

// Complaint is a maintenance issue filed by a resident.
type Complaint struct {
	ID                      string            `json:"id"`
	Title                   string            `json:"title"`
	Description             string            `json:"description"`
	Category                ComplaintCategory `json:"category"`
	Priority                Priority          `json:"priority"`
	Status                  ComplaintStatus   `json:"status"`
	HostelBlock             Block             `json:"hostel_block"`
	RoomNumber              string            `json:"room_number"`
	IsAnonymous             bool              `json:"is_anonymous"`
	Tags                    []string          `json:"tags"`
	Images                  []string          `json:"images"`
	ReportedBy              string            `json:"reported_by"`
	ReporterName            string            `json:"reporter_name"`
	AssignedTo              string            `json:"assigned_to,omitempty"`
	AssigneeName            string            `json:"assignee_name,omitempty"`
	UpvoteCount             int               `json:"upvote_count"`
	Upvoted                 bool              `json:"upvoted,omitempty"` // set on single reads for the viewer
	Feedback                *Feedback         `json:"feedback,omitempty"`
	ResolutionNotes         string            `json:"resolution_notes,omitempty"`
	EstimatedResolutionTime *time.Time        `json:"estimated_resolution_time,omitempty"`
	ActualResolutionTime    *time.Time        `json:"actual_resolution_time,omitempty"`
	CreatedAt               time.Time         `json:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at"`
}

// Mask hides the reporter of an anonymous complaint from viewers other
// than the reporter.
func (c *Complaint) Mask(viewerID string) {
	if !c.IsAnonymous || c.ReportedBy == viewerID {
		return
	}
	c.ReportedBy = ""
	c.ReporterName = AnonymousReporter
}

var imageURLPattern = regexp.MustCompile(`(?i)^(https?://.+|/uploads/.+)\.(jpg|jpeg|png|gif|webp)$`)

// ValidImageURL reports whether u is an http(s) or local upload URL with an
// image extension.
func ValidImageURL(u string) bool {
	return imageURLPattern.MatchString(u)
}
