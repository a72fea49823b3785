package model

import (
	"slices"
	"time"
)

// ResourceCategory classifies a shared item.
type ResourceCategory string

// Resource categories.
const (
	ResourceElectronics    ResourceCategory = "electronics"
	ResourceBooks          ResourceCategory = "books"
	ResourceSports         ResourceCategory = "sports"
	ResourceKitchen        ResourceCategory = "kitchen"
	ResourceTools          ResourceCategory = "tools"
	ResourceStudyMaterials ResourceCategory = "study-materials"
	ResourceOther          ResourceCategory = "other"
)

// ResourceCategories lists every resource category.
var ResourceCategories = []ResourceCategory{
	ResourceElectronics, ResourceBooks, ResourceSports, ResourceKitchen,
	ResourceTools, ResourceStudyMaterials, ResourceOther,
}

func (c ResourceCategory) Valid() bool {
	return slices.Contains(ResourceCategories, c)
}

// Condition is the physical state of a resource.
type Condition string

// Conditions.
const (
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
	ConditionPoor      Condition = "poor"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// Availability is the borrow state of a resource.
type Availability string

// Availability states.
const (
	Available   Availability = "available"
	Requested   Availability = "requested"
	Borrowed    Availability = "borrowed"
	Maintenance Availability = "maintenance"
	Unavailable Availability = "unavailable"
)

func (a Availability) Valid() bool {
	_, ok := availabilityTransitions[a]
	return ok
}

var availabilityTransitions = map[Availability][]Availability{
	Available:   {Requested, Borrowed, Maintenance, Unavailable},
	Requested:   {Requested, Available, Borrowed, Unavailable},
	Borrowed:    {Available},
	Maintenance: {Available, Unavailable},
	Unavailable: {Available},
}

// CanTransitionAvailability reports whether a resource may move between two
// availability states.
func CanTransitionAvailability(from, to Availability) bool {
	return slices.Contains(availabilityTransitions[from], to)
}

// BorrowRequestStatus is the state of a borrow request.
type BorrowRequestStatus string

// Borrow request statuses.
const (
	RequestPending  BorrowRequestStatus = "pending"
	RequestApproved BorrowRequestStatus = "approved"
	RequestRejected BorrowRequestStatus = "rejected"
)

// BorrowStatus is the state of a borrow history entry.
type BorrowStatus string

// Borrow statuses. Overdue is never stored: an active entry past its due
// date is reported as overdue.
const (
	BorrowActive   BorrowStatus = "active"
	BorrowReturned BorrowStatus = "returned"
	BorrowOverdue  BorrowStatus = "overdue"
)

// BorrowRequest is a non-owner's ask to borrow a resource.
type BorrowRequest struct {
	ID            string              `json:"id"`
	ResourceID    string              `json:"resource_id"`
	RequesterID   string              `json:"requester_id"`
	RequesterName string              `json:"requester_name,omitempty"`
	Status        BorrowRequestStatus `json:"status"`
	Message       string              `json:"message,omitempty"`
	RequestedAt   time.Time           `json:"requested_at"`
	DecisionAt    *time.Time          `json:"decision_at,omitempty"`
}

// BorrowRecord is one entry of a resource's borrow history.
type BorrowRecord struct {
	ID           string       `json:"id"`
	ResourceID   string       `json:"resource_id"`
	BorrowerID   string       `json:"borrower_id"`
	BorrowerName string       `json:"borrower_name,omitempty"`
	BorrowedAt   time.Time    `json:"borrowed_at"`
	DueDate      time.Time    `json:"due_date"`
	Status       BorrowStatus `json:"status"`
	ReturnedAt   *time.Time   `json:"returned_at,omitempty"`
	Rating       *int         `json:"rating,omitempty"`
	Feedback     string       `json:"feedback,omitempty"`
}

// Overdue reports whether an active entry is past its due date at now.
func (b *BorrowRecord) Overdue(now time.Time) bool {
	return b.Status == BorrowActive && now.After(b.DueDate)
}

// Resource is an item a resident lends to others.
type Resource struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Description       string           `json:"description"`
	Category          ResourceCategory `json:"category"`
	Condition         Condition        `json:"condition"`
	Availability      Availability     `json:"availability"`
	HostelBlock       Block            `json:"hostel_block"`
	RoomNumber        string           `json:"room_number"`
	MaxBorrowDuration int              `json:"max_borrow_duration"`
	DepositRequired   bool             `json:"deposit_required"`
	DepositAmount     float64          `json:"deposit_amount"`
	BorrowingRules    string           `json:"borrowing_rules,omitempty"`
	Tags              []string         `json:"tags"`
	Images            []string         `json:"images"`
	IsPublic          bool             `json:"is_public"`
	OwnerID           string           `json:"owner_id"`
	OwnerName         string           `json:"owner_name,omitempty"`
	CurrentBorrower   string           `json:"current_borrower,omitempty"`
	TotalBorrows      int              `json:"total_borrows"`
	AverageRating     float64          `json:"average_rating"`
	ViewCount         int              `json:"view_count"`
	WishlistCount     int              `json:"wishlist_count"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`

	// Populated on single-resource reads.
	BorrowRequests []BorrowRequest `json:"borrow_requests,omitempty"`
	BorrowHistory  []BorrowRecord  `json:"borrow_history,omitempty"`
	Wishlisted     bool            `json:"wishlisted,omitempty"`
}
