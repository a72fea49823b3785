package model

import "time"

// RequestStatus is the state of a resource request.
type RequestStatus string

// Resource request statuses.
const (
	RequestOpen      RequestStatus = "open"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestCancelled RequestStatus = "cancelled"
)

func (s RequestStatus) Valid() bool {
	return s == RequestOpen || s == RequestFulfilled || s == RequestCancelled
}

// ResourceRequest is a standing "does anyone have X" post.
type ResourceRequest struct {
	ID                string           `json:"id"`
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	Category          ResourceCategory `json:"category"`
	RequestedBy       string           `json:"requested_by"`
	RequesterName     string           `json:"requester_name,omitempty"`
	Status            RequestStatus    `json:"status"`
	FulfilledBy       string           `json:"fulfilled_by,omitempty"`
	FulfilledResource string           `json:"fulfilled_resource,omitempty"`
	FulfilledAt       *time.Time       `json:"fulfilled_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}
