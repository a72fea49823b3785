package model

import "time"

// NotificationType groups notifications by source.
type NotificationType string

// Notification types.
const (
	NotifyComplaint NotificationType = "complaint"
	NotifyResource  NotificationType = "resource"
	NotifySystem    NotificationType = "system"
	NotifyReminder  NotificationType = "reminder"
	NotifyWarning   NotificationType = "warning"
	NotifySuccess   NotificationType = "success"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotifyComplaint, NotifyResource, NotifySystem, NotifyReminder, NotifyWarning, NotifySuccess:
		return true
	}
	return false
}

// NotificationCategory describes what happened.
type NotificationCategory string

// Notification categories.
const (
	NoticeNew             NotificationCategory = "new"
	NoticeUpdate          NotificationCategory = "update"
	NoticeResolved        NotificationCategory = "resolved"
	NoticeBorrowed        NotificationCategory = "borrowed"
	NoticeReturned        NotificationCategory = "returned"
	NoticeOverdue         NotificationCategory = "overdue"
	NoticeMaintenance     NotificationCategory = "maintenance"
	NoticeOther           NotificationCategory = "other"
	NoticeBorrowRequest   NotificationCategory = "borrow-request"
	NoticeBorrowApproval  NotificationCategory = "borrow-approval"
	NoticeBorrowRejection NotificationCategory = "borrow-rejection"
)

func (c NotificationCategory) Valid() bool {
	switch c {
	case NoticeNew, NoticeUpdate, NoticeResolved, NoticeBorrowed, NoticeReturned, NoticeOverdue,
		NoticeMaintenance, NoticeOther, NoticeBorrowRequest, NoticeBorrowApproval, NoticeBorrowRejection:
		return true
	}
	return false
}

// EntityType names the kind of entity a notification points at.
type EntityType string

// Entity types.
const (
	EntityComplaint EntityType = "complaint"
	EntityResource  EntityType = "resource"
	EntityUser      EntityType = "user"
)

// RelatedEntity links a notification to the entity it is about.
type RelatedEntity struct {
	Type EntityType `json:"type"`
	ID   string     `json:"id"`
}

// Notification is a message delivered to one user.
type Notification struct {
	ID            string               `json:"id"`
	Recipient     string               `json:"recipient"`
	Sender        string               `json:"sender,omitempty"`
	SenderName    string               `json:"sender_name,omitempty"`
	Title         string               `json:"title"`
	Message       string               `json:"message"`
	Type          NotificationType     `json:"type"`
	Category      NotificationCategory `json:"category"`
	Priority      Priority             `json:"priority"`
	RelatedEntity *RelatedEntity       `json:"related_entity,omitempty"`
	IsRead        bool                 `json:"is_read"`
	ReadAt        *time.Time           `json:"read_at,omitempty"`
	ActionURL     string               `json:"action_url,omitempty"`
	ActionText    string               `json:"action_text,omitempty"`
	Metadata      map[string]string    `json:"metadata,omitempty"`
	ExpiresAt     *time.Time           `json:"expires_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}
