package model

import "time"

// Lifecycle defaults.
const (
	DefaultMaxBorrowDays     = 7
	MaxBorrowDays            = 30
	NotificationExpiry       = 30 * 24 * time.Hour
	DuplicateComplaintWindow = 12 * time.Hour
)
