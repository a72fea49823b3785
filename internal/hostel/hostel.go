// Package hostel implements the complaint, resource and resource-request
// lifecycles. Every operation validates its input, checks ownership and
// state, commits its writes, and only then dispatches notifications.
package hostel

import (
	"database/sql"
	"errors"
	"slices"
	"time"

	"github.com/smarthostel/smarthostel/internal/apperr"
	"github.com/smarthostel/smarthostel/internal/model"
	"github.com/smarthostel/smarthostel/internal/notify"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID    string
	Role  model.Role
	Block model.Block
	Room  string
}

// IsStaff reports whether the actor is a warden or admin.
func (a Actor) IsStaff() bool { return a.Role.IsStaff() }

// IsAdmin reports whether the actor is an admin.
func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// Governs reports whether the actor has staff authority over block. Admins
// govern every block, wardens only their own.
func (a Actor) Governs(block model.Block) bool {
	switch a.Role {
	case model.RoleAdmin:
		return true
	case model.RoleWarden:
		return a.Block != "" && a.Block == block
	}
	return false
}

// Service runs the lifecycle operations against one database.
type Service struct {
	DB     *sql.DB
	Notify *notify.Dispatcher
	Now    func() time.Time
}

// New returns a service using the wall clock.
func New(db *sql.DB, d *notify.Dispatcher) *Service {
	return &Service{DB: db, Notify: d, Now: time.Now}
}

func (s *Service) now() time.Time {
	return s.Now().UTC()
}

// fail classifies an error coming out of the store. Application errors pass
// through; anything else is a persistence failure.
func fail(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Unavailable(err)
}

// noticePriority maps a complaint priority onto the notification scale,
// which has no urgent level.
func noticePriority(p model.Priority) model.Priority {
	if p == model.PriorityUrgent {
		return model.PriorityHigh
	}
	return p
}

// without returns ids minus the excluded ones.
func without(ids []string, exclude ...string) []string {
	return slices.DeleteFunc(slices.Clone(ids), func(id string) bool {
		return slices.Contains(exclude, id)
	})
}

// Page bounds list results.
type Page struct {
	Limit  int
	Offset int
}

// Page size limits.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize applies the default and maximum page sizes.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	p.Limit = min(p.Limit, MaxPageSize)
	p.Offset = max(p.Offset, 0)
	return p
}
