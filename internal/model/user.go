package model

import (
	"regexp"
	"time"
)

// Role is a user's access level.
type Role string

// Roles.
const (
	RoleStudent Role = "student"
	RoleWarden  Role = "warden"
	RoleAdmin   Role = "admin"
)

var roleLevels = map[Role]int{
	RoleStudent: 1,
	RoleWarden:  2,
	RoleAdmin:   3,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// IsStaff reports whether r is warden or admin.
func (r Role) IsStaff() bool {
	return r == RoleWarden || r == RoleAdmin
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum Role) bool {
	return roleLevels[role] >= roleLevels[minimum]
}

// Block is a hostel block.
type Block string

// Hostel blocks.
const (
	BlockA Block = "A"
	BlockB Block = "B"
	BlockC Block = "C"
	BlockD Block = "D"
)

// Valid reports whether b is one of the four blocks.
func (b Block) Valid() bool {
	switch b {
	case BlockA, BlockB, BlockC, BlockD:
		return true
	}
	return false
}

var (
	roomPattern  = regexp.MustCompile(`^[A-Z]\d{3}$`)
	phonePattern = regexp.MustCompile(`^[6-9]\d{9}$`)
)

// ValidRoom reports whether room is an uppercase letter followed by three digits.
func ValidRoom(room string) bool {
	return roomPattern.MatchString(room)
}

// ValidPhone reports whether phone is a 10-digit number starting with 6-9.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// DefaultReputation is the reputation of a new account.
const DefaultReputation = 5

// User is a hostel resident or staff member.
type User struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	Role          Role       `json:"role"`
	HostelBlock   Block      `json:"hostel_block,omitempty"`
	RoomNumber    string     `json:"room_number,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	Reputation    int        `json:"reputation"`
	TotalBorrowed int        `json:"total_borrowed"`
	TotalLent     int        `json:"total_lent"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// Active reports whether the account has not been deactivated.
func (u *User) Active() bool {
	return u.DeletedAt == nil
}

// HasLocation reports whether the user's profile carries a usable block and room.
func (u *User) HasLocation() bool {
	return u.HostelBlock.Valid() && ValidRoom(u.RoomNumber)
}
