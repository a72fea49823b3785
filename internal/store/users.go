package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/smarthostel/smarthostel/internal/apperr"
	"github.com/smarthostel/smarthostel/internal/model"
)

const userColumns = `id, name, email, password_hash, role, hostel_block, room_number, phone,
	reputation, total_borrowed, total_lent, last_login, created_at, deleted_at`

// CreateUser creates a new user. The email is stored lower-cased.
func CreateUser(ctx context.Context, db DBTX, u *model.User) (*model.User, error) {
	if u.ID == "" {
		u.ID = NewID()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = model.RoleStudent
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.Reputation = model.DefaultReputation

	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, role, hostel_block, room_number, phone, reputation, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.HostelBlock, u.RoomNumber, u.Phone, u.Reputation, u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, apperr.Conflict("email %s is already registered", u.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return GetUser(ctx, db, u.ID)
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	u := &model.User{}
	var lastLogin, deletedAt sql.NullTime
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.HostelBlock, &u.RoomNumber, &u.Phone,
		&u.Reputation, &u.TotalBorrowed, &u.TotalLent, &lastLogin, &u.CreatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	u.LastLogin = timePtr(lastLogin)
	u.DeletedAt = timePtr(deletedAt)
	return u, nil
}

// GetUser returns a user by ID, including deactivated ones.
func GetUser(ctx context.Context, db DBTX, id string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns a user by email (including deactivated for auth checks).
func GetUserByEmail(ctx context.Context, db DBTX, email string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// UserFilter narrows ListUsers.
type UserFilter struct {
	Role            model.Role
	Block           model.Block
	IncludeInactive bool
}

// ListUsers returns users matching the filter, oldest first.
func ListUsers(ctx context.Context, db DBTX, f UserFilter) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1=1`
	var args []any

	if !f.IncludeInactive {
		query += ` AND deleted_at IS NULL`
	}
	if f.Role != "" {
		query += ` AND role = ?`
		args = append(args, f.Role)
	}
	if f.Block != "" {
		query += ` AND hostel_block = ?`
		args = append(args, f.Block)
	}
	query += ` ORDER BY created_at, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// ListStaffIDs returns active admins plus active wardens. A non-empty block
// limits wardens to that block.
func ListStaffIDs(ctx context.Context, db DBTX, block model.Block) ([]string, error) {
	query := `SELECT id FROM users WHERE deleted_at IS NULL AND (role = 'admin' OR (role = 'warden'`
	var args []any
	if block != "" {
		query += ` AND hostel_block = ?`
		args = append(args, block)
	}
	query += `)) ORDER BY id`
	return queryIDs(ctx, db, "listing staff", query, args...)
}

// ListActiveUserIDs returns the ids of active users, optionally limited to a block.
func ListActiveUserIDs(ctx context.Context, db DBTX, block model.Block) ([]string, error) {
	query := `SELECT id FROM users WHERE deleted_at IS NULL`
	var args []any
	if block != "" {
		query += ` AND hostel_block = ?`
		args = append(args, block)
	}
	query += ` ORDER BY id`
	return queryIDs(ctx, db, "listing active users", query, args...)
}

func queryIDs(ctx context.Context, db DBTX, what, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", what, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateProfile updates the self-service profile fields of an active user.
func UpdateProfile(ctx context.Context, db DBTX, id, name, phone string, block model.Block, room string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET name = ?, phone = ?, hostel_block = ?, room_number = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		name, phone, block, room, id,
	)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return nil
}

// UpdateUser updates a user's role and location.
func UpdateUser(ctx context.Context, db DBTX, id string, role model.Role, block model.Block, room string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET role = ?, hostel_block = ?, room_number = ? WHERE id = ? AND deleted_at IS NULL`,
		role, block, room, id,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db DBTX, id, passwordHash string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// RecordLogin stamps the user's last login time.
func RecordLogin(ctx context.Context, db DBTX, id string, at time.Time) error {
	_, err := db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("recording login: %w", err)
	}
	return nil
}

// DeactivateUser soft-deletes a user.
func DeactivateUser(ctx context.Context, db DBTX, id string, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deactivating user: %w", err)
	}
	return nil
}

// AddLent adjusts a user's lent counter by delta, never below zero.
func AddLent(ctx context.Context, db DBTX, id string, delta int) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET total_lent = MAX(total_lent + ?, 0) WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("updating lent count: %w", err)
	}
	return nil
}

// AddBorrowed adjusts a user's borrowed counter by delta, never below zero.
func AddBorrowed(ctx context.Context, db DBTX, id string, delta int) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET total_borrowed = MAX(total_borrowed + ?, 0) WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("updating borrowed count: %w", err)
	}
	return nil
}
