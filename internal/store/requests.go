package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/smarthostel/smarthostel/internal/model"
)

// CreateResourceRequest inserts an open resource request.
func CreateResourceRequest(ctx context.Context, db DBTX, rr *model.ResourceRequest) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO resource_requests (id, title, description, category, requested_by, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rr.ID, rr.Title, rr.Description, rr.Category, rr.RequestedBy, rr.Status, rr.CreatedAt, rr.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating resource request: %w", err)
	}
	return nil
}

const resourceRequestSelect = `SELECT q.id, q.title, q.description, q.category, q.requested_by, u.name,
	q.status, q.fulfilled_by, q.fulfilled_resource, q.fulfilled_at, q.created_at, q.updated_at
	FROM resource_requests q
	JOIN users u ON u.id = q.requested_by`

func scanResourceRequest(row interface{ Scan(...any) error }) (*model.ResourceRequest, error) {
	rr := &model.ResourceRequest{}
	var by, res sql.NullString
	var at sql.NullTime
	err := row.Scan(&rr.ID, &rr.Title, &rr.Description, &rr.Category, &rr.RequestedBy, &rr.RequesterName,
		&rr.Status, &by, &res, &at, &rr.CreatedAt, &rr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rr.FulfilledBy = by.String
	rr.FulfilledResource = res.String
	rr.FulfilledAt = timePtr(at)
	return rr, nil
}

// GetResourceRequest returns a resource request by ID.
func GetResourceRequest(ctx context.Context, db DBTX, id string) (*model.ResourceRequest, error) {
	rr, err := scanResourceRequest(db.QueryRowContext(ctx, resourceRequestSelect+` WHERE q.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting resource request: %w", err)
	}
	return rr, nil
}

// ResourceRequestFilter narrows ListResourceRequests.
type ResourceRequestFilter struct {
	Status      model.RequestStatus
	Category    model.ResourceCategory
	RequestedBy string
	Search      string
	Page        Page
}

// ListResourceRequests returns matching requests, newest first, and the total before paging.
func ListResourceRequests(ctx context.Context, db DBTX, f ResourceRequestFilter) ([]model.ResourceRequest, int, error) {
	where := ` WHERE 1=1`
	var args []any

	if f.Status != "" {
		where += ` AND q.status = ?`
		args = append(args, f.Status)
	}
	if f.Category != "" {
		where += ` AND q.category = ?`
		args = append(args, f.Category)
	}
	if f.RequestedBy != "" {
		where += ` AND q.requested_by = ?`
		args = append(args, f.RequestedBy)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where += ` AND (q.title LIKE ? ESCAPE '\' OR q.description LIKE ? ESCAPE '\')`
		p := likePattern(s)
		args = append(args, p, p)
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resource_requests q`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting resource requests: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		resourceRequestSelect+where+` ORDER BY q.created_at DESC, q.id`+f.Page.clause(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing resource requests: %w", err)
	}
	defer rows.Close()

	var list []model.ResourceRequest
	for rows.Next() {
		rr, err := scanResourceRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning resource request: %w", err)
		}
		list = append(list, *rr)
	}
	return list, total, rows.Err()
}

// CancelResourceRequest cancels an open request. It reports false if the
// request was not open.
func CancelResourceRequest(ctx context.Context, db DBTX, id string, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE resource_requests SET status = 'cancelled', updated_at = ? WHERE id = ? AND status = 'open'`,
		at.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("cancelling resource request: %w", err)
	}
	return affected(res)
}

// FulfillResourceRequest links an open request to the resource that
// fulfilled it. It reports false if the request was not open.
func FulfillResourceRequest(ctx context.Context, db DBTX, id, fulfillerID, resourceID string, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE resource_requests
		 SET status = 'fulfilled', fulfilled_by = ?, fulfilled_resource = ?, fulfilled_at = ?, updated_at = ?
		 WHERE id = ? AND status = 'open'`,
		fulfillerID, resourceID, at.UTC(), at.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("fulfilling resource request: %w", err)
	}
	return affected(res)
}
