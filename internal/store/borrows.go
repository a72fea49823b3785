package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/smarthostel/smarthostel/internal/apperr"
	"github.com/smarthostel/smarthostel/internal/model"
)

// CreateBorrowRequest inserts a pending request. A second pending request by
// the same requester fails with ErrDuplicateRequest.
func CreateBorrowRequest(ctx context.Context, db DBTX, req *model.BorrowRequest) error {
	if req.ID == "" {
		req.ID = NewID()
	}
	req.Status = model.RequestPending
	_, err := db.ExecContext(ctx,
		`INSERT INTO borrow_requests (id, resource_id, requester_id, status, message, requested_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		req.ID, req.ResourceID, req.RequesterID, req.Status, req.Message, req.RequestedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return apperr.ErrDuplicateRequest
	}
	if err != nil {
		return fmt.Errorf("creating borrow request: %w", err)
	}
	return nil
}

const borrowRequestSelect = `SELECT q.id, q.resource_id, q.requester_id, u.name, q.status, q.message,
	q.requested_at, q.decision_at
	FROM borrow_requests q
	JOIN users u ON u.id = q.requester_id`

func scanBorrowRequest(row interface{ Scan(...any) error }) (*model.BorrowRequest, error) {
	q := &model.BorrowRequest{}
	var decided sql.NullTime
	err := row.Scan(&q.ID, &q.ResourceID, &q.RequesterID, &q.RequesterName, &q.Status, &q.Message,
		&q.RequestedAt, &decided)
	if err != nil {
		return nil, err
	}
	q.DecisionAt = timePtr(decided)
	return q, nil
}

// GetBorrowRequest returns a request of the given resource.
func GetBorrowRequest(ctx context.Context, db DBTX, resourceID, requestID string) (*model.BorrowRequest, error) {
	q, err := scanBorrowRequest(db.QueryRowContext(ctx,
		borrowRequestSelect+` WHERE q.id = ? AND q.resource_id = ?`, requestID, resourceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting borrow request: %w", err)
	}
	return q, nil
}

// ListBorrowRequests returns a resource's requests in the order they were made.
func ListBorrowRequests(ctx context.Context, db DBTX, resourceID string) ([]model.BorrowRequest, error) {
	rows, err := db.QueryContext(ctx,
		borrowRequestSelect+` WHERE q.resource_id = ? ORDER BY q.requested_at, q.id`, resourceID)
	if err != nil {
		return nil, fmt.Errorf("listing borrow requests: %w", err)
	}
	defer rows.Close()

	var list []model.BorrowRequest
	for rows.Next() {
		q, err := scanBorrowRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning borrow request: %w", err)
		}
		list = append(list, *q)
	}
	return list, rows.Err()
}

// DecideBorrowRequest approves or rejects a pending request. It reports false
// if the request was no longer pending.
func DecideBorrowRequest(ctx context.Context, db DBTX, resourceID, requestID string, status model.BorrowRequestStatus, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE borrow_requests SET status = ?, decision_at = ?
		 WHERE id = ? AND resource_id = ? AND status = 'pending'`,
		status, at.UTC(), requestID, resourceID,
	)
	if err != nil {
		return false, fmt.Errorf("deciding borrow request: %w", err)
	}
	return affected(res)
}

// RejectPendingRequests rejects every pending request on a resource except
// exceptID and returns the rejected requesters.
func RejectPendingRequests(ctx context.Context, db DBTX, resourceID, exceptID string, at time.Time) ([]string, error) {
	return queryIDs(ctx, db, "rejecting pending requests",
		`UPDATE borrow_requests SET status = 'rejected', decision_at = ?
		 WHERE resource_id = ? AND status = 'pending' AND id != ?
		 RETURNING requester_id`,
		at.UTC(), resourceID, exceptID,
	)
}

// CountPendingRequests returns the number of pending requests on a resource.
func CountPendingRequests(ctx context.Context, db DBTX, resourceID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrow_requests WHERE resource_id = ? AND status = 'pending'`, resourceID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting pending requests: %w", err)
	}
	return n, nil
}

// CreateBorrowRecord appends an active history entry. A second active entry
// for the same resource fails with ErrConcurrentUpdate.
func CreateBorrowRecord(ctx context.Context, db DBTX, rec *model.BorrowRecord) error {
	if rec.ID == "" {
		rec.ID = NewID()
	}
	rec.Status = model.BorrowActive
	_, err := db.ExecContext(ctx,
		`INSERT INTO borrow_history (id, resource_id, borrower_id, borrowed_at, due_date, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ResourceID, rec.BorrowerID, rec.BorrowedAt.UTC(), rec.DueDate.UTC(), rec.Status,
	)
	if isUniqueViolation(err) {
		return apperr.ErrConcurrentUpdate
	}
	if err != nil {
		return fmt.Errorf("recording borrow: %w", err)
	}
	return nil
}

// CloseActiveBorrow marks the active history entry returned and returns the
// borrower, or "" if no entry was active.
func CloseActiveBorrow(ctx context.Context, db DBTX, resourceID string, at time.Time, rating *int, feedback string) (string, error) {
	var r sql.NullInt64
	if rating != nil {
		r = sql.NullInt64{Int64: int64(*rating), Valid: true}
	}
	ids, err := queryIDs(ctx, db, "closing borrow",
		`UPDATE borrow_history SET status = 'returned', returned_at = ?, rating = ?, feedback = ?
		 WHERE resource_id = ? AND status = 'active'
		 RETURNING borrower_id`,
		at.UTC(), r, feedback, resourceID,
	)
	if err != nil || len(ids) == 0 {
		return "", err
	}
	return ids[0], nil
}

const borrowRecordSelect = `SELECT h.id, h.resource_id, h.borrower_id, u.name, h.borrowed_at, h.due_date,
	h.status, h.returned_at, h.rating, h.feedback
	FROM borrow_history h
	JOIN users u ON u.id = h.borrower_id`

// ListBorrowHistory returns a resource's history, oldest first.
func ListBorrowHistory(ctx context.Context, db DBTX, resourceID string) ([]model.BorrowRecord, error) {
	rows, err := db.QueryContext(ctx,
		borrowRecordSelect+` WHERE h.resource_id = ? ORDER BY h.borrowed_at, h.id`, resourceID)
	if err != nil {
		return nil, fmt.Errorf("listing borrow history: %w", err)
	}
	defer rows.Close()

	var list []model.BorrowRecord
	for rows.Next() {
		var rec model.BorrowRecord
		var returned sql.NullTime
		var rating sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.ResourceID, &rec.BorrowerID, &rec.BorrowerName, &rec.BorrowedAt,
			&rec.DueDate, &rec.Status, &returned, &rating, &rec.Feedback); err != nil {
			return nil, fmt.Errorf("scanning borrow record: %w", err)
		}
		rec.ReturnedAt = timePtr(returned)
		if rating.Valid {
			v := int(rating.Int64)
			rec.Rating = &v
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// CountActiveBorrows returns how many active history entries a resource has.
func CountActiveBorrows(ctx context.Context, db DBTX, resourceID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrow_history WHERE resource_id = ? AND status = 'active'`, resourceID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting active borrows: %w", err)
	}
	return n, nil
}
