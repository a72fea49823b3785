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

const complaintSelect = `SELECT c.id, c.title, c.description, c.category, c.priority, c.status,
	c.hostel_block, c.room_number, c.is_anonymous, c.tags, c.images,
	c.reported_by, r.name, c.assigned_to, COALESCE(a.name, ''),
	(SELECT COUNT(*) FROM complaint_upvotes v WHERE v.complaint_id = c.id),
	c.feedback_resolved, c.feedback_rating, c.feedback_comment, c.feedback_at,
	c.resolution_notes, c.estimated_resolution_time, c.actual_resolution_time,
	c.created_at, c.updated_at
	FROM complaints c
	JOIN users r ON r.id = c.reported_by
	LEFT JOIN users a ON a.id = c.assigned_to`

func scanComplaint(row interface{ Scan(...any) error }) (*model.Complaint, error) {
	c := &model.Complaint{}
	var (
		tags, images              string
		assignedTo                sql.NullString
		fbResolved, fbRating      sql.NullInt64
		fbComment                 string
		fbAt, estimated, resolved sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Category, &c.Priority, &c.Status,
		&c.HostelBlock, &c.RoomNumber, &c.IsAnonymous, &tags, &images,
		&c.ReportedBy, &c.ReporterName, &assignedTo, &c.AssigneeName,
		&c.UpvoteCount,
		&fbResolved, &fbRating, &fbComment, &fbAt,
		&c.ResolutionNotes, &estimated, &resolved,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.Tags = decodeList(tags)
	c.Images = decodeList(images)
	c.AssignedTo = assignedTo.String
	c.EstimatedResolutionTime = timePtr(estimated)
	c.ActualResolutionTime = timePtr(resolved)

	if fbResolved.Valid || fbRating.Valid || fbAt.Valid {
		fb := &model.Feedback{Comment: fbComment, SubmittedAt: timePtr(fbAt)}
		if fbResolved.Valid {
			v := fbResolved.Int64 != 0
			fb.Resolved = &v
		}
		if fbRating.Valid {
			fb.Rating = int(fbRating.Int64)
		}
		c.Feedback = fb
	}
	return c, nil
}

// CreateComplaint inserts a complaint. ID, timestamps and priority must be set by the caller.
func CreateComplaint(ctx context.Context, db DBTX, c *model.Complaint) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO complaints (id, title, description, category, priority, status, hostel_block, room_number,
		     is_anonymous, tags, images, reported_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Description, c.Category, c.Priority, c.Status, c.HostelBlock, c.RoomNumber,
		c.IsAnonymous, encodeList(c.Tags), encodeList(c.Images), c.ReportedBy, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating complaint: %w", err)
	}
	return nil
}

// GetComplaint returns a complaint by ID.
func GetComplaint(ctx context.Context, db DBTX, id string) (*model.Complaint, error) {
	c, err := scanComplaint(db.QueryRowContext(ctx, complaintSelect+` WHERE c.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting complaint: %w", err)
	}
	return c, nil
}

// ComplaintFilter narrows ListComplaints. Zero values do not filter.
type ComplaintFilter struct {
	Status     model.ComplaintStatus
	Category   model.ComplaintCategory
	Block      model.Block
	ReportedBy string
	AssignedTo string
	// VisibleTo limits results to complaints this user filed plus every
	// non-anonymous complaint.
	VisibleTo string
	Search    string
	Since     time.Time
	Until     time.Time
}

// ListComplaints returns complaints matching the filter, newest first.
func ListComplaints(ctx context.Context, db DBTX, f ComplaintFilter) ([]model.Complaint, error) {
	query := complaintSelect + ` WHERE 1=1`
	var args []any

	if f.Status != "" {
		query += ` AND c.status = ?`
		args = append(args, f.Status)
	}
	if f.Category != "" {
		query += ` AND c.category = ?`
		args = append(args, f.Category)
	}
	if f.Block != "" {
		query += ` AND c.hostel_block = ?`
		args = append(args, f.Block)
	}
	if f.ReportedBy != "" {
		query += ` AND c.reported_by = ?`
		args = append(args, f.ReportedBy)
	}
	if f.AssignedTo != "" {
		query += ` AND c.assigned_to = ?`
		args = append(args, f.AssignedTo)
	}
	if f.VisibleTo != "" {
		query += ` AND (c.reported_by = ? OR c.is_anonymous = 0)`
		args = append(args, f.VisibleTo)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		query += ` AND (c.title LIKE ? ESCAPE '\' OR c.description LIKE ? ESCAPE '\')`
		p := likePattern(s)
		args = append(args, p, p)
	}
	if !f.Since.IsZero() {
		query += ` AND c.created_at >= ?`
		args = append(args, f.Since.UTC())
	}
	if !f.Until.IsZero() {
		query += ` AND c.created_at < ?`
		args = append(args, f.Until.UTC())
	}
	query += ` ORDER BY c.created_at DESC, c.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing complaints: %w", err)
	}
	defer rows.Close()

	var complaints []model.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning complaint: %w", err)
		}
		complaints = append(complaints, *c)
	}
	return complaints, rows.Err()
}

// UpdateComplaintDetails rewrites the reporter-editable fields of a pending
// complaint. It reports false if the complaint is no longer pending.
func UpdateComplaintDetails(ctx context.Context, db DBTX, c *model.Complaint) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE complaints SET title = ?, description = ?, category = ?, priority = ?, room_number = ?,
		     is_anonymous = ?, tags = ?, images = ?, updated_at = ?
		 WHERE id = ? AND status = 'pending'`,
		c.Title, c.Description, c.Category, c.Priority, c.RoomNumber,
		c.IsAnonymous, encodeList(c.Tags), encodeList(c.Images), c.UpdatedAt, c.ID,
	)
	if err != nil {
		return false, fmt.Errorf("updating complaint: %w", err)
	}
	return affected(res)
}

// ComplaintChange describes a staff or reporter driven state change. Nil
// fields are left untouched.
type ComplaintChange struct {
	Status                  model.ComplaintStatus
	Priority                model.Priority
	AssignedTo              *string
	ResolutionNotes         *string
	EstimatedResolutionTime *time.Time
	ActualResolutionTime    *time.Time
	Feedback                *model.Feedback
	ClearFeedback           bool
	UpdatedAt               time.Time
}

// ChangeComplaint applies ch if the complaint is still in status from. It
// reports false when the status changed concurrently.
func ChangeComplaint(ctx context.Context, db DBTX, id string, from model.ComplaintStatus, ch ComplaintChange) (bool, error) {
	sets := []string{"status = ?", "priority = ?", "updated_at = ?"}
	args := []any{ch.Status, ch.Priority, ch.UpdatedAt.UTC()}

	if ch.AssignedTo != nil {
		sets = append(sets, "assigned_to = ?")
		args = append(args, nullString(*ch.AssignedTo))
	}
	if ch.ResolutionNotes != nil {
		sets = append(sets, "resolution_notes = ?")
		args = append(args, *ch.ResolutionNotes)
	}
	if ch.EstimatedResolutionTime != nil {
		sets = append(sets, "estimated_resolution_time = ?")
		args = append(args, nullTime(ch.EstimatedResolutionTime))
	}
	if ch.ActualResolutionTime != nil {
		sets = append(sets, "actual_resolution_time = ?")
		args = append(args, nullTime(ch.ActualResolutionTime))
	}
	switch {
	case ch.Feedback != nil:
		var resolved sql.NullInt64
		if ch.Feedback.Resolved != nil {
			resolved = sql.NullInt64{Valid: true}
			if *ch.Feedback.Resolved {
				resolved.Int64 = 1
			}
		}
		var rating sql.NullInt64
		if ch.Feedback.Rating > 0 {
			rating = sql.NullInt64{Int64: int64(ch.Feedback.Rating), Valid: true}
		}
		sets = append(sets, "feedback_resolved = ?", "feedback_rating = ?", "feedback_comment = ?", "feedback_at = ?")
		args = append(args, resolved, rating, ch.Feedback.Comment, nullTime(ch.Feedback.SubmittedAt))
	case ch.ClearFeedback:
		sets = append(sets, "feedback_resolved = NULL", "feedback_rating = NULL", "feedback_comment = ''", "feedback_at = NULL")
	}

	args = append(args, id, from)
	res, err := db.ExecContext(ctx,
		`UPDATE complaints SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status = ?`, args...)
	if err != nil {
		return false, fmt.Errorf("changing complaint: %w", err)
	}
	return affected(res)
}

// RefreshComplaintPriority stores a recomputed priority.
func RefreshComplaintPriority(ctx context.Context, db DBTX, id string, p model.Priority) error {
	_, err := db.ExecContext(ctx,
		`UPDATE complaints SET priority = ? WHERE id = ? AND priority != ?`, p, id, p)
	if err != nil {
		return fmt.Errorf("refreshing priority: %w", err)
	}
	return nil
}

// AddUpvote records a user's upvote. A repeat upvote fails with ErrAlreadyUpvoted.
func AddUpvote(ctx context.Context, db DBTX, complaintID, userID string, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO complaint_upvotes (complaint_id, user_id, created_at) VALUES (?, ?, ?)`,
		complaintID, userID, at.UTC(),
	)
	if isUniqueViolation(err) {
		return apperr.ErrAlreadyUpvoted
	}
	if err != nil {
		return fmt.Errorf("adding upvote: %w", err)
	}
	return nil
}

// RemoveUpvote deletes a user's upvote. It fails with ErrNotUpvoted if none exists.
func RemoveUpvote(ctx context.Context, db DBTX, complaintID, userID string) error {
	res, err := db.ExecContext(ctx,
		`DELETE FROM complaint_upvotes WHERE complaint_id = ? AND user_id = ?`,
		complaintID, userID,
	)
	if err != nil {
		return fmt.Errorf("removing upvote: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNotUpvoted
	}
	return nil
}

// HasUpvoted reports whether userID upvoted the complaint.
func HasUpvoted(ctx context.Context, db DBTX, complaintID, userID string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM complaint_upvotes WHERE complaint_id = ? AND user_id = ?`,
		complaintID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking upvote: %w", err)
	}
	return n > 0, nil
}
