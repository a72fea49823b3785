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

const resourceSelect = `SELECT r.id, r.name, r.description, r.category, r.condition, r.availability,
	r.hostel_block, r.room_number, r.max_borrow_duration, r.deposit_required, r.deposit_amount,
	r.borrowing_rules, r.tags, r.images, r.is_public, r.owner_id, o.name, r.current_borrower,
	r.total_borrows, r.average_rating, r.view_count,
	(SELECT COUNT(*) FROM resource_wishlist w WHERE w.resource_id = r.id),
	r.created_at, r.updated_at
	FROM resources r
	JOIN users o ON o.id = r.owner_id`

func scanResource(row interface{ Scan(...any) error }) (*model.Resource, error) {
	r := &model.Resource{}
	var tags, images string
	var borrower sql.NullString
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Category, &r.Condition, &r.Availability,
		&r.HostelBlock, &r.RoomNumber, &r.MaxBorrowDuration, &r.DepositRequired, &r.DepositAmount,
		&r.BorrowingRules, &tags, &images, &r.IsPublic, &r.OwnerID, &r.OwnerName, &borrower,
		&r.TotalBorrows, &r.AverageRating, &r.ViewCount, &r.WishlistCount,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Tags = decodeList(tags)
	r.Images = decodeList(images)
	r.CurrentBorrower = borrower.String
	return r, nil
}

// CreateResource inserts a resource. ID and timestamps must be set by the
// caller. A name the owner already uses (case-insensitively) fails with
// ErrDuplicateName.
func CreateResource(ctx context.Context, db DBTX, r *model.Resource) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO resources (id, name, description, category, condition, availability, hostel_block,
		     room_number, max_borrow_duration, deposit_required, deposit_amount, borrowing_rules, tags, images,
		     is_public, owner_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Description, r.Category, r.Condition, r.Availability, r.HostelBlock,
		r.RoomNumber, r.MaxBorrowDuration, r.DepositRequired, r.DepositAmount, r.BorrowingRules,
		encodeList(r.Tags), encodeList(r.Images), r.IsPublic, r.OwnerID, r.CreatedAt, r.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("creating resource: %w", err)
	}
	return nil
}

// GetResource returns a resource by ID.
func GetResource(ctx context.Context, db DBTX, id string) (*model.Resource, error) {
	r, err := scanResource(db.QueryRowContext(ctx, resourceSelect+` WHERE r.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting resource: %w", err)
	}
	return r, nil
}

// Resource sort orders.
const (
	SortNewest     = "newest"
	SortMostBorrow = "popular"
	SortRating     = "rating"
	SortName       = "name"
)

// ResourceFilter narrows ListResources. Zero values do not filter.
type ResourceFilter struct {
	Category     model.ResourceCategory
	Condition    model.Condition
	Availability model.Availability
	Block        model.Block
	Room         string
	Search       string
	OwnerID      string
	BorrowerID   string
	WishlistedBy string
	PublicOnly   bool
	Sort         string
	Page         Page
}

// ListResources returns matching resources and the total count before paging.
func ListResources(ctx context.Context, db DBTX, f ResourceFilter) ([]model.Resource, int, error) {
	where := ` WHERE 1=1`
	var args []any

	if f.Category != "" {
		where += ` AND r.category = ?`
		args = append(args, f.Category)
	}
	if f.Condition != "" {
		where += ` AND r.condition = ?`
		args = append(args, f.Condition)
	}
	if f.Availability != "" {
		where += ` AND r.availability = ?`
		args = append(args, f.Availability)
	}
	if f.Block != "" {
		where += ` AND r.hostel_block = ?`
		args = append(args, f.Block)
	}
	if f.Room != "" {
		where += ` AND r.room_number = ?`
		args = append(args, f.Room)
	}
	if f.OwnerID != "" {
		where += ` AND r.owner_id = ?`
		args = append(args, f.OwnerID)
	}
	if f.BorrowerID != "" {
		where += ` AND r.current_borrower = ?`
		args = append(args, f.BorrowerID)
	}
	if f.WishlistedBy != "" {
		where += ` AND EXISTS (SELECT 1 FROM resource_wishlist w WHERE w.resource_id = r.id AND w.user_id = ?)`
		args = append(args, f.WishlistedBy)
	}
	if f.PublicOnly {
		where += ` AND r.is_public = 1`
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where += ` AND (r.name LIKE ? ESCAPE '\' OR r.description LIKE ? ESCAPE '\' OR r.tags LIKE ? ESCAPE '\')`
		p := likePattern(s)
		args = append(args, p, p, p)
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resources r`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting resources: %w", err)
	}

	order := ` ORDER BY r.created_at DESC, r.id`
	switch f.Sort {
	case SortMostBorrow:
		order = ` ORDER BY r.total_borrows DESC, r.created_at DESC, r.id`
	case SortRating:
		order = ` ORDER BY r.average_rating DESC, r.total_borrows DESC, r.id`
	case SortName:
		order = ` ORDER BY r.name COLLATE NOCASE, r.id`
	}

	rows, err := db.QueryContext(ctx, resourceSelect+where+order+f.Page.clause(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing resources: %w", err)
	}
	defer rows.Close()

	var resources []model.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning resource: %w", err)
		}
		resources = append(resources, *r)
	}
	return resources, total, rows.Err()
}

// UpdateResourceDetails rewrites the owner-editable descriptive fields.
func UpdateResourceDetails(ctx context.Context, db DBTX, r *model.Resource) error {
	_, err := db.ExecContext(ctx,
		`UPDATE resources SET name = ?, description = ?, category = ?, condition = ?, max_borrow_duration = ?,
		     deposit_required = ?, deposit_amount = ?, borrowing_rules = ?, tags = ?, is_public = ?, updated_at = ?
		 WHERE id = ?`,
		r.Name, r.Description, r.Category, r.Condition, r.MaxBorrowDuration,
		r.DepositRequired, r.DepositAmount, r.BorrowingRules, encodeList(r.Tags), r.IsPublic, r.UpdatedAt, r.ID,
	)
	if isUniqueViolation(err) {
		return apperr.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("updating resource: %w", err)
	}
	return nil
}

// SetAvailability moves a resource to availability to if it is currently in
// one of the from states. It reports false when the resource was in another
// state. Borrow and return go through MarkBorrowed and MarkReturned so that
// the borrower and history stay consistent.
func SetAvailability(ctx context.Context, db DBTX, id string, from []model.Availability, to model.Availability, at time.Time) (bool, error) {
	args := []any{to, at.UTC(), id}
	for _, a := range from {
		if a == model.Borrowed || to == model.Borrowed || !model.CanTransitionAvailability(a, to) {
			return false, fmt.Errorf("setting availability: %s -> %s not allowed", a, to)
		}
		args = append(args, a)
	}
	res, err := db.ExecContext(ctx,
		`UPDATE resources SET availability = ?, updated_at = ?
		 WHERE id = ? AND availability IN (`+placeholders(len(from))+`)`, args...)
	if err != nil {
		return false, fmt.Errorf("setting availability: %w", err)
	}
	return affected(res)
}

// MarkBorrowed hands a resource to borrowerID and counts the borrow. Only one
// caller can win: the update applies only while the resource is available
// or requested.
func MarkBorrowed(ctx context.Context, db DBTX, id, borrowerID string, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE resources SET availability = 'borrowed', current_borrower = ?,
		     total_borrows = total_borrows + 1, updated_at = ?
		 WHERE id = ? AND availability IN ('available', 'requested')`,
		borrowerID, at.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("marking resource borrowed: %w", err)
	}
	return affected(res)
}

// MarkReturned makes a borrowed resource available again and recomputes its
// average rating from every rated returned borrow. Close the active history
// entry first.
func MarkReturned(ctx context.Context, db DBTX, id string, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE resources SET availability = 'available', current_borrower = NULL, updated_at = ?,
		     average_rating = COALESCE((SELECT AVG(h.rating) FROM borrow_history h
		         WHERE h.resource_id = resources.id AND h.status = 'returned' AND h.rating IS NOT NULL), 0)
		 WHERE id = ? AND availability = 'borrowed'`,
		at.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("marking resource returned: %w", err)
	}
	return affected(res)
}

// DeleteResource removes a resource unless it is borrowed. It reports false
// if nothing was deleted.
func DeleteResource(ctx context.Context, db DBTX, id string) (bool, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM resources WHERE id = ? AND availability != 'borrowed'`, id)
	if err != nil {
		return false, fmt.Errorf("deleting resource: %w", err)
	}
	return affected(res)
}

// IncrementViewCount counts one view.
func IncrementViewCount(ctx context.Context, db DBTX, id string) error {
	_, err := db.ExecContext(ctx, `UPDATE resources SET view_count = view_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("counting view: %w", err)
	}
	return nil
}

// AppendResourceImage appends an image URL to a resource's image list.
func AppendResourceImage(ctx context.Context, db DBTX, id, url string, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE resources SET images = json_insert(images, '$[#]', ?), updated_at = ? WHERE id = ?`,
		url, at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("appending resource image: %w", err)
	}
	return nil
}

// AddToWishlist adds a resource to a user's wishlist. Adding twice is a no-op.
func AddToWishlist(ctx context.Context, db DBTX, resourceID, userID string, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO resource_wishlist (resource_id, user_id, added_at) VALUES (?, ?, ?)`,
		resourceID, userID, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("adding to wishlist: %w", err)
	}
	return nil
}

// RemoveFromWishlist removes a resource from a user's wishlist.
func RemoveFromWishlist(ctx context.Context, db DBTX, resourceID, userID string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM resource_wishlist WHERE resource_id = ? AND user_id = ?`, resourceID, userID)
	if err != nil {
		return fmt.Errorf("removing from wishlist: %w", err)
	}
	return nil
}

// IsWishlisted reports whether the resource is on the user's wishlist.
func IsWishlisted(ctx context.Context, db DBTX, resourceID, userID string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM resource_wishlist WHERE resource_id = ? AND user_id = ?`,
		resourceID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking wishlist: %w", err)
	}
	return n > 0, nil
}

// ListWishlistUsers returns the users who wishlisted a resource.
func ListWishlistUsers(ctx context.Context, db DBTX, resourceID string) ([]string, error) {
	return queryIDs(ctx, db, "listing wishlist users",
		`SELECT user_id FROM resource_wishlist WHERE resource_id = ? ORDER BY added_at, user_id`, resourceID)
}

// SaveResourceImage stores processed image bytes and returns the image id.
func SaveResourceImage(ctx context.Context, db DBTX, resourceID string, data []byte, mime string, at time.Time) (string, error) {
	id := NewID()
	_, err := db.ExecContext(ctx,
		`INSERT INTO resource_images (id, resource_id, data, mime, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, resourceID, data, mime, at.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("saving resource image: %w", err)
	}
	return id, nil
}

// GetResourceImage returns stored image bytes and MIME type, or nil if absent.
func GetResourceImage(ctx context.Context, db DBTX, id string) ([]byte, string, error) {
	var data []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT data, mime FROM resource_images WHERE id = ?`, id,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting resource image: %w", err)
	}
	return data, mime, nil
}

// ResourceStats summarizes the resource catalogue.
type ResourceStats struct {
	Total        int                            `json:"total"`
	ByState      map[model.Availability]int     `json:"by_availability"`
	ByCategory   map[model.ResourceCategory]int `json:"by_category"`
	MostBorrowed []model.Resource               `json:"most_borrowed"`
	TopRated     []model.Resource               `json:"top_rated"`
}

// GetResourceStats aggregates counts over all resources, optionally limited to a block.
func GetResourceStats(ctx context.Context, db DBTX, block model.Block) (*ResourceStats, error) {
	stats := &ResourceStats{
		ByState:    map[model.Availability]int{},
		ByCategory: map[model.ResourceCategory]int{},
	}

	where := ``
	var args []any
	if block != "" {
		where = ` WHERE hostel_block = ?`
		args = append(args, block)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT availability, category, COUNT(*) FROM resources`+where+` GROUP BY availability, category`, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregating resources: %w", err)
	}
	for rows.Next() {
		var a model.Availability
		var c model.ResourceCategory
		var n int
		if err := rows.Scan(&a, &c, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning resource aggregate: %w", err)
		}
		stats.ByState[a] += n
		stats.ByCategory[c] += n
		stats.Total += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("aggregating resources: %w", err)
	}

	stats.MostBorrowed, _, err = ListResources(ctx, db, ResourceFilter{
		Block: block, Sort: SortMostBorrow, Page: Page{Limit: 5},
	})
	if err != nil {
		return nil, err
	}
	stats.TopRated, _, err = ListResources(ctx, db, ResourceFilter{
		Block: block, Sort: SortRating, Page: Page{Limit: 5},
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
