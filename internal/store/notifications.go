package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smarthostel/smarthostel/internal/model"
)

// CreateNotification inserts a notification. ID and CreatedAt must be set.
func CreateNotification(ctx context.Context, db DBTX, n *model.Notification) error {
	var entityType, entityID sql.NullString
	if n.RelatedEntity != nil {
		entityType = nullString(string(n.RelatedEntity.Type))
		entityID = nullString(n.RelatedEntity.ID)
	}
	meta := "{}"
	if len(n.Metadata) > 0 {
		b, err := json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("encoding notification metadata: %w", err)
		}
		meta = string(b)
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient, sender, title, message, type, category, priority,
		     entity_type, entity_id, action_url, action_text, metadata, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Recipient, nullString(n.Sender), n.Title, n.Message, n.Type, n.Category, n.Priority,
		entityType, entityID, n.ActionURL, n.ActionText, meta, nullTime(n.ExpiresAt), n.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	return nil
}

const notificationSelect = `SELECT n.id, n.recipient, n.sender, COALESCE(s.name, ''), n.title, n.message,
	n.type, n.category, n.priority, n.entity_type, n.entity_id, n.is_read, n.read_at,
	n.action_url, n.action_text, n.metadata, n.expires_at, n.created_at
	FROM notifications n
	LEFT JOIN users s ON s.id = n.sender`

func scanNotification(row interface{ Scan(...any) error }) (*model.Notification, error) {
	n := &model.Notification{}
	var sender, entityType, entityID sql.NullString
	var readAt, expiresAt sql.NullTime
	var meta string
	err := row.Scan(&n.ID, &n.Recipient, &sender, &n.SenderName, &n.Title, &n.Message,
		&n.Type, &n.Category, &n.Priority, &entityType, &entityID, &n.IsRead, &readAt,
		&n.ActionURL, &n.ActionText, &meta, &expiresAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.Sender = sender.String
	if entityType.Valid {
		n.RelatedEntity = &model.RelatedEntity{Type: model.EntityType(entityType.String), ID: entityID.String}
	}
	n.ReadAt = timePtr(readAt)
	n.ExpiresAt = timePtr(expiresAt)
	if meta != "" && meta != "{}" {
		_ = json.Unmarshal([]byte(meta), &n.Metadata)
	}
	return n, nil
}

// GetNotification returns a recipient's notification by ID.
func GetNotification(ctx context.Context, db DBTX, id, recipient string) (*model.Notification, error) {
	n, err := scanNotification(db.QueryRowContext(ctx,
		notificationSelect+` WHERE n.id = ? AND n.recipient = ?`, id, recipient))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification: %w", err)
	}
	return n, nil
}

// NotificationFilter narrows ListNotifications.
type NotificationFilter struct {
	Type   model.NotificationType
	IsRead *bool
	Page   Page
}

const notExpired = ` AND (n.expires_at IS NULL OR n.expires_at > ?)`

// ListNotifications returns a recipient's unexpired notifications, newest
// first, and the total before paging.
func ListNotifications(ctx context.Context, db DBTX, recipient string, f NotificationFilter, now time.Time) ([]model.Notification, int, error) {
	where := ` WHERE n.recipient = ?` + notExpired
	args := []any{recipient, now.UTC()}

	if f.Type != "" {
		where += ` AND n.type = ?`
		args = append(args, f.Type)
	}
	if f.IsRead != nil {
		where += ` AND n.is_read = ?`
		args = append(args, *f.IsRead)
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications n`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting notifications: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		notificationSelect+where+` ORDER BY n.created_at DESC, n.id`+f.Page.clause(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var list []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning notification: %w", err)
		}
		list = append(list, *n)
	}
	return list, total, rows.Err()
}

// CountUnread returns the number of unread, unexpired notifications.
func CountUnread(ctx context.Context, db DBTX, recipient string, now time.Time) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications n WHERE n.recipient = ? AND n.is_read = 0`+notExpired,
		recipient, now.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}

// SetNotificationRead marks a notification read or unread. It reports false
// if the recipient has no such notification.
func SetNotificationRead(ctx context.Context, db DBTX, id, recipient string, read bool, at time.Time) (bool, error) {
	var readAt sql.NullTime
	if read {
		readAt = sql.NullTime{Time: at.UTC(), Valid: true}
	}
	res, err := db.ExecContext(ctx,
		`UPDATE notifications SET is_read = ?, read_at = ? WHERE id = ? AND recipient = ?`,
		read, readAt, id, recipient,
	)
	if err != nil {
		return false, fmt.Errorf("marking notification: %w", err)
	}
	return affected(res)
}

// MarkAllRead marks every unread notification of a recipient read.
func MarkAllRead(ctx context.Context, db DBTX, recipient string, at time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1, read_at = ? WHERE recipient = ? AND is_read = 0`,
		at.UTC(), recipient,
	)
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read: %w", err)
	}
	return res.RowsAffected()
}

// DeleteNotification deletes one of a recipient's notifications.
func DeleteNotification(ctx context.Context, db DBTX, id, recipient string) (bool, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = ? AND recipient = ?`, id, recipient)
	if err != nil {
		return false, fmt.Errorf("deleting notification: %w", err)
	}
	return affected(res)
}

// DeleteReadNotifications deletes every read notification of a recipient.
func DeleteReadNotifications(ctx context.Context, db DBTX, recipient string) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM notifications WHERE recipient = ? AND is_read = 1`, recipient)
	if err != nil {
		return 0, fmt.Errorf("deleting read notifications: %w", err)
	}
	return res.RowsAffected()
}

// DeleteExpiredNotifications removes notifications past their expiry.
func DeleteExpiredNotifications(ctx context.Context, db DBTX, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired notifications: %w", err)
	}
	return res.RowsAffected()
}
