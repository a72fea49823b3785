package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Timestamps are always supplied by the
// application in UTC.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    email          TEXT NOT NULL,
    password_hash  TEXT NOT NULL,
    role           TEXT NOT NULL DEFAULT 'student' CHECK (role IN ('student', 'warden', 'admin')),
    hostel_block   TEXT NOT NULL DEFAULT '' CHECK (hostel_block IN ('', 'A', 'B', 'C', 'D')),
    room_number    TEXT NOT NULL DEFAULT '',
    phone          TEXT NOT NULL DEFAULT '',
    reputation     INTEGER NOT NULL DEFAULT 5 CHECK (reputation BETWEEN 0 AND 10),
    total_borrowed INTEGER NOT NULL DEFAULT 0 CHECK (total_borrowed >= 0),
    total_lent     INTEGER NOT NULL DEFAULT 0 CHECK (total_lent >= 0),
    last_login     DATETIME,
    created_at     DATETIME NOT NULL,
    deleted_at     DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email);

CREATE TABLE IF NOT EXISTS complaints (
    id                        TEXT PRIMARY KEY,
    title                     TEXT NOT NULL,
    description               TEXT NOT NULL,
    category                  TEXT NOT NULL CHECK (category IN ('electrical', 'plumbing', 'furniture', 'cleanliness', 'noise', 'security', 'other')),
    priority                  TEXT NOT NULL CHECK (priority IN ('low', 'medium', 'high', 'urgent')),
    status                    TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'in-progress', 'awaiting-approval', 'resolved', 'rejected')),
    hostel_block              TEXT NOT NULL CHECK (hostel_block IN ('A', 'B', 'C', 'D')),
    room_number               TEXT NOT NULL,
    is_anonymous              INTEGER NOT NULL DEFAULT 0,
    tags                      TEXT NOT NULL DEFAULT '[]',
    images                    TEXT NOT NULL DEFAULT '[]',
    reported_by               TEXT NOT NULL REFERENCES users(id),
    assigned_to               TEXT REFERENCES users(id),
    feedback_resolved         INTEGER,
    feedback_rating           INTEGER CHECK (feedback_rating BETWEEN 1 AND 5),
    feedback_comment          TEXT NOT NULL DEFAULT '',
    feedback_at               DATETIME,
    resolution_notes          TEXT NOT NULL DEFAULT '',
    estimated_resolution_time DATETIME,
    actual_resolution_time    DATETIME,
    created_at                DATETIME NOT NULL,
    updated_at                DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_complaints_reporter ON complaints(reported_by, created_at);
CREATE INDEX IF NOT EXISTS idx_complaints_block ON complaints(hostel_block, status);

CREATE TABLE IF NOT EXISTS complaint_upvotes (
    complaint_id TEXT NOT NULL REFERENCES complaints(id) ON DELETE CASCADE,
    user_id      TEXT NOT NULL REFERENCES users(id),
    created_at   DATETIME NOT NULL,
    PRIMARY KEY (complaint_id, user_id)
);

CREATE TABLE IF NOT EXISTS resources (
    id                  TEXT PRIMARY KEY,
    name                TEXT NOT NULL,
    description         TEXT NOT NULL,
    category            TEXT NOT NULL CHECK (category IN ('electronics', 'books', 'sports', 'kitchen', 'tools', 'study-materials', 'other')),
    condition           TEXT NOT NULL CHECK (condition IN ('excellent', 'good', 'fair', 'poor')),
    availability        TEXT NOT NULL DEFAULT 'available' CHECK (availability IN ('available', 'requested', 'borrowed', 'maintenance', 'unavailable')),
    hostel_block        TEXT NOT NULL CHECK (hostel_block IN ('A', 'B', 'C', 'D')),
    room_number         TEXT NOT NULL,
    max_borrow_duration INTEGER NOT NULL DEFAULT 7 CHECK (max_borrow_duration BETWEEN 1 AND 30),
    deposit_required    INTEGER NOT NULL DEFAULT 0,
    deposit_amount      REAL NOT NULL DEFAULT 0 CHECK (deposit_amount >= 0),
    borrowing_rules     TEXT NOT NULL DEFAULT '',
    tags                TEXT NOT NULL DEFAULT '[]',
    images              TEXT NOT NULL DEFAULT '[]',
    is_public           INTEGER NOT NULL DEFAULT 1,
    owner_id            TEXT NOT NULL REFERENCES users(id),
    current_borrower    TEXT REFERENCES users(id),
    total_borrows       INTEGER NOT NULL DEFAULT 0,
    average_rating      REAL NOT NULL DEFAULT 0,
    view_count          INTEGER NOT NULL DEFAULT 0,
    created_at          DATETIME NOT NULL,
    updated_at          DATETIME NOT NULL,
    CHECK ((availability = 'borrowed') = (current_borrower IS NOT NULL))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_resources_owner_name
    ON resources(owner_id, name COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_resources_block ON resources(hostel_block, availability);

CREATE TABLE IF NOT EXISTS borrow_requests (
    id           TEXT PRIMARY KEY,
    resource_id  TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
    requester_id TEXT NOT NULL REFERENCES users(id),
    status       TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
    message      TEXT NOT NULL DEFAULT '',
    requested_at DATETIME NOT NULL,
    decision_at  DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_borrow_requests_pending
    ON borrow_requests(resource_id, requester_id) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS borrow_history (
    id          TEXT PRIMARY KEY,
    resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
    borrower_id TEXT NOT NULL REFERENCES users(id),
    borrowed_at DATETIME NOT NULL,
    due_date    DATETIME NOT NULL,
    status      TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'returned')),
    returned_at DATETIME,
    rating      INTEGER CHECK (rating BETWEEN 1 AND 5),
    feedback    TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_borrow_history_active
    ON borrow_history(resource_id) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_borrow_history_borrower ON borrow_history(borrower_id, status);

CREATE TABLE IF NOT EXISTS resource_wishlist (
    resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
    user_id     TEXT NOT NULL REFERENCES users(id),
    added_at    DATETIME NOT NULL,
    PRIMARY KEY (resource_id, user_id)
);

CREATE TABLE IF NOT EXISTS resource_images (
    id          TEXT PRIMARY KEY,
    resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
    data        BLOB NOT NULL,
    mime        TEXT NOT NULL,
    created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS resource_requests (
    id                 TEXT PRIMARY KEY,
    title              TEXT NOT NULL,
    description        TEXT NOT NULL,
    category           TEXT NOT NULL CHECK (category IN ('electronics', 'books', 'sports', 'kitchen', 'tools', 'study-materials', 'other')),
    requested_by       TEXT NOT NULL REFERENCES users(id),
    status             TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'fulfilled', 'cancelled')),
    fulfilled_by       TEXT REFERENCES users(id),
    fulfilled_resource TEXT REFERENCES resources(id) ON DELETE SET NULL,
    fulfilled_at       DATETIME,
    created_at         DATETIME NOT NULL,
    updated_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
    id          TEXT PRIMARY KEY,
    recipient   TEXT NOT NULL REFERENCES users(id),
    sender      TEXT REFERENCES users(id),
    title       TEXT NOT NULL,
    message     TEXT NOT NULL,
    type        TEXT NOT NULL CHECK (type IN ('complaint', 'resource', 'system', 'reminder', 'warning', 'success')),
    category    TEXT NOT NULL,
    priority    TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
    entity_type TEXT,
    entity_id   TEXT,
    is_read     INTEGER NOT NULL DEFAULT 0,
    read_at     DATETIME,
    action_url  TEXT NOT NULL DEFAULT '',
    action_text TEXT NOT NULL DEFAULT '',
    metadata    TEXT NOT NULL DEFAULT '{}',
    expires_at  DATETIME,
    created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_recipient
    ON notifications(recipient, is_read, created_at);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist,
// then applies migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}
