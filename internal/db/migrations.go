package db

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: expiry lookups for the notification cleanup sweep.
	`CREATE INDEX IF NOT EXISTS idx_notifications_expires
	     ON notifications(expires_at) WHERE expires_at IS NOT NULL`,
	// Migration 2: resource request listing by status.
	`CREATE INDEX IF NOT EXISTS idx_resource_requests_status
	     ON resource_requests(status, created_at)`,
}
