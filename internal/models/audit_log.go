package models

import "time"

// AuditLog is one append-only entry in the audit trail. Metadata is an
// opaque key/value payload; the core stores and returns it without
// interpreting its contents.
type AuditLog struct {
	ID        int64          `json:"id" db:"id"`
	UserID    int64          `json:"userId" db:"user_id"`
	Action    string         `json:"action" db:"action"`
	Resource  string         `json:"resource" db:"resource"`
	Metadata  map[string]any `json:"metadata" db:"metadata"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}
