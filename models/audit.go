// models/audit.go
package models

import "time"

// AuditEvent mirrors every submission/approval action into the local audit
// table. Recording is best-effort; the table is never read on the request path.
type AuditEvent struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	Action     string    `json:"action" gorm:"index"` // submitted | approved | notified
	EntityType string    `json:"entity_type"`         // run | game | profile
	EntityID   string    `json:"entity_id" gorm:"index"`
	Actor      string    `json:"actor"` // principal ID, or "public" for submissions
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}
