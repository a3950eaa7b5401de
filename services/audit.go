// services/audit.go
package services

import (
	"log"
	"time"

	"crc-submission-proxy/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditService records submission/approval events in the local audit table.
// Safe to use with a nil receiver or nil DB (auditing disabled).
type AuditService struct {
	DB *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{DB: db}
}

// Record writes one audit row best-effort; a failed write is logged and the
// request proceeds as if nothing happened.
func (a *AuditService) Record(action, entityType, entityID, actor, detail string) {
	if a == nil || a.DB == nil {
		return
	}
	event := models.AuditEvent{
		ID:         uuid.NewString(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Actor:      actor,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.DB.Create(&event).Error; err != nil {
		log.Printf("⚠️ [AUDIT] failed to record %s %s/%s: %v", action, entityType, entityID, err)
	}
}
