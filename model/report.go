package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Report 举报记录表
// EvidenceMessageID 指向举报人最近一次收到的对方消息（可能为空）
type Report struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	ReporterID        uuid.UUID  `json:"reporter_id" gorm:"type:uuid;not null;index"`
	OffenderID        uuid.UUID  `json:"offender_id" gorm:"type:uuid;not null;index"`
	Reason            string     `json:"reason" gorm:"type:text;not null"`
	EvidenceMessageID *uuid.UUID `json:"evidence_message_id,omitempty" gorm:"type:uuid"`
	CreatedAt         time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (Report) TableName() string {
	return "reports"
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
