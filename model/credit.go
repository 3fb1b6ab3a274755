package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 积分流水类型
const (
	CreditKindWelcome      = "welcome"       // 注册赠送
	CreditKindSearchFee    = "search_fee"    // 付费搜索扣费
	CreditKindGiftSent     = "gift_sent"     // 送出礼物
	CreditKindGiftReceived = "gift_received" // 收到礼物
	CreditKindAdminAdjust  = "admin_adjust"  // 管理员调整
)

// CreditEntry 积分流水表，余额每次变动都落一条
type CreditEntry struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	Delta     int        `json:"delta" gorm:"not null"`
	Kind      string     `json:"kind" gorm:"type:varchar(20);not null"`
	RefUserID *uuid.UUID `json:"ref_user_id,omitempty" gorm:"type:uuid"` // 礼物对端等关联用户
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (CreditEntry) TableName() string {
	return "credit_entries"
}

func (e *CreditEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
