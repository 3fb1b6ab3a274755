package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserBlock 拉黑关系表
// 数据上是单向记录，匹配时双向生效：任一方向存在记录即排除配对
type UserBlock struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_block_pair"`
	TargetUserID uuid.UUID `json:"target_user_id" gorm:"type:uuid;not null;uniqueIndex:idx_block_pair"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (UserBlock) TableName() string {
	return "user_blocks"
}

func (b *UserBlock) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
