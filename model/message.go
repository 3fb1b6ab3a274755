package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatMessage 配对会话内转发成功的消息记录（举报取证用）
type ChatMessage struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	SenderID    uuid.UUID `json:"sender_id" gorm:"type:uuid;not null;index"`
	RecipientID uuid.UUID `json:"recipient_id" gorm:"type:uuid;not null;index"`
	Content     string    `json:"content" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
