package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 评价取值
const (
	VoteLike    = "like"
	VoteDislike = "dislike"
)

// Vote 用户互评表
// (voter, target) 唯一索引即幂等集合：同一人对同一目标只记一票
type Vote struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	VoterID      uuid.UUID `json:"voter_id" gorm:"type:uuid;not null;uniqueIndex:idx_vote_pair"`
	TargetUserID uuid.UUID `json:"target_user_id" gorm:"type:uuid;not null;uniqueIndex:idx_vote_pair"`
	Value        string    `json:"value" gorm:"type:varchar(10);not null"` // 'like' | 'dislike'
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Vote) TableName() string {
	return "votes"
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
