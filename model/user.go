package model

import (
	"time"

	"github.com/google/uuid"
)

// 用户配对状态机：idle → searching → chatting
// （举报流程是 chatting 之上的临时 UI 状态，不占用该字段）
const (
	StatusIdle      = "idle"
	StatusSearching = "searching"
	StatusChatting  = "chatting"
)

// 搜索档位
const (
	TierRandom   = "random"   // 免费随机匹配
	TierGender   = "gender"   // 定向性别匹配（付费）
	TierAdvanced = "advanced" // 多条件筛选匹配（付费）
)

// User 用户表
type User struct {
	ID uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`

	// 资料字段：仅作为匹配筛选条件，核心逻辑不解释其取值
	Gender     string `json:"gender" gorm:"type:varchar(20)"`
	Age        int    `json:"age"`
	Region     string `json:"region" gorm:"type:varchar(50)"`
	Occupation string `json:"occupation" gorm:"type:varchar(50)"`
	Purpose    string `json:"purpose" gorm:"type:varchar(50)"`

	Status    string     `json:"status" gorm:"type:varchar(20);not null;default:idle;index"`
	PartnerID *uuid.UUID `json:"partner_id,omitempty" gorm:"type:uuid"`

	// searching 状态下暂存的筛选条件（空字符串 / 0 表示任意），供后来者反向匹配
	SearchTier       string     `json:"search_tier,omitempty" gorm:"type:varchar(20)"`
	SearchGender     string     `json:"search_gender,omitempty" gorm:"type:varchar(20)"`
	SearchRegion     string     `json:"search_region,omitempty" gorm:"type:varchar(50)"`
	SearchAge        int        `json:"search_age,omitempty"`
	SearchOccupation string     `json:"search_occupation,omitempty" gorm:"type:varchar(50)"`
	SearchPurpose    string     `json:"search_purpose,omitempty" gorm:"type:varchar(50)"`
	SearchStartedAt  *time.Time `json:"search_started_at,omitempty"`

	Credits int `json:"credits" gorm:"not null;default:0"`

	Banned    bool       `json:"banned" gorm:"default:false"`
	MuteUntil *time.Time `json:"mute_until,omitempty"`

	// 限流记账
	SpamScore    int        `json:"-"`
	LastActionAt *time.Time `json:"-"`

	LikeCount    int `json:"like_count" gorm:"default:0"`
	DislikeCount int `json:"dislike_count" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// IsMuted 判断用户当前是否处于禁言期
func (u *User) IsMuted(now time.Time) bool {
	return u.MuteUntil != nil && now.Before(*u.MuteUntil)
}

// SearchFilters 搜索筛选条件，空字符串 / 0 表示任意
type SearchFilters struct {
	Gender     string `json:"gender"`
	Region     string `json:"region"`
	Age        int    `json:"age"`
	Occupation string `json:"occupation"`
	Purpose    string `json:"purpose"`
}

// IsEmpty 是否没有任何有效筛选条件
func (f SearchFilters) IsEmpty() bool {
	return f.Gender == "" && f.Region == "" && f.Age == 0 &&
		f.Occupation == "" && f.Purpose == ""
}

// Accepts 判断目标用户的资料是否满足全部非空筛选条件
func (f SearchFilters) Accepts(u *User) bool {
	if f.Gender != "" && u.Gender != f.Gender {
		return false
	}
	if f.Region != "" && u.Region != f.Region {
		return false
	}
	if f.Age != 0 && u.Age != f.Age {
		return false
	}
	if f.Occupation != "" && u.Occupation != f.Occupation {
		return false
	}
	if f.Purpose != "" && u.Purpose != f.Purpose {
		return false
	}
	return true
}

// StoredFilters 取出用户暂存的筛选条件
func (u *User) StoredFilters() SearchFilters {
	return SearchFilters{
		Gender:     u.SearchGender,
		Region:     u.SearchRegion,
		Age:        u.SearchAge,
		Occupation: u.SearchOccupation,
		Purpose:    u.SearchPurpose,
	}
}
