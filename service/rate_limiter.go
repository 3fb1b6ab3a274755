package service

import (
	"fmt"
	"time"

	"anon_chat/config"
	"anon_chat/model"

	"gorm.io/gorm"
)

// RateLimiter 简易漏桶式限流
// 注意这是近似实现而非滑动窗口：只比较相邻两次操作的间隔，
// 连续 N 次间隔过短即临时禁言，间隔正常则清零计数
type RateLimiter struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewRateLimiter(db *gorm.DB, cfg *config.Config) *RateLimiter {
	return &RateLimiter{db: db, cfg: cfg}
}

// Check 记录一次操作并判定是否触发限流
// 管理员豁免；触发后写入 mute_until 并返回 ErrRateLimited
func (r *RateLimiter) Check(user *model.User) error {
	if r.cfg.AdminUserID != "" && user.ID.String() == r.cfg.AdminUserID {
		return nil
	}

	now := time.Now()
	minInterval := time.Duration(r.cfg.RateMinIntervalMS) * time.Millisecond

	updates := map[string]interface{}{
		"last_action_at": now,
	}

	if user.LastActionAt != nil && now.Sub(*user.LastActionAt) < minInterval {
		user.SpamScore++
		if user.SpamScore > r.cfg.RateSpamThreshold {
			muteUntil := now.Add(time.Duration(r.cfg.RateMuteMinutes) * time.Minute)
			updates["spam_score"] = 0
			updates["mute_until"] = muteUntil
			if err := r.db.Model(user).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to persist rate limit state: %w", err)
			}
			user.SpamScore = 0
			user.MuteUntil = &muteUntil
			return ErrRateLimited
		}
		updates["spam_score"] = user.SpamScore
	} else {
		// 间隔正常，计数清零
		updates["spam_score"] = 0
		user.SpamScore = 0
	}

	if err := r.db.Model(user).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to persist rate limit state: %w", err)
	}
	user.LastActionAt = &now
	return nil
}
