package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"anon_chat/config"
	"anon_chat/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ModerationChannel 管理事件的 Redis Pub/Sub 频道
// 管理端界面在核心之外订阅该频道消费 {type, payload} 事件
const ModerationChannel = "moderation:events"

// publishModerationEvent 向管理频道发布一条结构化事件（尽力而为）
func publishModerationEvent(rdb *redis.Client, eventType string, payload interface{}) {
	if rdb == nil {
		return
	}
	data, err := json.Marshal(map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		log.Printf("[ERROR] Failed to marshal moderation event: %v", err)
		return
	}
	ctx := context.Background()
	if err := rdb.Publish(ctx, ModerationChannel, data).Err(); err != nil {
		log.Printf("[ERROR] Failed to publish moderation event: %v", err)
	}
}

// ModerationService 封禁 / 禁言管理，仅限配置的管理员身份调用
type ModerationService struct {
	db  *gorm.DB
	rdb *redis.Client
	cfg *config.Config
}

func NewModerationService(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *ModerationService {
	return &ModerationService{db: db, rdb: rdb, cfg: cfg}
}

// authorize 校验调用方是管理员且目标不是管理员自己
func (s *ModerationService) authorize(adminID, targetID uuid.UUID) error {
	if s.cfg.AdminUserID == "" || adminID.String() != s.cfg.AdminUserID {
		return ErrUnauthorized
	}
	if adminID == targetID {
		return ErrSelfTarget
	}
	return nil
}

// target 查询目标用户，不存在时返回 ErrNotFound 且不产生任何副作用
func (s *ModerationService) target(targetID uuid.UUID) (*model.User, error) {
	var user model.User
	if err := s.db.First(&user, "id = ?", targetID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query target: %w", err)
	}
	return &user, nil
}

// Ban 封禁用户：此后一切操作在入口即被拒绝
func (s *ModerationService) Ban(adminID, targetID uuid.UUID, reason string) error {
	if err := s.authorize(adminID, targetID); err != nil {
		return err
	}
	user, err := s.target(targetID)
	if err != nil {
		return err
	}
	if err := s.db.Model(user).Update("banned", true).Error; err != nil {
		return fmt.Errorf("failed to ban user: %w", err)
	}
	publishModerationEvent(s.rdb, "ban", map[string]interface{}{
		"target": targetID,
		"reason": reason,
	})
	return nil
}

// Unban 解封
func (s *ModerationService) Unban(adminID, targetID uuid.UUID) error {
	if err := s.authorize(adminID, targetID); err != nil {
		return err
	}
	user, err := s.target(targetID)
	if err != nil {
		return err
	}
	if err := s.db.Model(user).Update("banned", false).Error; err != nil {
		return fmt.Errorf("failed to unban user: %w", err)
	}
	return nil
}

// Mute 禁言指定时长
func (s *ModerationService) Mute(adminID, targetID uuid.UUID, duration time.Duration) error {
	if err := s.authorize(adminID, targetID); err != nil {
		return err
	}
	user, err := s.target(targetID)
	if err != nil {
		return err
	}
	muteUntil := time.Now().Add(duration)
	if err := s.db.Model(user).Update("mute_until", muteUntil).Error; err != nil {
		return fmt.Errorf("failed to mute user: %w", err)
	}
	publishModerationEvent(s.rdb, "mute", map[string]interface{}{
		"target":   targetID,
		"duration": duration.String(),
	})
	return nil
}

// Unmute 解除禁言
func (s *ModerationService) Unmute(adminID, targetID uuid.UUID) error {
	if err := s.authorize(adminID, targetID); err != nil {
		return err
	}
	user, err := s.target(targetID)
	if err != nil {
		return err
	}
	if err := s.db.Model(user).Update("mute_until", nil).Error; err != nil {
		return fmt.Errorf("failed to unmute user: %w", err)
	}
	return nil
}
