package service

import (
	"errors"
	"fmt"
	"time"

	"anon_chat/config"
	"anon_chat/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserService 用户档案目录：资料读写与准入检查
type UserService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewUserService(db *gorm.DB, cfg *config.Config) *UserService {
	return &UserService{db: db, cfg: cfg}
}

// GetUser 按 ID 查询用户
func (s *UserService) GetUser(userID uuid.UUID) (*model.User, error) {
	var user model.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// ProfileInput 资料更新入参（注册向导等外层 UI 负责逐项收集，这里一次性写入）
type ProfileInput struct {
	Gender     string `json:"gender"`
	Age        int    `json:"age"`
	Region     string `json:"region"`
	Occupation string `json:"occupation"`
	Purpose    string `json:"purpose"`
}

// UpsertProfile 创建或更新用户资料
// 新用户赠送一次欢迎积分；资料更新不触碰配对状态
func (s *UserService) UpsertProfile(userID uuid.UUID, input ProfileInput) (*model.User, error) {
	var user model.User
	err := s.db.First(&user, "id = ?", userID).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = model.User{
			ID:         userID,
			Gender:     input.Gender,
			Age:        input.Age,
			Region:     input.Region,
			Occupation: input.Occupation,
			Purpose:    input.Purpose,
			Status:     model.StatusIdle,
			Credits:    s.cfg.WelcomeCredits,
		}
		txErr := s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			if s.cfg.WelcomeCredits > 0 {
				return tx.Create(&model.CreditEntry{
					UserID: userID,
					Delta:  s.cfg.WelcomeCredits,
					Kind:   model.CreditKindWelcome,
				}).Error
			}
			return nil
		})
		if txErr != nil {
			return nil, fmt.Errorf("failed to create user: %w", txErr)
		}
		return &user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	updates := map[string]interface{}{
		"gender":     input.Gender,
		"age":        input.Age,
		"region":     input.Region,
		"occupation": input.Occupation,
		"purpose":    input.Purpose,
	}
	if err := s.db.Model(&user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return &user, nil
}

// EnsureActive 准入检查：封禁用户在任何业务逻辑之前被拒绝，禁言用户在禁言期内被拒绝
func (s *UserService) EnsureActive(user *model.User) error {
	if user.Banned {
		return ErrBanned
	}
	if user.IsMuted(time.Now()) {
		return ErrRateLimited
	}
	return nil
}

// IsAdmin 判断是否为配置的管理员身份
func (s *UserService) IsAdmin(userID uuid.UUID) bool {
	return s.cfg.AdminUserID != "" && userID.String() == s.cfg.AdminUserID
}
