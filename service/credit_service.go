package service

import (
	"errors"
	"fmt"

	"anon_chat/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreditService 积分账本：扣费、充值、赠礼
// 扣费依赖单条带余额前置条件的 UPDATE，任何情况下余额不会为负
type CreditService struct {
	db *gorm.DB
}

func NewCreditService(db *gorm.DB) *CreditService {
	return &CreditService{db: db}
}

// Debit 扣减积分，余额不足时整个操作不生效
func (s *CreditService) Debit(userID uuid.UUID, amount int, kind string, refUserID *uuid.UUID) error {
	if amount <= 0 {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		// 余额前置条件写进 WHERE，并发扣费下也不会扣穿
		res := tx.Model(&model.User{}).
			Where("id = ? AND credits >= ?", userID, amount).
			UpdateColumn("credits", gorm.Expr("credits - ?", amount))
		if res.Error != nil {
			return fmt.Errorf("failed to debit credits: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&model.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check user existence: %w", err)
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrInsufficientCredits
		}
		return tx.Create(&model.CreditEntry{
			UserID:    userID,
			Delta:     -amount,
			Kind:      kind,
			RefUserID: refUserID,
		}).Error
	})
}

// Credit 无条件增加积分（推荐奖励、管理员充值、礼物到账）
func (s *CreditService) Credit(userID uuid.UUID, amount int, kind string, refUserID *uuid.UUID) error {
	if amount <= 0 {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.User{}).
			Where("id = ?", userID).
			UpdateColumn("credits", gorm.Expr("credits + ?", amount))
		if res.Error != nil {
			return fmt.Errorf("failed to credit: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Create(&model.CreditEntry{
			UserID:    userID,
			Delta:     amount,
			Kind:      kind,
			RefUserID: refUserID,
		}).Error
	})
}

// Adjust 管理员调整余额，负数走扣费路径（同样不允许扣穿）
func (s *CreditService) Adjust(userID uuid.UUID, delta int) error {
	switch {
	case delta > 0:
		return s.Credit(userID, delta, model.CreditKindAdminAdjust, nil)
	case delta < 0:
		return s.Debit(userID, -delta, model.CreditKindAdminAdjust, nil)
	default:
		return nil
	}
}

// TransferGift 赠送礼物：先扣款，成功后才给对方记一条"收到礼物"流水
// 失败时两边都不落账
func (s *CreditService) TransferGift(fromID, toID uuid.UUID, giftCost int) error {
	if fromID == toID {
		return ErrSelfTarget
	}
	if giftCost <= 0 {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		inner := &CreditService{db: tx}
		if err := inner.Debit(fromID, giftCost, model.CreditKindGiftSent, &toID); err != nil {
			return err
		}
		if err := inner.Credit(toID, giftCost, model.CreditKindGiftReceived, &fromID); err != nil {
			return err
		}
		return nil
	})
}

// Balance 查询余额
func (s *CreditService) Balance(userID uuid.UUID) (int, error) {
	var user model.User
	if err := s.db.Select("credits").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to query balance: %w", err)
	}
	return user.Credits, nil
}

// History 查询积分流水（新到旧）
func (s *CreditService) History(userID uuid.UUID, limit int) ([]model.CreditEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var entries []model.CreditEntry
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query credit entries: %w", err)
	}
	return entries, nil
}
