package service

import (
	"errors"
	"fmt"
	"log"

	"anon_chat/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SessionService 会话协调器
// 配对关系即会话：没有独立的会话记录，两侧对称的 partner_id 就是全部状态
type SessionService struct {
	db    *gorm.DB
	rdb   *redis.Client
	users *UserService
	rate  *RateLimiter
	relay Relay
}

func NewSessionService(db *gorm.DB, rdb *redis.Client, users *UserService, rate *RateLimiter) *SessionService {
	return &SessionService{
		db:    db,
		rdb:   rdb,
		users: users,
		rate:  rate,
	}
}

// SetRelay 注入消息投递实现
func (s *SessionService) SetRelay(relay Relay) {
	s.relay = relay
}

// chattingUser 取用户并校验其处于会话中
func (s *SessionService) chattingUser(userID uuid.UUID) (*model.User, error) {
	user, err := s.users.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if err := s.users.EnsureActive(user); err != nil {
		return nil, err
	}
	if user.Status != model.StatusChatting || user.PartnerID == nil {
		return nil, ErrNotInSession
	}
	return user, nil
}

// Relay 把消息转发给会话对端
// 返回值 delivered=false 表示对端不可达、会话已被隐式拆除（不作为错误上抛）
func (s *SessionService) Relay(fromID uuid.UUID, content string) (delivered bool, err error) {
	user, err := s.chattingUser(fromID)
	if err != nil {
		return false, err
	}
	if err := s.rate.Check(user); err != nil {
		return false, err
	}

	// 内容策略先行：退回发送方，不转发、不结束会话
	if violatesContentPolicy(content) {
		return false, ErrContentRejected
	}

	partnerID := *user.PartnerID
	msg := &model.ChatMessage{
		ID:          uuid.New(),
		SenderID:    fromID,
		RecipientID: partnerID,
		Content:     content,
	}

	ok := pushEvent(s.relay, partnerID, "chat", map[string]interface{}{
		"message_id": msg.ID,
		"content":    content,
	})
	if !ok {
		// 对端不可达视同断线：拆除会话，通知还在线的一侧
		log.Printf("Relay delivery failed, tearing down session: from=%s, to=%s", fromID, partnerID)
		s.teardown(user, partnerID)
		pushEvent(s.relay, fromID, "session_ended", map[string]interface{}{
			"reason": "partner disconnected",
		})
		return false, nil
	}

	// 转发成功才落消息记录，作为日后举报的证据
	if err := s.db.Create(msg).Error; err != nil {
		log.Printf("[ERROR] Failed to persist chat message: %v", err)
	}
	return true, nil
}

// NotifyTyping 转发"正在输入"提示（尽力而为）
func (s *SessionService) NotifyTyping(fromID uuid.UUID) error {
	user, err := s.chattingUser(fromID)
	if err != nil {
		return err
	}
	if s.relay != nil {
		s.relay.NotifyTyping(*user.PartnerID)
	}
	return nil
}

// teardown 把两侧都复位到 idle
// 双侧复位都带 partner_id 回指前置条件，容忍任一侧已被并发路径复位或重新配对
func (s *SessionService) teardown(user *model.User, partnerID uuid.UUID) {
	reset := map[string]interface{}{
		"status":     model.StatusIdle,
		"partner_id": nil,
	}
	if err := s.db.Model(&model.User{}).
		Where("id = ? AND partner_id = ?", partnerID, user.ID).
		Updates(reset).Error; err != nil {
		log.Printf("[ERROR] Failed to reset partner %s: %v", partnerID, err)
	}
	if err := s.db.Model(&model.User{}).
		Where("id = ? AND partner_id = ?", user.ID, partnerID).
		Updates(reset).Error; err != nil {
		log.Printf("[ERROR] Failed to reset user %s: %v", user.ID, err)
	}
	user.Status = model.StatusIdle
	user.PartnerID = nil
}

// EndSession 主动结束会话
// 幂等：对已经 idle 的用户再调用不报错也不产生变更
func (s *SessionService) EndSession(userID uuid.UUID) error {
	user, err := s.users.GetUser(userID)
	if err != nil {
		return err
	}
	if user.Status != model.StatusChatting || user.PartnerID == nil {
		return nil
	}

	partnerID := *user.PartnerID
	s.teardown(user, partnerID)

	// 两侧文案不同：主动方 vs 被动方
	pushEvent(s.relay, userID, "session_ended", map[string]interface{}{
		"reason": "you disconnected",
	})
	pushEvent(s.relay, partnerID, "session_ended", map[string]interface{}{
		"reason": "partner disconnected",
	})
	return nil
}

// Block 拉黑当前对端并结束会话
// 拉黑记录是单向的，匹配排除是双向的
func (s *SessionService) Block(userID uuid.UUID) error {
	user, err := s.chattingUser(userID)
	if err != nil {
		return err
	}
	partnerID := *user.PartnerID

	block := model.UserBlock{UserID: userID, TargetUserID: partnerID}
	if err := s.db.
		Where("user_id = ? AND target_user_id = ?", userID, partnerID).
		FirstOrCreate(&block).Error; err != nil {
		return fmt.Errorf("failed to record block: %w", err)
	}

	return s.EndSession(userID)
}

// Report 举报当前对端
// 取证：举报人最近一次收到的对方消息；会话本身继续
func (s *SessionService) Report(userID uuid.UUID, reason string) (*model.Report, error) {
	user, err := s.chattingUser(userID)
	if err != nil {
		return nil, err
	}
	partnerID := *user.PartnerID

	var evidence *uuid.UUID
	var lastMsg model.ChatMessage
	err = s.db.
		Where("sender_id = ? AND recipient_id = ?", partnerID, userID).
		Order("created_at DESC").
		First(&lastMsg).Error
	if err == nil {
		evidence = &lastMsg.ID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query evidence message: %w", err)
	}

	report := &model.Report{
		ReporterID:        userID,
		OffenderID:        partnerID,
		Reason:            reason,
		EvidenceMessageID: evidence,
	}
	if err := s.db.Create(report).Error; err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	publishModerationEvent(s.rdb, "report", map[string]interface{}{
		"reporter": userID,
		"offender": partnerID,
		"reason":   reason,
		"evidence": evidence,
	})
	return report, nil
}
