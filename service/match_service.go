package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"anon_chat/config"
	"anon_chat/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 每轮候选扫描的上限，扫不到就把用户挂入等待队列
const candidateScanLimit = 32

// 认领竞争的内部信号
var (
	errClaimLost        = errors.New("candidate claimed by another searcher")
	errClaimedMeanwhile = errors.New("searcher claimed by a concurrent search")
)

// MatchService 匹配引擎
// 并发安全完全依赖"认领"这一条带前置条件的 UPDATE：
// 只有仍处于 searching 的行能被改写，两个并发搜索者不可能认领同一个候选
type MatchService struct {
	db      *gorm.DB
	cfg     *config.Config
	users   *UserService
	rate    *RateLimiter
	credits *CreditService
	relay   Relay
}

func NewMatchService(db *gorm.DB, cfg *config.Config, users *UserService, rate *RateLimiter, credits *CreditService) *MatchService {
	return &MatchService{
		db:      db,
		cfg:     cfg,
		users:   users,
		rate:    rate,
		credits: credits,
	}
}

// SetRelay 注入消息投递实现（用于匹配成功通知）
func (s *MatchService) SetRelay(relay Relay) {
	s.relay = relay
}

// SearchResult 搜索结果：要么当场配对，要么挂入等待队列
type SearchResult struct {
	Matched bool        `json:"matched"`
	Partner *model.User `json:"partner,omitempty"`
}

// TierCost 返回档位费用
func (s *MatchService) TierCost(tier string) int {
	switch tier {
	case model.TierGender:
		return s.cfg.GenderSearchCost
	case model.TierAdvanced:
		return s.cfg.AdvancedSearchCost
	default:
		return 0
	}
}

// normalizeFilters 把档位归一成统一的筛选条件
// 定向性别搜索等价于只带 gender 一项的筛选，互惠检查因此对所有档位统一生效
func normalizeFilters(tier string, filters model.SearchFilters) (model.SearchFilters, error) {
	switch tier {
	case model.TierRandom:
		return model.SearchFilters{}, nil
	case model.TierGender:
		if filters.Gender == "" {
			return model.SearchFilters{}, ErrInvalidSearch
		}
		return model.SearchFilters{Gender: filters.Gender}, nil
	case model.TierAdvanced:
		return filters, nil
	default:
		return model.SearchFilters{}, ErrInvalidSearch
	}
}

// Search 为用户寻找聊天对象
// 找到候选则原子认领并双双进入 chatting；否则记录筛选条件挂入 searching
func (s *MatchService) Search(userID uuid.UUID, tier string, filters model.SearchFilters) (*SearchResult, error) {
	user, err := s.users.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if err := s.users.EnsureActive(user); err != nil {
		return nil, err
	}
	if err := s.rate.Check(user); err != nil {
		return nil, err
	}

	if user.Status == model.StatusChatting {
		return nil, ErrAlreadyInSession
	}

	filters, err = normalizeFilters(tier, filters)
	if err != nil {
		return nil, err
	}

	// 付费档位先验余额，不足时不做任何状态变更
	cost := s.TierCost(tier)
	if cost > 0 && user.Credits < cost {
		return nil, ErrInsufficientCredits
	}

	// 旧版计费策略：发起搜索即扣费，无论是否匹配成功
	charged := false
	if cost > 0 && s.cfg.ChargeOnAttempt {
		if err := s.credits.Debit(userID, cost, model.CreditKindSearchFee, nil); err != nil {
			return nil, err
		}
		charged = true
	}

	// 自身的状态迁移一律以入口读到的状态为前置条件：
	// searching 状态下重复搜索时，自己随时可能被并发搜索者认领走
	gateStatus := user.Status

	partner, err := s.claimCandidate(user, gateStatus, filters)
	if errors.Is(err, errClaimedMeanwhile) {
		return s.concurrentPairing(userID)
	}
	if err != nil {
		return nil, err
	}

	if partner == nil {
		// 没有候选：挂入等待队列，暂存筛选条件供后来者反向匹配
		now := time.Now()
		updates := map[string]interface{}{
			"status":            model.StatusSearching,
			"partner_id":        nil,
			"search_tier":       tier,
			"search_gender":     filters.Gender,
			"search_region":     filters.Region,
			"search_age":        filters.Age,
			"search_occupation": filters.Occupation,
			"search_purpose":    filters.Purpose,
			"search_started_at": now,
		}
		res := s.db.Model(&model.User{}).
			Where("id = ? AND status = ?", userID, gateStatus).
			Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to enqueue searcher: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// 扫描期间被别人认领（或并发取消了排队）
			return s.concurrentPairing(userID)
		}
		return &SearchResult{Matched: false}, nil
	}

	// 默认策略：匹配到手才扣费，避免向没匹配上的用户收钱
	if cost > 0 && !charged {
		if err := s.credits.Debit(userID, cost, model.CreditKindSearchFee, nil); err != nil {
			// 余额在预检后被并发花掉，匹配保留，仅记录异常
			log.Printf("[ERROR] Post-match debit failed: user=%s, cost=%d, err=%v", userID, cost, err)
		}
	}

	pushEvent(s.relay, user.ID, "matched", partnerView(partner))
	pushEvent(s.relay, partner.ID, "matched", partnerView(user))

	return &SearchResult{Matched: true, Partner: partner}, nil
}

// partnerView 匹配通知里暴露给对端的资料子集
func partnerView(u *model.User) map[string]interface{} {
	return map[string]interface{}{
		"partner_id": u.ID,
		"gender":     u.Gender,
		"age":        u.Age,
		"region":     u.Region,
		"occupation": u.Occupation,
		"purpose":    u.Purpose,
	}
}

// concurrentPairing 自身迁移输掉竞争后的收尾：重读自己的最新状态
// 已被认领则把既成的配对作为结果返回（matched 事件由认领方推送）
func (s *MatchService) concurrentPairing(userID uuid.UUID) (*SearchResult, error) {
	user, err := s.users.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if user.Status == model.StatusChatting && user.PartnerID != nil {
		partner, err := s.users.GetUser(*user.PartnerID)
		if err != nil {
			return nil, err
		}
		return &SearchResult{Matched: true, Partner: partner}, nil
	}
	// 并发取消把自己移出了队列：不重新入队
	return &SearchResult{Matched: false}, nil
}

// claimCandidate 扫描候选并尝试原子认领
// 认领和自身迁移在同一事务里，双方的前置条件都写进 WHERE：
// 任意一侧在竞争中被抢走，整个配对回滚，不会出现单边引用
// 返回 nil 表示当前没有可认领的候选
func (s *MatchService) claimCandidate(user *model.User, gateStatus string, filters model.SearchFilters) (*model.User, error) {
	var candidates []model.User
	err := s.db.
		Where("status = ?", model.StatusSearching).
		Where("id <> ?", user.ID).
		// 拉黑双向排除：谁拉黑的都不配
		Where("id NOT IN (SELECT target_user_id FROM user_blocks WHERE user_id = ?)", user.ID).
		Where("id NOT IN (SELECT user_id FROM user_blocks WHERE target_user_id = ?)", user.ID).
		Order("search_started_at ASC"). // 等得最久的优先，但顺序不构成契约
		Limit(candidateScanLimit).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to scan candidates: %w", err)
	}

	for i := range candidates {
		cand := &candidates[i]

		// 正向：候选资料要满足搜索者的筛选条件
		if !filters.Accepts(cand) {
			continue
		}
		// 互惠：候选暂存的筛选条件（如果有）也要接受搜索者的资料
		if !cand.StoredFilters().Accepts(user) {
			continue
		}

		claimErr := s.db.Transaction(func(tx *gorm.DB) error {
			// 原子认领：行仍处于 searching 才会被改写，输掉竞争就换下一个候选
			res := tx.Model(&model.User{}).
				Where("id = ? AND status = ?", cand.ID, model.StatusSearching).
				Updates(map[string]interface{}{
					"status":            model.StatusChatting,
					"partner_id":        user.ID,
					"search_tier":       "",
					"search_gender":     "",
					"search_region":     "",
					"search_age":        0,
					"search_occupation": "",
					"search_purpose":    "",
					"search_started_at": nil,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to claim candidate: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return errClaimLost
			}

			// 自身迁移同样带前置条件：入口之后被人认领则整体回滚
			self := tx.Model(&model.User{}).
				Where("id = ? AND status = ?", user.ID, gateStatus).
				Updates(map[string]interface{}{
					"status":            model.StatusChatting,
					"partner_id":        cand.ID,
					"search_tier":       "",
					"search_gender":     "",
					"search_region":     "",
					"search_age":        0,
					"search_occupation": "",
					"search_purpose":    "",
					"search_started_at": nil,
				})
			if self.Error != nil {
				return fmt.Errorf("failed to update matcher state: %w", self.Error)
			}
			if self.RowsAffected == 0 {
				return errClaimedMeanwhile
			}
			return nil
		})
		if errors.Is(claimErr, errClaimLost) {
			continue
		}
		if claimErr != nil {
			return nil, claimErr
		}

		cand.Status = model.StatusChatting
		cand.PartnerID = &user.ID
		return cand, nil
	}

	return nil, nil
}

// CancelSearch 取消排队
// searching → idle 并清空筛选条件；已经 idle 时静默成功；chatting 时拒绝
func (s *MatchService) CancelSearch(userID uuid.UUID) error {
	res := s.db.Model(&model.User{}).
		Where("id = ? AND status = ?", userID, model.StatusSearching).
		Updates(map[string]interface{}{
			"status":            model.StatusIdle,
			"partner_id":        nil,
			"search_tier":       "",
			"search_gender":     "",
			"search_region":     "",
			"search_age":        0,
			"search_occupation": "",
			"search_purpose":    "",
			"search_started_at": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to cancel search: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var user model.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to query user: %w", err)
	}
	if user.Status == model.StatusChatting {
		// 取消排队不能用来结束进行中的会话
		return ErrAlreadyInSession
	}
	return nil
}
