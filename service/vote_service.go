package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"anon_chat/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// VoteService 用户互评（赞 / 踩）
// 每个 (voter, target) 至多记一票，重复投（无论同向反向）一律拒绝
type VoteService struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewVoteService(db *gorm.DB, rdb *redis.Client) *VoteService {
	return &VoteService{db: db, rdb: rdb}
}

func likeCountKey(userID uuid.UUID) string {
	return "votes:like:" + userID.String()
}

// Vote 投票
func (s *VoteService) Vote(voterID, targetID uuid.UUID, value string) error {
	if voterID == targetID {
		return ErrSelfTarget
	}
	if value != model.VoteLike && value != model.VoteDislike {
		return ErrInvalidVote
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var target model.User
		if err := tx.First(&target, "id = ?", targetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to query target: %w", err)
		}

		var existing model.Vote
		err := tx.Where("voter_id = ? AND target_user_id = ?", voterID, targetID).
			First(&existing).Error
		if err == nil {
			return ErrAlreadyVoted
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to query existing vote: %w", err)
		}

		if err := tx.Create(&model.Vote{
			VoterID:      voterID,
			TargetUserID: targetID,
			Value:        value,
		}).Error; err != nil {
			return fmt.Errorf("failed to record vote: %w", err)
		}

		column := "like_count"
		if value == model.VoteDislike {
			column = "dislike_count"
		}
		return tx.Model(&target).
			UpdateColumn(column, gorm.Expr(column+" + 1")).Error
	})
	if err != nil {
		return err
	}

	// 缓存计数跟进（尽力而为）
	if s.rdb != nil && value == model.VoteLike {
		ctx := context.Background()
		_, _ = s.rdb.Incr(ctx, likeCountKey(targetID)).Result()
		_ = s.rdb.Expire(ctx, likeCountKey(targetID), time.Hour).Err()
	}
	return nil
}

// LikeCount 查询获赞数，缓存优先，未命中回源数据库并回填
func (s *VoteService) LikeCount(targetID uuid.UUID) (int, error) {
	ctx := context.Background()
	key := likeCountKey(targetID)

	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, key).Result(); err == nil {
			if n, err := strconv.Atoi(cached); err == nil {
				// 活跃用户顺手续期
				_ = s.rdb.Expire(ctx, key, time.Hour).Err()
				return n, nil
			}
		}
	}

	var user model.User
	if err := s.db.Select("like_count").First(&user, "id = ?", targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to query like count: %w", err)
	}

	if s.rdb != nil {
		_ = s.rdb.Set(ctx, key, strconv.Itoa(user.LikeCount), time.Hour).Err()
	}
	return user.LikeCount, nil
}
