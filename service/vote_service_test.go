package service_test

import (
	"context"
	"strconv"
	"testing"

	"anon_chat/model"
	"anon_chat/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoteIncrementsCounter(t *testing.T) {
	env := newTestEnv(t)
	votes := service.NewVoteService(env.db, env.rdb)
	voter := env.createUser(t)
	target := env.createUser(t)

	require.NoError(t, votes.Vote(voter.ID, target.ID, model.VoteLike))
	assert.Equal(t, 1, env.reload(t, target.ID).LikeCount)
	assert.Zero(t, env.reload(t, target.ID).DislikeCount)

	other := env.createUser(t)
	require.NoError(t, votes.Vote(other.ID, target.ID, model.VoteDislike))
	got := env.reload(t, target.ID)
	assert.Equal(t, 1, got.LikeCount)
	assert.Equal(t, 1, got.DislikeCount)
}

func TestVoteOncePerPair(t *testing.T) {
	env := newTestEnv(t)
	votes := service.NewVoteService(env.db, env.rdb)
	voter := env.createUser(t)
	target := env.createUser(t)

	require.NoError(t, votes.Vote(voter.ID, target.ID, model.VoteLike))

	// 同向、反向重复投都拒绝，计数不再变
	require.ErrorIs(t, votes.Vote(voter.ID, target.ID, model.VoteLike), service.ErrAlreadyVoted)
	require.ErrorIs(t, votes.Vote(voter.ID, target.ID, model.VoteDislike), service.ErrAlreadyVoted)
	got := env.reload(t, target.ID)
	assert.Equal(t, 1, got.LikeCount)
	assert.Zero(t, got.DislikeCount)

	// 反方向的一票是另一个 pair，不受影响
	require.NoError(t, votes.Vote(target.ID, voter.ID, model.VoteLike))
}

func TestVoteRejectsSelfAndBadValue(t *testing.T) {
	env := newTestEnv(t)
	votes := service.NewVoteService(env.db, env.rdb)
	a := env.createUser(t)
	b := env.createUser(t)

	require.ErrorIs(t, votes.Vote(a.ID, a.ID, model.VoteLike), service.ErrSelfTarget)
	require.ErrorIs(t, votes.Vote(a.ID, b.ID, "meh"), service.ErrInvalidVote)
	require.ErrorIs(t, votes.Vote(a.ID, uuid.New(), model.VoteLike), service.ErrNotFound)
	assert.Zero(t, env.reload(t, b.ID).LikeCount)
}

func TestLikeCountCacheFallback(t *testing.T) {
	env := newTestEnv(t)
	votes := service.NewVoteService(env.db, env.rdb)
	target := env.createUser(t, func(u *model.User) { u.LikeCount = 7 })

	// 缓存未命中：回源数据库并回填
	n, err := votes.LikeCount(target.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	cached, err := env.rdb.Get(context.Background(),"votes:like:"+target.ID.String()).Result()
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(7), cached)

	// 投票后缓存跟进
	voter := env.createUser(t)
	require.NoError(t, votes.Vote(voter.ID, target.ID, model.VoteLike))
	n, err = votes.LikeCount(target.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestLikeCountUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	votes := service.NewVoteService(env.db, env.rdb)
	_, err := votes.LikeCount(uuid.New())
	require.ErrorIs(t, err, service.ErrNotFound)
}
