package service_test

import (
	"testing"
	"time"

	"anon_chat/model"
	"anon_chat/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterMutesAfterBurst(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.RateMinIntervalMS = 60_000
	a := env.createUser(t)

	// 连续快速操作：超过阈值后触发临时禁言
	var limited bool
	user := env.reload(t, a.ID)
	for i := 0; i < 10; i++ {
		if err := env.rate.Check(user); err != nil {
			require.ErrorIs(t, err, service.ErrRateLimited)
			limited = true
			break
		}
	}
	require.True(t, limited, "burst never tripped the limiter")

	got := env.reload(t, a.ID)
	require.NotNil(t, got.MuteUntil)
	assert.True(t, got.MuteUntil.After(time.Now()))
	assert.Zero(t, got.SpamScore)

	// 禁言期内在准入检查处被拒绝
	require.ErrorIs(t, env.users.EnsureActive(got), service.ErrRateLimited)
}

func TestRateLimiterNormalIntervalResets(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.RateMinIntervalMS = 500
	a := env.createUser(t)

	past := time.Now().Add(-time.Minute)
	user := env.reload(t, a.ID)
	user.LastActionAt = &past
	user.SpamScore = 3

	// 间隔正常：计数清零，不触发
	require.NoError(t, env.rate.Check(user))
	assert.Zero(t, env.reload(t, a.ID).SpamScore)
}

func TestRateLimiterAdminExempt(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.RateMinIntervalMS = 60_000
	admin := env.createUser(t)
	env.cfg.AdminUserID = admin.ID.String()

	user := env.reload(t, admin.ID)
	for i := 0; i < 20; i++ {
		require.NoError(t, env.rate.Check(user))
	}
	assert.Nil(t, env.reload(t, admin.ID).MuteUntil)
}

func TestMuteExpiry(t *testing.T) {
	env := newTestEnv(t)
	expired := time.Now().Add(-time.Minute)
	a := env.createUser(t, func(u *model.User) { u.MuteUntil = &expired })

	// 禁言到期后自动恢复
	require.NoError(t, env.users.EnsureActive(env.reload(t, a.ID)))
}
