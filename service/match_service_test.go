package service_test

import (
	"sync"
	"testing"

	"anon_chat/model"
	"anon_chat/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchQueuesThenPairs(t *testing.T) {
	env := newTestEnv(t)
	a := env.createUser(t)
	b := env.createUser(t)

	// 池子是空的：A 进入等待队列
	res, err := env.match.Search(a.ID, model.TierRandom, model.SearchFilters{})
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, model.StatusSearching, env.reload(t, a.ID).Status)

	// B 随后搜索：与 A 原子配对
	res, err = env.match.Search(b.ID, model.TierRandom, model.SearchFilters{})
	require.NoError(t, err)
	require.True(t, res.Matched)
	require.NotNil(t, res.Partner)
	assert.Equal(t, a.ID, res.Partner.ID)

	env.assertPaired(t, a.ID, b.ID)
	env.assertInvariants(t)

	// 双方都收到 matched 通知
	assert.Len(t, env.relay.eventsOfType(a.ID, "matched"), 1)
	assert.Len(t, env.relay.eventsOfType(b.ID, "matched"), 1)
}

func TestSearchInsufficientCredits(t *testing.T) {
	env := newTestEnv(t)
	a := env.createUser(t, func(u *model.User) { u.Credits = 3 })

	// 高级档费用 5，余额 3：拒绝且不产生任何状态变更
	_, err := env.match.Search(a.ID, model.TierAdvanced, model.SearchFilters{Region: "eu"})
	require.ErrorIs(t, err, service.ErrInsufficientCredits)

	got := env.reload(t, a.ID)
	assert.Equal(t, model.StatusIdle, got.Status)
	assert.Equal(t, 3, got.Credits)
}

func TestSearchChargesOnlyOnMatch(t *testing.T) {
	env := newTestEnv(t)
	a := env.createUser(t, func(u *model.User) { u.Gender = "male" })
	b := env.createUser(t, func(u *model.User) { u.Credits = 10 })

	// 没有候选：挂队列，不扣费
	res, err := env.match.Search(b.ID, model.TierGender, model.SearchFilters{Gender: "male"})
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, 10, env.reload(t, b.ID).Credits)

	require.NoError(t, env.match.CancelSearch(b.ID))

	// A 先排队，B 再搜：配对成功，此时才扣费
	_, err = env.match.Search(a.ID, model.TierRandom, model.SearchFilters{})
	require.NoError(t, err)
	res, err = env.match.Search(b.ID, model.TierGender, model.SearchFilters{Gender: "male"})
	require.NoError(t, err)
	require.True(t, res.Matched)
	assert.Equal(t, 10-env.cfg.GenderSearchCost, env.reload(t, b.ID).Credits)
}

func TestSearchChargeOnAttemptPolicy(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.ChargeOnAttempt = true
	b := env.createUser(t, func(u *model.User) { u.Credits = 10 })

	// 旧版策略：没匹配上也先扣
	res, err := env.match.Search(b.ID, model.TierGender, model.SearchFilters{Gender: "male"})
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, 10-env.cfg.GenderSearchCost, env.reload(t, b.ID).Credits)
}

func TestSearchGenderTier(t *testing.T) {
	env := newTestEnv(t)
	female := env.createUser(t, func(u *model.User) { u.Gender = "female" })
	male := env.createUser(t, func(u *model.User) { u.Gender = "male" })
	seeker := env.createUser(t)

	// 女性带一个男性不满足的暂存条件先排队，男性随后随机搜索配不上她，也挂入队列
	_, err := env.match.Search(female.ID, model.TierAdvanced, model.SearchFilters{Region: "asia"})
	require.NoError(t, err)
	res, err := env.match.Search(male.ID, model.TierRandom, model.SearchFilters{})
	require.NoError(t, err)
	require.False(t, res.Matched)

	// 定向找男性：跳过排在前面的女性候选
	res, err = env.match.Search(seeker.ID, model.TierGender, model.SearchFilters{Gender: "male"})
	require.NoError(t, err)
	require.True(t, res.Matched)
	assert.Equal(t, male.ID, res.Partner.ID)
	env.assertInvariants(t)
}

func TestSearchGenderTierRequiresGender(t *testing.T) {
	env := newTestEnv(t)
	a := env.createUser(t)

	_, err := env.match.Search(a.ID, model.TierGender, model.SearchFilters{})
	require.ErrorIs(t, err, service.ErrInvalidSearch)
}

func TestSearchReciprocity(t *testing.T) {
	env := newTestEnv(t)
	// 候选只接受 region=asia 的对象
	picky := env.createUser(t, func(u *model.User) { u.Credits = 20 })
	_, err := env.match.Search(picky.ID, model.TierAdvanced, model.SearchFilters{Region: "asia"})
	require.NoError(t, err)

	// 搜索者 region=eu：正向条件满足（无筛选），但候选的暂存条件拒绝 → 不配对
	seeker := env.createUser(t)
	res, err := env.match.Search(seeker.ID, model.TierRandom, model.SearchFilters{})
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, model.StatusSearching, env.reload(t, seeker.ID).Status)

	// region=asia 的搜索者则可以
	asian := env.createUser(t, func(u *model.User) { u.Region = "asia" })
	res, err = env.match.Search(asian.ID, model.TierRandom, model.SearchFilters{})
	require.NoError(t, err)
	require.True(t, res.Matched)
	assert.Equal(t, picky.ID, res.Partner.ID)
	env.assertInvariants(t)
}

func TestSearchNeverPairsBlockedUsers(t *testing.T) {
	env := newTestEnv(t)
	a := env.createUser(t)
	b := env.createUser(t)
	require.NoError(t, env.db.Create(&model.UserBlock{UserID: a.ID, TargetUserID: b.ID}).Error)

	// 拉黑双向生效：无论谁发起都配不上
	_, err := env.match.Search(b.ID, model.TierRandom, model.SearchFilters{})
	require.NoError(t, err)
	res, err := env.match.Search(a.ID, model.TierRandom, model.SearchFilters{})
	require.NoError(t, err)
	assert.False(t, res.Matched)

	require.NoError(t, env.match.CancelSearch(a.ID))
	res, err = env.match.Search(b.ID, model.TierRandom, model.SearchFilters{})
	require.NoError(t, err)
	assert.False(t, res.Matched)
	env.assertInvariants(t)
}

func TestSearchWhileChattingRejected(t *testing.T) {
	env := newTestEnv(t)
	a := env.createUser(t)
	b := env.createUser(t)
	_, err := env.match.Search(a.ID, model.TierRandom, model.SearchFilters{})
	require.NoError(t, err)
	_, err = env.match.Search(b.ID, model.TierRandom, model.SearchFilters{})
	require.NoError(t, err)

	_, err = env.match.Search(a.ID, model.TierRandom, model.SearchFilters{})
	require.ErrorIs(t, err, service.ErrAlreadyInSession)
}

func TestSearchBannedRejectedAtGate(t *testing.T) {
	env := newTestEnv(t)
	a := env.createUser(t, func(u *model.User) { u.Banned = true })

	_, err := env.match.Search(a.ID, model.TierRandom, model.SearchFilters{})
	require.ErrorIs(t, err, service.ErrBanned)
	assert.Equal(t, model.StatusIdle, env.reload(t, a.ID).Status)
}

func TestSearchUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	ghost := env.createUser(t)
	require.NoError(t, env.db.Delete(&model.User{}, "id = ?", ghost.ID).Error)

	_, err := env.match.Search(ghost.ID, model.TierRandom, model.SearchFilters{})
	require.ErrorIs(t, err, service.ErrNotFound)
}

// 并发竞争同一个候选：认领只能成功一次，其余搜索者要么互相配对要么排队
func TestConcurrentSearchNoDoubleClaim(t *testing.T) {
	env := newTestEnv(t)
	candidate := env.createUser(t)
	_, err := env.match.Search(candidate.ID, model.TierRandom, model.SearchFilters{})
	require.NoError(t, err)

	const seekers = 6
	ids := make([]*model.User, seekers)
	for i := range ids {
		ids[i] = env.createUser(t)
	}

	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := env.match.Search(ids[idx].ID, model.TierRandom, model.SearchFilters{})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// 候选只被一个人认领；全表不变量成立
	claimed := env.reload(t, candidate.ID)
	require.Equal(t, model.StatusChatting, claimed.Status)
	claimCount := 0
	for _, u := range ids {
		got := env.reload(t, u.ID)
		if got.PartnerID != nil && *got.PartnerID == candidate.ID {
			claimCount++
		}
	}
	assert.Equal(t, 1, claimCount)
	env.assertInvariants(t)
}

// 排队中的用户重复搜索，同时被另一个搜索者认领：
// 自身迁移输掉竞争时必须让位给认领方，不能反向覆盖掉既成的配对
func TestConcurrentResearchKeepsSymmetry(t *testing.T) {
	env := newTestEnv(t)
	a := env.createUser(t)
	b := env.createUser(t)

	reset := map[string]interface{}{
		"status":            model.StatusIdle,
		"partner_id":        nil,
		"search_started_at": nil,
	}

	for i := 0; i < 400; i++ {
		_, err := env.match.Search(a.ID, model.TierRandom, model.SearchFilters{})
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			// 重复搜索撞上 B 的认领：要么拿到既成配对，要么在入口被拒
			_, err := env.match.Search(a.ID, model.TierRandom, model.SearchFilters{})
			if err != nil {
				assert.ErrorIs(t, err, service.ErrAlreadyInSession)
			}
		}()
		go func() {
			defer wg.Done()
			_, err := env.match.Search(b.ID, model.TierRandom, model.SearchFilters{})
			assert.NoError(t, err)
		}()
		wg.Wait()

		// B 若认领成功，A 必须同时指回 B
		got := env.reload(t, b.ID)
		if got.Status == model.StatusChatting {
			env.assertPaired(t, a.ID, b.ID)
		}
		env.assertInvariants(t)

		require.NoError(t, env.db.Model(&model.User{}).
			Where("id IN ?", []uuid.UUID{a.ID, b.ID}).
			Updates(reset).Error)
	}
}

func TestCancelSearch(t *testing.T) {
	env := newTestEnv(t)
	a := env.createUser(t)

	_, err := env.match.Search(a.ID, model.TierAdvanced, model.SearchFilters{Region: "eu"})
	require.NoError(t, err)

	require.NoError(t, env.match.CancelSearch(a.ID))
	got := env.reload(t, a.ID)
	assert.Equal(t, model.StatusIdle, got.Status)
	assert.Empty(t, got.SearchRegion)
	assert.Empty(t, got.SearchTier)

	// 幂等：已经 idle 再取消不报错
	require.NoError(t, env.match.CancelSearch(a.ID))

	// chatting 状态下取消排队被拒绝
	b := env.createUser(t)
	_, err = env.match.Search(b.ID, model.TierRandom, model.SearchFilters{})
	require.NoError(t, err)
	_, err = env.match.Search(a.ID, model.TierRandom, model.SearchFilters{})
	require.NoError(t, err)
	require.ErrorIs(t, env.match.CancelSearch(a.ID), service.ErrAlreadyInSession)
}
