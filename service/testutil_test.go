package service_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"anon_chat/config"
	"anon_chat/model"
	"anon_chat/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB 内存 sqlite
// 连接数限成 1：sqlite 的 :memory: 对每个连接是独立的库
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = database.AutoMigrate(
		&model.User{},
		&model.UserBlock{},
		&model.ChatMessage{},
		&model.Vote{},
		&model.Report{},
		&model.CreditEntry{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

// setupTestRedis miniredis 客户端
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func testConfig() *config.Config {
	return &config.Config{
		GenderSearchCost:   2,
		AdvancedSearchCost: 5,
		WelcomeCredits:     10,
		RateMinIntervalMS:  0, // 默认关掉限流，相关测试单独开
		RateSpamThreshold:  3,
		RateMuteMinutes:    10,
	}
}

// fakeRelay 测试用投递通道，记录送达的事件并可模拟对端掉线
type fakeRelay struct {
	mu      sync.Mutex
	sent    map[uuid.UUID][]map[string]interface{}
	offline map[uuid.UUID]bool
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{
		sent:    make(map[uuid.UUID][]map[string]interface{}),
		offline: make(map[uuid.UUID]bool),
	}
}

func (f *fakeRelay) Send(userID uuid.UUID, payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline[userID] {
		return false
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return false
	}
	f.sent[userID] = append(f.sent[userID], msg)
	return true
}

func (f *fakeRelay) NotifyTyping(userID uuid.UUID) {}

func (f *fakeRelay) setOffline(userID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline[userID] = true
}

// eventsOfType 取某用户收到的指定类型事件
func (f *fakeRelay) eventsOfType(userID uuid.UUID, eventType string) []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]interface{}
	for _, msg := range f.sent[userID] {
		if msg["type"] == eventType {
			out = append(out, msg)
		}
	}
	return out
}

// testEnv 组装好的服务栈
type testEnv struct {
	db      *gorm.DB
	rdb     *redis.Client
	cfg     *config.Config
	users   *service.UserService
	rate    *service.RateLimiter
	credits *service.CreditService
	match   *service.MatchService
	session *service.SessionService
	relay   *fakeRelay
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	rdb := setupTestRedis(t)
	cfg := testConfig()

	users := service.NewUserService(db, cfg)
	rate := service.NewRateLimiter(db, cfg)
	credits := service.NewCreditService(db)
	match := service.NewMatchService(db, cfg, users, rate, credits)
	session := service.NewSessionService(db, rdb, users, rate)

	relay := newFakeRelay()
	match.SetRelay(relay)
	session.SetRelay(relay)

	return &testEnv{
		db:      db,
		rdb:     rdb,
		cfg:     cfg,
		users:   users,
		rate:    rate,
		credits: credits,
		match:   match,
		session: session,
		relay:   relay,
	}
}

// createUser 落一个默认资料的用户
func (e *testEnv) createUser(t *testing.T, mutate ...func(*model.User)) *model.User {
	t.Helper()
	u := &model.User{
		ID:         uuid.New(),
		Gender:     "female",
		Age:        25,
		Region:     "eu",
		Occupation: "engineer",
		Purpose:    "chat",
		Status:     model.StatusIdle,
		Credits:    10,
	}
	for _, m := range mutate {
		m(u)
	}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

// reload 重新读取用户最新状态
func (e *testEnv) reload(t *testing.T, id uuid.UUID) *model.User {
	t.Helper()
	var u model.User
	require.NoError(t, e.db.First(&u, "id = ?", id).Error)
	return &u
}

// assertPaired 校验两人互为对端
func (e *testEnv) assertPaired(t *testing.T, aID, bID uuid.UUID) {
	t.Helper()
	a := e.reload(t, aID)
	b := e.reload(t, bID)
	require.Equal(t, model.StatusChatting, a.Status)
	require.Equal(t, model.StatusChatting, b.Status)
	require.NotNil(t, a.PartnerID)
	require.NotNil(t, b.PartnerID)
	require.Equal(t, bID, *a.PartnerID)
	require.Equal(t, aID, *b.PartnerID)
}

// assertInvariants 全表校验状态机不变量：
// status 三值之一；partner 非空 ⟺ chatting；partner 引用对称
func (e *testEnv) assertInvariants(t *testing.T) {
	t.Helper()
	var all []model.User
	require.NoError(t, e.db.Find(&all).Error)

	byID := make(map[uuid.UUID]*model.User, len(all))
	for i := range all {
		byID[all[i].ID] = &all[i]
	}
	for i := range all {
		u := &all[i]
		switch u.Status {
		case model.StatusIdle, model.StatusSearching, model.StatusChatting:
		default:
			t.Fatalf("user %s has invalid status %q", u.ID, u.Status)
		}
		if u.Status == model.StatusChatting {
			require.NotNil(t, u.PartnerID, "chatting user %s has no partner", u.ID)
			partner := byID[*u.PartnerID]
			require.NotNil(t, partner, "partner of %s does not exist", u.ID)
			require.Equal(t, model.StatusChatting, partner.Status)
			require.NotNil(t, partner.PartnerID)
			require.Equal(t, u.ID, *partner.PartnerID, "partner refs not symmetric")
		} else {
			require.Nil(t, u.PartnerID, "non-chatting user %s has partner ref", u.ID)
		}
	}
}
