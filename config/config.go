package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	DatabaseURL   string
	RedisURL      string
	RedisPassword string
	RedisDB       int
	JWTSecret     string
	AdminUserID   string // 管理员用户 ID（UUID 字符串）

	// 积分经济
	GenderSearchCost   int  // 定向性别搜索费用
	AdvancedSearchCost int  // 高级筛选搜索费用
	ChargeOnAttempt    bool // true = 发起搜索即扣费（旧版策略），false = 匹配成功才扣费
	WelcomeCredits     int  // 新用户注册赠送积分

	// 限流
	RateMinIntervalMS int // 两次操作的最小间隔（毫秒）
	RateSpamThreshold int // 连续超速次数阈值，超过即禁言
	RateMuteMinutes   int // 触发限流后的禁言时长（分钟）
}

func Load() *Config {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	genderCost, _ := strconv.Atoi(getEnv("GENDER_SEARCH_COST", "2"))
	advancedCost, _ := strconv.Atoi(getEnv("ADVANCED_SEARCH_COST", "5"))
	welcomeCredits, _ := strconv.Atoi(getEnv("WELCOME_CREDITS", "10"))
	minInterval, _ := strconv.Atoi(getEnv("RATE_MIN_INTERVAL_MS", "700"))
	spamThreshold, _ := strconv.Atoi(getEnv("RATE_SPAM_THRESHOLD", "5"))
	muteMinutes, _ := strconv.Atoi(getEnv("RATE_MUTE_MINUTES", "10"))

	return &Config{
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		JWTSecret:     os.Getenv("JWT_SECRET"),
		AdminUserID:   os.Getenv("ADMIN_USER_ID"),

		GenderSearchCost:   genderCost,
		AdvancedSearchCost: advancedCost,
		ChargeOnAttempt:    getEnv("CHARGE_ON_ATTEMPT", "false") == "true",
		WelcomeCredits:     welcomeCredits,

		RateMinIntervalMS: minInterval,
		RateSpamThreshold: spamThreshold,
		RateMuteMinutes:   muteMinutes,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
