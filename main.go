package main

import (
	"log"
	"time"

	"anon_chat/config"
	"anon_chat/handler"
	"anon_chat/middleware"
	"anon_chat/service"
	"anon_chat/utils"

	"github.com/gin-gonic/gin"
)

func init() {
	// 服务端统一使用 UTC
	time.Local = time.UTC
}

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化数据库
	if err := utils.InitDB(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer utils.CloseDB()

	// 初始化 Redis
	if err := utils.InitRedis(cfg); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer utils.CloseRedis()

	// 初始化认证中间件
	middleware.InitAuth(cfg.JWTSecret)

	// 创建服务
	userSvc := service.NewUserService(utils.GetDB(), cfg)
	rateLimiter := service.NewRateLimiter(utils.GetDB(), cfg)
	creditSvc := service.NewCreditService(utils.GetDB())
	matchSvc := service.NewMatchService(utils.GetDB(), cfg, userSvc, rateLimiter, creditSvc)
	sessionSvc := service.NewSessionService(utils.GetDB(), utils.GetRedis(), userSvc, rateLimiter)
	modSvc := service.NewModerationService(utils.GetDB(), utils.GetRedis(), cfg)
	voteSvc := service.NewVoteService(utils.GetDB(), utils.GetRedis())

	// 创建 WebSocket Hub 并互相注入：Hub 既是投递通道也是入站帧入口
	hub := handler.NewHub(utils.GetRedis())
	hub.SetSessionService(sessionSvc)
	matchSvc.SetRelay(hub)
	sessionSvc.SetRelay(hub)

	// 跨 Pod 消息订阅
	hub.StartPubSub()
	defer hub.StopPubSub()

	// 创建处理器
	profileHandler := handler.NewProfileHandler(userSvc)
	matchHandler := handler.NewMatchHandler(matchSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc)
	voteHandler := handler.NewVoteHandler(voteSvc)
	creditHandler := handler.NewCreditHandler(creditSvc)
	adminHandler := handler.NewAdminHandler(modSvc, creditSvc)

	// 创建 Gin 路由
	r := gin.Default()

	// 注册统一错误处理中间件
	r.Use(middleware.ErrorHandlerMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		utils.SuccessResponse(c, gin.H{"status": "ok"})
	})

	// WebSocket 连接（token 认证，不走 HTTP 中间件）
	r.GET("/ws", handler.HandleWebSocket(hub))

	// HTTP API 路由组（需要认证）
	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware())
	{
		// 资料
		api.POST("/profile", profileHandler.UpsertProfile)
		api.GET("/profile", profileHandler.GetProfile)

		// 匹配
		api.POST("/search", matchHandler.Search)
		api.POST("/search/cancel", matchHandler.CancelSearch)

		// 会话
		api.POST("/chat/message", sessionHandler.SendMessage)
		api.POST("/chat/typing", sessionHandler.Typing)
		api.POST("/chat/end", sessionHandler.EndSession)
		api.POST("/chat/block", sessionHandler.Block)
		api.POST("/chat/report", sessionHandler.Report)

		// 互评
		api.POST("/users/:id/vote", voteHandler.Vote)
		api.GET("/users/:id/likes", voteHandler.LikeCount)

		// 积分
		api.GET("/credits", creditHandler.GetBalance)
		api.POST("/credits/gift", creditHandler.SendGift)
	}

	// 管理员 API 路由组（需要认证 + 管理员权限）
	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware())
	admin.Use(handler.AdminAuthMiddleware(userSvc))
	{
		admin.POST("/users/:id/ban", adminHandler.Ban)
		admin.POST("/users/:id/unban", adminHandler.Unban)
		admin.POST("/users/:id/mute", adminHandler.Mute)
		admin.POST("/users/:id/unmute", adminHandler.Unmute)
		admin.POST("/users/:id/credits", adminHandler.AdjustCredits)
	}

	// 启动服务
	log.Printf("🚀 anon_chat service starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
