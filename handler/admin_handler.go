package handler

import (
	"time"

	"anon_chat/middleware"
	"anon_chat/service"
	"anon_chat/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminAuthMiddleware 管理员鉴权中间件：调用方必须是配置的管理员身份
func AdminAuthMiddleware(userSvc *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := middleware.GetUserID(c)
		if !exists {
			utils.Unauthorized(c, "unauthorized")
			c.Abort()
			return
		}
		if !userSvc.IsAdmin(userID) {
			utils.Forbidden(c, "administrator privileges required")
			c.Abort()
			return
		}
		c.Next()
	}
}

type AdminHandler struct {
	modSvc    *service.ModerationService
	creditSvc *service.CreditService
}

func NewAdminHandler(modSvc *service.ModerationService, creditSvc *service.CreditService) *AdminHandler {
	return &AdminHandler{modSvc: modSvc, creditSvc: creditSvc}
}

func (h *AdminHandler) targetID(c *gin.Context) (uuid.UUID, bool) {
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.NotFound(c, "target user not found")
		return uuid.Nil, false
	}
	return targetID, true
}

// Ban 封禁用户
func (h *AdminHandler) Ban(c *gin.Context) {
	adminID, _ := middleware.GetUserID(c)
	targetID, ok := h.targetID(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.modSvc.Ban(adminID, targetID, req.Reason); err != nil {
		utils.ServiceError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "user banned", nil)
}

// Unban 解封用户
func (h *AdminHandler) Unban(c *gin.Context) {
	adminID, _ := middleware.GetUserID(c)
	targetID, ok := h.targetID(c)
	if !ok {
		return
	}

	if err := h.modSvc.Unban(adminID, targetID); err != nil {
		utils.ServiceError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "user unbanned", nil)
}

// Mute 禁言用户
func (h *AdminHandler) Mute(c *gin.Context) {
	adminID, _ := middleware.GetUserID(c)
	targetID, ok := h.targetID(c)
	if !ok {
		return
	}

	var req struct {
		Minutes int `json:"minutes" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if err := h.modSvc.Mute(adminID, targetID, time.Duration(req.Minutes)*time.Minute); err != nil {
		utils.ServiceError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "user muted", nil)
}

// Unmute 解除禁言
func (h *AdminHandler) Unmute(c *gin.Context) {
	adminID, _ := middleware.GetUserID(c)
	targetID, ok := h.targetID(c)
	if !ok {
		return
	}

	if err := h.modSvc.Unmute(adminID, targetID); err != nil {
		utils.ServiceError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "user unmuted", nil)
}

// AdjustCredits 调整用户余额（正数充值，负数扣减）
func (h *AdminHandler) AdjustCredits(c *gin.Context) {
	targetID, ok := h.targetID(c)
	if !ok {
		return
	}

	var req struct {
		Delta int `json:"delta" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if err := h.creditSvc.Adjust(targetID, req.Delta); err != nil {
		utils.ServiceError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "credits adjusted", nil)
}
