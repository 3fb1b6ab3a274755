package handler

import (
	"anon_chat/middleware"
	"anon_chat/service"
	"anon_chat/utils"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessionSvc *service.SessionService
}

func NewSessionHandler(sessionSvc *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// SendMessage 向会话对端转发消息
func (h *SessionHandler) SendMessage(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	delivered, err := h.sessionSvc.Relay(userID, req.Content)
	if err != nil {
		utils.ServiceError(c, err)
		return
	}
	if !delivered {
		// 对端不可达：会话已被隐式拆除
		utils.SuccessWithMessage(c, "partner unreachable, session ended", gin.H{"delivered": false})
		return
	}
	utils.SuccessResponse(c, gin.H{"delivered": true})
}

// Typing 转发"正在输入"提示
func (h *SessionHandler) Typing(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	if err := h.sessionSvc.NotifyTyping(userID); err != nil {
		utils.ServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, nil)
}

// EndSession 主动结束会话
func (h *SessionHandler) EndSession(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	if err := h.sessionSvc.EndSession(userID); err != nil {
		utils.ServiceError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "session ended", nil)
}

// Block 拉黑对端并结束会话
func (h *SessionHandler) Block(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	if err := h.sessionSvc.Block(userID); err != nil {
		utils.ServiceError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "partner blocked, session ended", nil)
}

// Report 举报对端
func (h *SessionHandler) Report(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	report, err := h.sessionSvc.Report(userID, req.Reason)
	if err != nil {
		utils.ServiceError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "report submitted", gin.H{"report_id": report.ID})
}
