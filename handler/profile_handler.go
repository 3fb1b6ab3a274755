package handler

import (
	"anon_chat/middleware"
	"anon_chat/service"
	"anon_chat/utils"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	userSvc *service.UserService
}

func NewProfileHandler(userSvc *service.UserService) *ProfileHandler {
	return &ProfileHandler{userSvc: userSvc}
}

// UpsertProfile 创建或更新资料
func (h *ProfileHandler) UpsertProfile(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	var req service.ProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	user, err := h.userSvc.UpsertProfile(userID, req)
	if err != nil {
		utils.ServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"user": user})
}

// GetProfile 查询自己的资料
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	user, err := h.userSvc.GetUser(userID)
	if err != nil {
		utils.ServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"user": user})
}
