package handler

import (
	"anon_chat/middleware"
	"anon_chat/service"
	"anon_chat/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type VoteHandler struct {
	voteSvc *service.VoteService
}

func NewVoteHandler(voteSvc *service.VoteService) *VoteHandler {
	return &VoteHandler{voteSvc: voteSvc}
}

// Vote 给指定用户投赞 / 踩
func (h *VoteHandler) Vote(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "invalid target user id")
		return
	}

	var req struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if err := h.voteSvc.Vote(userID, targetID, req.Value); err != nil {
		utils.ServiceError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "vote recorded", nil)
}

// LikeCount 查询指定用户的获赞数
func (h *VoteHandler) LikeCount(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "invalid target user id")
		return
	}

	count, err := h.voteSvc.LikeCount(targetID)
	if err != nil {
		utils.ServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"like_count": count})
}
