package handler

import (
	"anon_chat/middleware"
	"anon_chat/service"
	"anon_chat/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CreditHandler struct {
	creditSvc *service.CreditService
}

func NewCreditHandler(creditSvc *service.CreditService) *CreditHandler {
	return &CreditHandler{creditSvc: creditSvc}
}

// GetBalance 查询余额和最近流水
func (h *CreditHandler) GetBalance(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	balance, err := h.creditSvc.Balance(userID)
	if err != nil {
		utils.ServiceError(c, err)
		return
	}
	entries, err := h.creditSvc.History(userID, 20)
	if err != nil {
		utils.ServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{
		"credits": balance,
		"entries": entries,
	})
}

// SendGift 赠送礼物（积分转移）
func (h *CreditHandler) SendGift(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	var req struct {
		ToUserID uuid.UUID `json:"to_user_id" binding:"required"`
		Cost     int       `json:"cost" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if err := h.creditSvc.TransferGift(userID, req.ToUserID, req.Cost); err != nil {
		utils.ServiceError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "gift sent", nil)
}
