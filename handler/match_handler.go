package handler

import (
	"anon_chat/middleware"
	"anon_chat/model"
	"anon_chat/service"
	"anon_chat/utils"

	"github.com/gin-gonic/gin"
)

type MatchHandler struct {
	matchSvc *service.MatchService
}

func NewMatchHandler(matchSvc *service.MatchService) *MatchHandler {
	return &MatchHandler{matchSvc: matchSvc}
}

// Search 发起匹配搜索
func (h *MatchHandler) Search(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	var req struct {
		Tier    string              `json:"tier"`
		Filters model.SearchFilters `json:"filters"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	if req.Tier == "" {
		req.Tier = model.TierRandom
	}

	result, err := h.matchSvc.Search(userID, req.Tier, req.Filters)
	if err != nil {
		utils.ServiceError(c, err)
		return
	}

	if result.Matched {
		utils.SuccessWithMessage(c, "matched", gin.H{
			"matched": true,
			"partner": result.Partner,
		})
		return
	}
	utils.SuccessWithMessage(c, "queued, waiting for a partner", gin.H{
		"matched": false,
	})
}

// CancelSearch 取消排队
func (h *MatchHandler) CancelSearch(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		utils.Unauthorized(c, "unauthorized")
		return
	}

	if err := h.matchSvc.CancelSearch(userID); err != nil {
		utils.ServiceError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "search cancelled", nil)
}
