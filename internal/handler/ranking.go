package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smash-rewards/internal/model"
	"smash-rewards/internal/service"
)

// RankingHandler serves the leaderboards.
type RankingHandler struct {
	rankings *service.RankingService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(rankings *service.RankingService) *RankingHandler {
	return &RankingHandler{rankings: rankings}
}

// Rankings handles GET /rankings?by=balance|referrals|mining&limit=N.
func (h *RankingHandler) Rankings(c *gin.Context) {
	by := model.RankingField(c.DefaultQuery("by", string(model.RankByBalance)))

	limit := service.DefaultRankingLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "limit must be a number")
			return
		}
		limit = n
	}

	entries, err := h.rankings.Rankings(c.Request.Context(), by, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"by": by, "entries": entries})
}
