package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smash-rewards/internal/ads"
	"smash-rewards/internal/service"
)

// ActionHandler handles the earning actions: mining, ads and the quiz.
type ActionHandler struct {
	mining  *service.MiningService
	ads     *service.AdsService
	quiz    *service.QuizService
	timeout time.Duration
}

// NewActionHandler creates a new ActionHandler.
func NewActionHandler(mining *service.MiningService, ads *service.AdsService, quiz *service.QuizService, timeout time.Duration) *ActionHandler {
	return &ActionHandler{
		mining:  mining,
		ads:     ads,
		quiz:    quiz,
		timeout: timeout,
	}
}

type miningRequest struct {
	WalletAddress string `json:"wallet_address"`
	ChainID       int64  `json:"chain_id"`
	TxHash        string `json:"tx_hash" binding:"required"`
}

type adRewardRequest struct {
	Outcome ads.Outcome `json:"outcome" binding:"required"`
	Reward  int64       `json:"reward"`
}

type adWatchRequest struct {
	Unit string `json:"unit"`
}

type quizRequest struct {
	Correct *int `json:"correct" binding:"required"`
}

// Mine handles POST /mining. The wallet fields describe the client's
// connected wallet and are checked against the bound one.
func (h *ActionHandler) Mine(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req miningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "tx_hash is required")
		return
	}

	ctx, cancel := detached(c, h.timeout)
	defer cancel()

	res, err := h.mining.Start(ctx, service.MiningRequest{
		AccountID:     id,
		WalletAddress: req.WalletAddress,
		ChainID:       req.ChainID,
		TxHash:        req.TxHash,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// AdReward handles POST /ads/reward with an outcome reported by the client SDK.
func (h *ActionHandler) AdReward(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req adRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "outcome is required")
		return
	}

	ctx, cancel := detached(c, h.timeout)
	defer cancel()

	res, err := h.ads.Reward(ctx, id, ads.Result{Outcome: req.Outcome, Reward: req.Reward})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// AdWatch handles POST /ads/watch, playing the ad through the server-side provider.
func (h *ActionHandler) AdWatch(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req adWatchRequest
	// An empty body selects the default unit.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body")
		return
	}

	ctx, cancel := detached(c, h.timeout)
	defer cancel()

	res, err := h.ads.Watch(ctx, id, req.Unit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Quiz handles POST /quiz.
func (h *ActionHandler) Quiz(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req quizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "correct is required")
		return
	}

	ctx, cancel := detached(c, h.timeout)
	defer cancel()

	res, err := h.quiz.Submit(ctx, id, *req.Correct)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
