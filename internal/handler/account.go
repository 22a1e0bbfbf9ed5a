package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"smash-rewards/internal/service"
)

// AccountHandler handles account lifecycle endpoints.
type AccountHandler struct {
	accounts   *service.AccountService
	activation *service.ActivationService
	timeout    time.Duration
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts *service.AccountService, activation *service.ActivationService, timeout time.Duration) *AccountHandler {
	return &AccountHandler{
		accounts:   accounts,
		activation: activation,
		timeout:    timeout,
	}
}

type walletRequest struct {
	Address string `json:"address" binding:"required"`
}

type activateRequest struct {
	Code     string `json:"code" binding:"required"`
	Username string `json:"username" binding:"required"`
}

// Ensure handles POST /account. It creates the account on first sight.
func (h *AccountHandler) Ensure(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	acc, created, err := h.accounts.EnsureAccount(c.Request.Context(), id, email(c))
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"account": acc, "created": created})
}

// Profile handles GET /account.
func (h *AccountHandler) Profile(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	profile, err := h.accounts.Profile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// BindWallet handles PUT /account/wallet.
func (h *AccountHandler) BindWallet(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req walletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "address is required")
		return
	}

	ctx, cancel := detached(c, h.timeout)
	defer cancel()

	info, err := h.accounts.BindWallet(ctx, id, req.Address)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// Activate handles POST /activate.
func (h *AccountHandler) Activate(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "code and username are required")
		return
	}

	ctx, cancel := detached(c, h.timeout)
	defer cancel()

	acc, err := h.activation.Activate(ctx, id, req.Code, req.Username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": acc})
}

// History handles GET /account/history?limit=N.
func (h *AccountHandler) History(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "limit must be a number")
			return
		}
		limit = n
	}

	entries, err := h.accounts.History(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
