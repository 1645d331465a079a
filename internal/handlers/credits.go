package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suitelabs/conductor/internal/ledger"
)

// CreditsHandler exposes account credit state and top-ups
type CreditsHandler struct {
	ledger *ledger.Manager
}

// NewCreditsHandler creates a credits handler
func NewCreditsHandler(lm *ledger.Manager) *CreditsHandler {
	return &CreditsHandler{ledger: lm}
}

type topUpRequest struct {
	Amount float64 `json:"amount"`
	Source string  `json:"source" binding:"required"`
}

// GetStats returns the credit summary for an account
// GET /api/credits/:account
func (h *CreditsHandler) GetStats(c *gin.Context) {
	accountID := accountOrDefault(c.Param("account"))
	c.JSON(http.StatusOK, h.ledger.GetStats(accountID))
}

// TopUp adds paid balance to an account. An omitted amount grants the
// standard top-up.
// POST /api/credits/:account/topup
func (h *CreditsHandler) TopUp(c *gin.Context) {
	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	accountID := accountOrDefault(c.Param("account"))
	amount := req.Amount
	if amount == 0 {
		amount = ledger.CreditsPerTopUp
	}

	account, err := h.ledger.Credit(accountID, amount, req.Source)
	if err != nil {
		if account != nil {
			// Credit applied in memory but the store write failed
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Credit recorded but not persisted",
				"account": account,
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"account": account,
		"credits": h.ledger.GetStats(accountID),
	})
}
