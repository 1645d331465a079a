package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suitelabs/conductor/internal/gateway"
	"github.com/suitelabs/conductor/internal/ledger"
)

// DefaultAccountID is used when a request does not name an account
const DefaultAccountID = "default"

// PlanHandler runs credit-gated upstream calls: the ledger is checked
// before dispatch and charged only after a delivered answer.
type PlanHandler struct {
	client *gateway.Client
	ledger *ledger.Manager
}

// NewPlanHandler creates a plan handler
func NewPlanHandler(client *gateway.Client, lm *ledger.Manager) *PlanHandler {
	return &PlanHandler{client: client, ledger: lm}
}

type planRequest struct {
	AccountID         string                  `json:"account_id"`
	Telos             string                  `json:"telos" binding:"required"`
	RecentSessions    []gateway.SessionRecord `json:"recent_sessions"`
	Feedback          string                  `json:"feedback"`
	AdditionalContext string                  `json:"additional_context"`
}

type feedbackRequest struct {
	AccountID    string `json:"account_id"`
	FeedbackType string `json:"feedback_type" binding:"required"`
	Details      string `json:"details" binding:"required"`
	OriginalPlan string `json:"original_plan" binding:"required"`
	Telos        string `json:"telos"`
}

type askRequest struct {
	AccountID string `json:"account_id"`
	Question  string `json:"question" binding:"required"`
	Context   string `json:"context"`
}

func accountOrDefault(id string) string {
	if id == "" {
		return DefaultAccountID
	}
	return id
}

// gate verifies the account can pay for one action. Returns false after
// writing the error response.
func (h *PlanHandler) gate(c *gin.Context, accountID string) bool {
	decision := h.ledger.CanConsume(accountID)
	if decision.Allowed {
		return true
	}

	qErr := &gateway.QuotaError{AccountID: accountID, Reason: decision.Reason}
	log.Printf("💰 [Plan] %v", qErr)
	c.JSON(http.StatusPaymentRequired, gin.H{
		"error":   qErr.Error(),
		"reason":  decision.Reason,
		"credits": h.ledger.GetStats(accountID),
	})
	return false
}

// charge spends one credit after a delivered answer. A denial here means
// another request drained the account between check and charge; the
// answer is still returned but the shortfall is logged distinctly.
func (h *PlanHandler) charge(accountID string) ledger.Decision {
	decision, err := h.ledger.Consume(accountID)
	if err != nil {
		log.Printf("🚫 [Plan] Answer delivered but NOT charged for %s: %v", accountID, err)
	} else if !decision.Allowed {
		log.Printf("🚫 [Plan] Answer delivered but account %s drained mid-flight (%s)", accountID, decision.Reason)
	}
	return decision
}

// respondGatewayError maps gateway errors onto HTTP statuses
func respondGatewayError(c *gin.Context, err error) {
	var rlErr *gateway.RateLimitError
	if errors.As(err, &rlErr) {
		if rlErr.WaitSeconds > 0 {
			c.Header("Retry-After", fmt.Sprintf("%d", rlErr.WaitSeconds))
		}
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":        "Rate limited",
			"tier":         rlErr.Tier,
			"reason":       rlErr.Reason,
			"wait_seconds": rlErr.WaitSeconds,
		})
		return
	}

	var upErr *gateway.UpstreamError
	if errors.As(err, &upErr) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Upstream call failed",
			"status":  upErr.StatusCode,
			"message": upErr.Message,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// respond writes the successful result together with the post-charge
// credit view
func (h *PlanHandler) respond(c *gin.Context, accountID string, result *gateway.Result, decision ledger.Decision) {
	c.JSON(http.StatusOK, gin.H{
		"text":        result.Text,
		"model":       result.Model,
		"tier":        result.Tier,
		"rate_limits": result.RateLimits,
		"charged":     decision.Allowed,
		"credits":     h.ledger.GetStats(accountID),
	})
}

// CreatePlan generates a new work session plan on the pro tier
// POST /v1/plan
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	accountID := accountOrDefault(req.AccountID)
	if !h.gate(c, accountID) {
		return
	}

	result, err := h.client.CreateSessionPlan(c.Request.Context(), gateway.PlanContext{
		Telos:             req.Telos,
		RecentSessions:    req.RecentSessions,
		Feedback:          req.Feedback,
		AdditionalContext: req.AdditionalContext,
	})
	if err != nil {
		respondGatewayError(c, err)
		return
	}

	h.respond(c, accountID, result, h.charge(accountID))
}

// ProcessFeedback reworks an existing plan on the flash tier
// POST /v1/feedback
func (h *PlanHandler) ProcessFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	accountID := accountOrDefault(req.AccountID)
	if !h.gate(c, accountID) {
		return
	}

	result, err := h.client.ProcessFeedback(c.Request.Context(), req.FeedbackType, req.Details, req.OriginalPlan, req.Telos)
	if err != nil {
		respondGatewayError(c, err)
		return
	}

	h.respond(c, accountID, result, h.charge(accountID))
}

// AskClarification answers a quick question on the flash tier
// POST /v1/ask
func (h *PlanHandler) AskClarification(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	accountID := accountOrDefault(req.AccountID)
	if !h.gate(c, accountID) {
		return
	}

	result, err := h.client.AskClarification(c.Request.Context(), req.Question, req.Context)
	if err != nil {
		respondGatewayError(c, err)
		return
	}

	h.respond(c, accountID, result, h.charge(accountID))
}
