package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suitelabs/conductor/internal/goals"
)

// GoalsHandler exposes the goal document API
type GoalsHandler struct {
	goals *goals.Manager
}

// NewGoalsHandler creates a goals handler
func NewGoalsHandler(gm *goals.Manager) *GoalsHandler {
	return &GoalsHandler{goals: gm}
}

func ownerOrDefault(owner string) string {
	if owner == "" {
		return DefaultAccountID
	}
	return owner
}

type setMarkdownRequest struct {
	Owner    string `json:"owner"`
	Markdown string `json:"markdown" binding:"required"`
}

type addGoalRequest struct {
	Owner   string       `json:"owner"`
	Text    string       `json:"text" binding:"required"`
	Section string       `json:"section"`
	Status  goals.Status `json:"status"`
}

type matchGoalRequest struct {
	Owner string `json:"owner"`
	Text  string `json:"text" binding:"required"`
}

type updateGoalRequest struct {
	Owner   string `json:"owner"`
	Text    string `json:"text" binding:"required"`
	NewText string `json:"new_text" binding:"required"`
}

type reorderRequest struct {
	Owner     string `json:"owner"`
	DraggedID string `json:"dragged_id" binding:"required"`
	TargetID  string `json:"target_id" binding:"required"`
}

// GetDocument returns the structured goal document
// GET /api/goals?owner=...
func (h *GoalsHandler) GetDocument(c *gin.Context) {
	owner := ownerOrDefault(c.Query("owner"))
	c.JSON(http.StatusOK, h.goals.GetDocument(owner))
}

// GetMarkdown returns the document serialized to markdown
// GET /api/goals/markdown?owner=...
func (h *GoalsHandler) GetMarkdown(c *gin.Context) {
	owner := ownerOrDefault(c.Query("owner"))
	c.JSON(http.StatusOK, gin.H{
		"owner":    owner,
		"markdown": h.goals.Markdown(owner),
	})
}

// SetMarkdown replaces the document with freshly parsed markdown
// PUT /api/goals/markdown
func (h *GoalsHandler) SetMarkdown(c *gin.Context) {
	var req setMarkdownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	doc := h.goals.SetMarkdown(ownerOrDefault(req.Owner), req.Markdown)
	c.JSON(http.StatusOK, doc)
}

// AddGoal inserts a new goal at the top of the matched section
// POST /api/goals
func (h *GoalsHandler) AddGoal(c *gin.Context) {
	var req addGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	section, item := h.goals.Add(ownerOrDefault(req.Owner), req.Text, req.Section, req.Status)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"section": gin.H{"id": section.ID, "title": section.Title},
		"item":    item,
	})
}

// CompleteGoal marks the first matching goal as completed
// POST /api/goals/complete
func (h *GoalsHandler) CompleteGoal(c *gin.Context) {
	h.mutateByText(c, h.goals.Complete)
}

// StartGoal marks the first matching goal as in-progress
// POST /api/goals/start
func (h *GoalsHandler) StartGoal(c *gin.Context) {
	h.mutateByText(c, h.goals.Start)
}

// RemoveGoal deletes the first matching goal
// POST /api/goals/remove
func (h *GoalsHandler) RemoveGoal(c *gin.Context) {
	h.mutateByText(c, h.goals.Remove)
}

func (h *GoalsHandler) mutateByText(c *gin.Context, op func(owner, text string) (*goals.Item, bool)) {
	var req matchGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	item, ok := op(ownerOrDefault(req.Owner), req.Text)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No goal matches: " + req.Text})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
}

// UpdateGoal rewrites the text of the first matching goal
// POST /api/goals/update
func (h *GoalsHandler) UpdateGoal(c *gin.Context) {
	var req updateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	item, ok := h.goals.Update(ownerOrDefault(req.Owner), req.Text, req.NewText)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No goal matches: " + req.Text})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
}

// ReorderGoals moves the dragged goal in front of the target goal
// POST /api/goals/reorder
func (h *GoalsHandler) ReorderGoals(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if !h.goals.Reorder(ownerOrDefault(req.Owner), req.DraggedID, req.TargetID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dragged or target goal not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ToggleSection flips a section's collapsed flag
// POST /api/goals/sections/:id/toggle
func (h *GoalsHandler) ToggleSection(c *gin.Context) {
	owner := ownerOrDefault(c.Query("owner"))
	sectionID := c.Param("id")

	if !h.goals.ToggleSection(owner, sectionID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Section not found: " + sectionID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetStats summarizes goal counts by status
// GET /api/goals/stats?owner=...
func (h *GoalsHandler) GetStats(c *gin.Context) {
	owner := ownerOrDefault(c.Query("owner"))
	c.JSON(http.StatusOK, h.goals.GetStats(owner))
}
