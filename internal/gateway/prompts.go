package gateway

import (
	"fmt"
	"strings"
)

// planningSystemPrompt steers the pro tier toward structured session plans
const planningSystemPrompt = `You are a strategic work planner for a solo software developer.

Your job is to analyze the developer's goals, recent work, and feedback to provide a detailed WORK SESSION PLAN. Each session should be 30min-2hrs of focused work.

FORMAT YOUR OUTPUT EXACTLY LIKE THIS (use this exact structure):

📋 WORK SESSION PLAN
Focus: [Component/Feature Name]
Estimated Time: [e.g., ~45 minutes]

---

STEP 1: [Task Name] (~X min)

**What to do:**
[Clear, specific instruction]

**Prompt to use:**
` + "```" + `
[Exact prompt to copy-paste into the AI coding assistant]
` + "```" + `

**Verify:**
- [Specific thing to check when done]

---

(Continue for 3-5 steps typically)

---

🏁 CHECKPOINT
[When to come back - e.g., "Return when all tasks are complete, or if you get stuck on any step."]

IMPORTANT RULES:
1. Be SPECIFIC - give exact prompts that can be copy-pasted
2. Be REALISTIC - each session should be achievable in the estimated time
3. DEFEND your reasoning - if the user pushes back but you believe you're right, explain why
4. ADAPT genuinely - if they provide new info that changes things, update your plan
5. Stay aligned with their stated goals at all times
6. Each prompt should be self-contained and actionable
7. Consider dependencies - order tasks so each builds on the previous
8. Include verification steps so the user knows when a task is truly "done"`

// feedbackSystemPrompt steers the flash tier when a plan went sideways
const feedbackSystemPrompt = `You are processing feedback on a work session plan you produced earlier.

The user has indicated that the guidance didn't work as expected. Your job is to:
1. UNDERSTAND what went wrong
2. CONSIDER whether your original guidance was actually correct
3. Either DEFEND your position (if you believe you were right) or ADAPT your guidance (if the feedback reveals new information)

DO NOT just agree with everything the user says. If you believe your original guidance was correct, explain why.
But if the feedback reveals something you missed, genuinely update your approach.

Respond with either:
1. An explanation of why the original approach was correct + how to proceed
2. OR an updated mini work session plan addressing the feedback

Keep your response focused and actionable.`

// SessionRecord summarizes one prior work session for planning context
type SessionRecord struct {
	Date     string `json:"date"`
	Focus    string `json:"focus"`
	Status   string `json:"status"`
	Feedback string `json:"feedback,omitempty"`
}

// PlanContext carries everything the planner needs about current state
type PlanContext struct {
	Telos             string          `json:"telos"`
	RecentSessions    []SessionRecord `json:"recent_sessions,omitempty"`
	Feedback          string          `json:"feedback,omitempty"`
	AdditionalContext string          `json:"additional_context,omitempty"`
}

// BuildPlanPrompt assembles the planning prompt from goal and session
// context blocks
func BuildPlanPrompt(pc PlanContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Current Goals & Telos\n%s\n\n", pc.Telos)

	if len(pc.RecentSessions) > 0 {
		b.WriteString("## Recent Work Sessions\n")
		for i, session := range pc.RecentSessions {
			fmt.Fprintf(&b, "\n### Session %d (%s)\nFocus: %s\nStatus: %s\n", i+1, session.Date, session.Focus, session.Status)
			if session.Feedback != "" {
				fmt.Fprintf(&b, "Feedback: %s\n", session.Feedback)
			}
		}
		b.WriteString("\n")
	}

	if pc.Feedback != "" {
		fmt.Fprintf(&b, "## Important Feedback from Previous Session\n%s\n\n", pc.Feedback)
	}

	if pc.AdditionalContext != "" {
		fmt.Fprintf(&b, "## Additional Context\n%s\n\n", pc.AdditionalContext)
	}

	b.WriteString(`
## Your Task
Based on the above, create a strategic work session plan for right now. Consider:
1. What's the most impactful thing to work on?
2. What can realistically be accomplished?
3. How does this move toward the stated goals?

Provide the work session plan in the exact format specified.`)

	return b.String()
}

// BuildFeedbackPrompt assembles the feedback-processing prompt
func BuildFeedbackPrompt(feedbackType, details, originalPlan, telos string) string {
	return fmt.Sprintf(`## Original Work Session Plan
%s

## User's Telos (for context)
%s

## Feedback Type
%s

## Feedback Details
%s

## Your Task
Process this feedback and respond appropriately. Remember:
- If you believe your original guidance was correct, DEFEND it and explain why
- If the feedback reveals something you missed, ADAPT genuinely
- Be specific and actionable in your response`, originalPlan, telos, feedbackType, details)
}

// BuildClarificationPrompt assembles a quick question prompt
func BuildClarificationPrompt(question, contextText string) string {
	return fmt.Sprintf(`## Context
%s

## Question
%s

Please provide a brief, helpful answer.`, contextText, question)
}
