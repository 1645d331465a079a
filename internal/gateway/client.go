// Package gateway wraps upstream generateContent calls behind the tier
// rate limiter: check, dispatch, record on success. No retries, no
// queueing — a denied call surfaces immediately with a typed error.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/suitelabs/conductor/internal/ratelimit"
)

// Result is a successful upstream generation
type Result struct {
	Text       string                 `json:"text"`
	Model      string                 `json:"model"`
	Tier       string                 `json:"tier"`
	RateLimits []ratelimit.TierStatus `json:"rate_limits"`
}

// Client dispatches gated calls to the upstream generateContent API
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	tracker *ratelimit.Tracker
}

// NewClient creates a gateway client. baseURL is the upstream root
// without a trailing slash.
func NewClient(baseURL, apiKey string, timeout time.Duration, tracker *ratelimit.Tracker) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		tracker: tracker,
	}
}

// Tracker exposes the underlying tier tracker
func (c *Client) Tracker() *ratelimit.Tracker {
	return c.tracker
}

// Generate runs one gated call on the given tier. The tier budget is
// checked first; usage is recorded only after a 2xx response with an
// extractable candidate text.
func (c *Client) Generate(ctx context.Context, tier, prompt, systemPrompt string) (*Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("upstream API key not configured")
	}

	if res := c.tracker.CanCall(tier); !res.Allowed {
		return nil, &RateLimitError{Tier: tier, Reason: res.Reason, WaitSeconds: res.WaitSeconds}
	}

	model, ok := c.tracker.ModelFor(tier)
	if !ok {
		return nil, fmt.Errorf("unknown tier: %s", tier)
	}

	body, err := c.buildRequestBody(tier, prompt, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to build request body: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := gjson.GetBytes(respBody, "error.message").String()
		log.Printf("🚫 [Gateway] Upstream %s call failed: status=%d %s", model, resp.StatusCode, message)
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: message}
	}

	text := gjson.GetBytes(respBody, "candidates.0.content.parts.0.text")
	if !text.Exists() {
		log.Printf("🚫 [Gateway] Unexpected response shape from %s", model)
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: "unexpected response format"}
	}

	// Only a delivered answer counts against the budget
	c.tracker.RecordCall(tier)

	log.Printf("✅ [Gateway] %s call succeeded (%d bytes)", model, len(respBody))
	return &Result{
		Text:       text.String(),
		Model:      model,
		Tier:       tier,
		RateLimits: c.tracker.Snapshot(),
	}, nil
}

// buildRequestBody assembles the generateContent JSON payload
func (c *Client) buildRequestBody(tier, prompt, systemPrompt string) ([]byte, error) {
	body := "{}"
	var err error

	if body, err = sjson.Set(body, "contents.0.parts.0.text", prompt); err != nil {
		return nil, err
	}
	if body, err = sjson.Set(body, "generationConfig.temperature", 0.7); err != nil {
		return nil, err
	}
	if body, err = sjson.Set(body, "generationConfig.topK", 40); err != nil {
		return nil, err
	}
	if body, err = sjson.Set(body, "generationConfig.topP", 0.95); err != nil {
		return nil, err
	}
	if body, err = sjson.Set(body, "generationConfig.maxOutputTokens", 8192); err != nil {
		return nil, err
	}

	if systemPrompt != "" {
		if body, err = sjson.Set(body, "systemInstruction.parts.0.text", systemPrompt); err != nil {
			return nil, err
		}
	}

	if budget := c.tracker.ThinkingBudgetFor(tier); budget > 0 {
		if body, err = sjson.Set(body, "generationConfig.thinkingConfig.thinkingBudget", budget); err != nil {
			return nil, err
		}
	}

	return []byte(body), nil
}

// CreateSessionPlan asks the pro tier for a full work session plan
func (c *Client) CreateSessionPlan(ctx context.Context, pc PlanContext) (*Result, error) {
	return c.Generate(ctx, ratelimit.TierPro, BuildPlanPrompt(pc), planningSystemPrompt)
}

// ProcessFeedback asks the flash tier to defend or adapt a prior plan
func (c *Client) ProcessFeedback(ctx context.Context, feedbackType, details, originalPlan, telos string) (*Result, error) {
	return c.Generate(ctx, ratelimit.TierFlash, BuildFeedbackPrompt(feedbackType, details, originalPlan, telos), feedbackSystemPrompt)
}

// AskClarification asks the flash tier a quick free-form question
func (c *Client) AskClarification(ctx context.Context, question, contextText string) (*Result, error) {
	return c.Generate(ctx, ratelimit.TierFlash, BuildClarificationPrompt(question, contextText), "")
}
