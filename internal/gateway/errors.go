package gateway

import "fmt"

// RateLimitError means the tier budget refused the call before dispatch
type RateLimitError struct {
	Tier        string
	Reason      string
	WaitSeconds int
}

func (e *RateLimitError) Error() string {
	if e.Reason == "daily_limit" {
		return fmt.Sprintf("daily limit reached for tier %s, try again tomorrow", e.Tier)
	}
	return fmt.Sprintf("rate limited on tier %s, wait %d seconds", e.Tier, e.WaitSeconds)
}

// QuotaError means the account's credit ledger refused the call
type QuotaError struct {
	AccountID string
	Reason    string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("account %s has no credits available (%s)", e.AccountID, e.Reason)
}

// UpstreamError wraps a failed or malformed upstream response
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream error (status %d)", e.StatusCode)
}
