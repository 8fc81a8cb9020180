package domain

import "time"

// RateDecision is the outcome of a per-IP fixed window check.
type RateDecision struct {
	Allowed    bool
	Count      int64
	Limit      int64
	RetryAfter time.Duration
}
