package types

// FailureKind classifies why a fetch attempt or a scrape call failed.
// Fetch-level kinds are derived from fetcher outcomes; process-level kinds
// are produced by admission gates and input validation.
type FailureKind string

const (
	// Fetch-level kinds.
	FailTimeout    FailureKind = "timeout"
	FailConnection FailureKind = "connection"
	FailBlocked    FailureKind = "http_4xx_blocked" // 401/403/451
	FailRateLimit  FailureKind = "http_429"
	FailServer     FailureKind = "http_5xx"
	FailChallenge  FailureKind = "challenge" // JS/CAPTCHA/Turnstile gate detected
	FailParseEmpty FailureKind = "parse_empty"
	FailUnknown    FailureKind = "unknown"

	// Process-level kinds.
	FailInvalidURL       FailureKind = "invalid_url"
	FailComplianceDenied FailureKind = "compliance_denied"
	FailCircuitOpen      FailureKind = "circuit_open"
	FailCostExceeded     FailureKind = "cost_exceeded"
	FailCancelled        FailureKind = "cancelled"
	FailInternal         FailureKind = "internal_error"
)

// Terminal reports whether the kind halts the whole scrape call. Terminal
// kinds are never retried locally and never escalated.
func (k FailureKind) Terminal() bool {
	switch k {
	case FailInvalidURL, FailComplianceDenied, FailCircuitOpen, FailCostExceeded, FailCancelled, FailInternal:
		return true
	}
	return false
}

// Escalates reports whether the kind skips same-strategy retries and moves
// straight to the next heavier strategy.
func (k FailureKind) Escalates() bool {
	switch k {
	case FailChallenge, FailBlocked, FailParseEmpty:
		return true
	}
	return false
}

// CountsTowardCircuit reports whether the failure should accumulate on the
// domain's circuit breaker. A single blocked URL is a URL-level problem and
// is tracked separately by the breaker's distinct-URL window.
func (k FailureKind) CountsTowardCircuit() bool {
	switch k {
	case FailTimeout, FailConnection, FailServer, FailRateLimit, FailChallenge:
		return true
	}
	return false
}

func (k FailureKind) String() string { return string(k) }
