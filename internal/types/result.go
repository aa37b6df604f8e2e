package types

import "time"

// ResultStatus is the top-level outcome of a scrape call.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

// ScrapeResult is the value emitted to the caller. Success implies Content
// and StrategyUsed are set; error implies FailureKind is set. Partial content
// is never returned.
type ScrapeResult struct {
	Status        ResultStatus     `json:"status"`
	URL           string           `json:"url"`
	FinalURL      string           `json:"final_url,omitempty"`
	Content       []byte           `json:"content,omitempty"`
	ContentLength int              `json:"content_length,omitempty"`
	StrategyUsed  Strategy         `json:"strategy_used,omitempty"`
	Attempts      int              `json:"attempts"`
	Elapsed       time.Duration    `json:"elapsed_ms"`
	Confidence    *ConfidenceScore `json:"confidence,omitempty"`
	FailureKind   FailureKind      `json:"failure_kind,omitempty"`
	TraceID       string           `json:"trace_id"`
	Cached        bool             `json:"cached,omitempty"`
	HTTPStatus    int              `json:"http_status,omitempty"`
	RedirectCount int              `json:"-"`
}

// ConfidenceScore is a post-hoc quality assessment of a successful result.
type ConfidenceScore struct {
	Overall  float64            `json:"overall"`
	Factors  map[string]float64 `json:"factors"`
	Warnings []string           `json:"warnings,omitempty"`
}
