package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/urwalabs/urwa/internal/types"
)

// challengeMarkers identify bot-wall interstitials regardless of status
// code. Matched case-insensitively against the body.
var challengeMarkers = []string{
	"cf-chl",
	"turnstile",
	"checking your browser",
	"recaptcha",
	"hcaptcha",
	"press & hold",
	"verify you are human",
}

// classifyResponse maps a completed HTTP exchange to a failure kind.
// Empty kind means the response counts as a success.
func classifyResponse(status int, body []byte) types.FailureKind {
	if looksLikeChallenge(status, body) {
		return types.FailChallenge
	}

	switch {
	case status == http.StatusTooManyRequests:
		return types.FailRateLimit
	case status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusUnavailableForLegalReasons:
		return types.FailBlocked
	case status >= 500:
		return types.FailServer
	case status >= 400:
		return types.FailUnknown
	}

	if extractedTextLen(body) == 0 {
		return types.FailParseEmpty
	}
	return ""
}

// looksLikeChallenge detects interstitial challenge pages. Challenge
// markers on a blocked or service-unavailable status are conclusive; on a
// 200 they only count when the page is suspiciously small, since article
// text can legitimately mention captchas.
func looksLikeChallenge(status int, body []byte) bool {
	lower := strings.ToLower(string(body))
	marked := false
	for _, m := range challengeMarkers {
		if strings.Contains(lower, m) {
			marked = true
			break
		}
	}
	if !marked {
		return false
	}
	switch status {
	case http.StatusForbidden, http.StatusServiceUnavailable, http.StatusTooManyRequests:
		return true
	}
	return len(body) < 8*1024
}

// classifyTransportError maps a net/http client error to a failure kind.
func classifyTransportError(err error) types.FailureKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return types.FailCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.FailTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.FailTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return types.FailConnection
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return types.FailConnection
	}
	return types.FailUnknown
}

// extractedTextLen returns the length of the visible text in an HTML
// body. Non-HTML payloads count fully.
func extractedTextLen(body []byte) int {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return 0
	}
	if !bytes.Contains(bytes.ToLower(trimmed[:min(len(trimmed), 256)]), []byte("<")) {
		return len(trimmed)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return len(trimmed)
	}
	doc.Find("script, style, noscript").Remove()
	return len(strings.TrimSpace(doc.Find("body").Text()))
}

// parseRetryAfter parses a Retry-After header, supporting both integer
// seconds and HTTP-date formats. Capped at 2 minutes.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		if secs > 120 {
			secs = 120
		}
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return time.Second
		}
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	return 0
}
