package opensky

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// RateLimitError represents an HTTP 429 response with retry information.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
	Message    string
	Headers    RateLimitHeaders
}

// RateLimitHeaders contains the quota information OpenSky attaches to responses.
type RateLimitHeaders struct {
	Remaining int // X-Rate-Limit-Remaining: credits left for the day, -1 if absent
	Limit     int // X-Rate-Limit-Limit, -1 if absent
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// IsRateLimitError checks if an error is, or wraps, a rate limit error.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// UpstreamError is any other non-200 response from the API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("OpenSky API error: %d", e.StatusCode)
	}
	return fmt.Sprintf("OpenSky API error: %d: %s", e.StatusCode, e.Body)
}

// parseRetryAfter extracts how long to wait before the next request.
// OpenSky uses X-Rate-Limit-Retry-After-Seconds; the standard Retry-After
// header is honoured in both delay-seconds and HTTP-date form.
//
// Examples:
//
//	X-Rate-Limit-Retry-After-Seconds: 120       -> 2 minutes
//	Retry-After: 30                             -> 30 seconds
//	Retry-After: Wed, 21 Oct 2015 07:28:00 GMT  -> duration until that time
func parseRetryAfter(headers http.Header) time.Duration {
	if v := headers.Get("X-Rate-Limit-Retry-After-Seconds"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if retryTime, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(retryTime); d > 0 {
			return d
		}
	}
	return 0
}

// extractRateLimitHeaders reads quota headers, accepting both spellings.
func extractRateLimitHeaders(headers http.Header) RateLimitHeaders {
	return RateLimitHeaders{
		Remaining: headerInt(headers, "X-Rate-Limit-Remaining", "X-RateLimit-Remaining"),
		Limit:     headerInt(headers, "X-Rate-Limit-Limit", "X-RateLimit-Limit"),
	}
}

func headerInt(headers http.Header, names ...string) int {
	for _, name := range names {
		if v := headers.Get(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return -1
}
