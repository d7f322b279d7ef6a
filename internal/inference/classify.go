package inference

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// Category is a coarse failure label used for metrics.
type Category string

const (
	CategoryTimeout   Category = "timeout"
	CategoryRateLimit Category = "rate_limit"
	CategoryOther     Category = "other"
)

type statusCoder interface {
	StatusCode() int
}

// Classify labels a failure. Timeout indicators win over rate-limit
// indicators. err is only inspected.
func Classify(err error) Category {
	if err == nil {
		return CategoryOther
	}

	status := StatusOf(err)
	msg := strings.ToLower(err.Error())

	if isTimeout(err, status, msg) {
		return CategoryTimeout
	}
	if isRateLimit(status, msg) {
		return CategoryRateLimit
	}
	return CategoryOther
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

func isTimeout(err error, status int, msg string) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout {
		return true
	}
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out")
}

func isRateLimit(status int, msg string) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "too many requests")
}
