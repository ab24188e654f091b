package providers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"unicode"
)

type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
	// ErrorContext means the request exceeded the model's context length.
	ErrorContext ErrorType = "context"
)

// ClassifyError maps a provider failure to an ErrorType. Typed errors
// (StatusError, deadlines, network timeouts) win; the message is only
// consulted word by word afterwards.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	var se *StatusError
	if errors.As(err, &se) {
		if t, ok := classifyStatus(se.StatusCode, words(se.Body)); ok {
			return t
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTransient
	}
	return classifyWords(words(err.Error()))
}

func classifyStatus(code int, body []string) (ErrorType, bool) {
	switch {
	case code == http.StatusTooManyRequests:
		if hasAny(body, "quota", "credit", "credits", "billing") {
			return ErrorQuota, true
		}
		return ErrorRate, true
	case code == http.StatusPaymentRequired:
		return ErrorQuota, true
	case code >= 500:
		return ErrorTransient, true
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrorPermanent, true
	case code == http.StatusRequestEntityTooLarge:
		return ErrorContext, true
	}
	// 400 and friends: the body decides (context length vs plain bad request).
	return "", false
}

func classifyWords(w []string) ErrorType {
	switch {
	case hasAny(w, "quota", "credit", "credits", "billing"):
		return ErrorQuota
	case hasAny(w, "429", "ratelimit", "throttled") || hasPair(w, "rate", "limit", "limited", "exceeded"),
		hasPair(w, "too", "many"):
		return ErrorRate
	case hasPair(w, "context", "length", "window") || hasPair(w, "too", "long"):
		return ErrorContext
	case hasAny(w, "timeout", "deadline", "temporarily", "unavailable", "overloaded", "500", "502", "503", "504"),
		hasPair(w, "timed", "out"),
		hasPair(w, "connection", "reset", "refused"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hasAny(w []string, targets ...string) bool {
	for _, x := range w {
		for _, t := range targets {
			if x == t {
				return true
			}
		}
	}
	return false
}

// hasPair reports whether first is immediately followed by any of next.
func hasPair(w []string, first string, next ...string) bool {
	for i := 0; i+1 < len(w); i++ {
		if w[i] != first {
			continue
		}
		for _, n := range next {
			if w[i+1] == n {
				return true
			}
		}
	}
	return false
}
