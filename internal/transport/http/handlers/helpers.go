package handlers

import (
	"net/http"
	"strconv"

	httperrors "github.com/cursivehq/revenue/internal/transport/http/errors"
)

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}

func writeTooManyRequests(w http.ResponseWriter, retryAfterSec int64) {
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSec, 10))
	httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
		Code:          "REFRESH_RATE_LIMITED",
		Message:       "too many dashboard refreshes",
		RetryAfterSec: retryAfterSec,
	})
}

func parseLimit(raw string, fallback, max int) (int, bool) {
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > max {
		n = max
	}
	return n, true
}
