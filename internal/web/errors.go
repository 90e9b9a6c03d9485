package web

// errors.go turns service errors into JSON responses.
//
// The technical error is logged with the request id. The client gets the
// user message from core.MapError and a status chosen from the same error:
//
//	QUOTA001          402 Payment Required
//	FILE001           413 Request Entity Too Large
//	FILE002/004/005   400 Bad Request
//	UPL002            503 Service Unavailable
//	UPL004            408 Request Timeout
//	UPL005            504 Gateway Timeout
//	RATE001           429 Too Many Requests
//	AUTH001           403 Forbidden
//	anything else     500 Internal Server Error

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/dataset"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/JonMunkholm/csvclean/internal/quota"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`

	// NeedsSignup is set when an anonymous caller ran out of cleanings.
	NeedsSignup bool `json:"needs_signup,omitempty"`
}

var errorStatuses = []struct {
	target error
	status int
}{
	{quota.ErrQuotaExceeded, http.StatusPaymentRequired},
	{quota.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
	{core.ErrEmptyFile, http.StatusBadRequest},
	{dataset.ErrMalformedInput, http.StatusBadRequest},
	{core.ErrNoFile, http.StatusBadRequest},
	{core.ErrTooManyCleanings, http.StatusServiceUnavailable},
	{context.Canceled, http.StatusRequestTimeout},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
	{core.ErrRateLimited, http.StatusTooManyRequests},
	{quota.ErrUnknownTier, http.StatusForbidden},
}

// statusFor returns the HTTP status for err.
func statusFor(err error) int {
	for _, es := range errorStatuses {
		if errors.Is(err, es.target) {
			return es.status
		}
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes its user-facing JSON form.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= http.StatusInternalServerError {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request rejected", attrs...)
	}

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}
	if caller, ok := core.CallerFromContext(r.Context()); ok && caller.Anonymous {
		resp.NeedsSignup = errors.Is(err, quota.ErrQuotaExceeded)
	}

	writeJSON(w, status, resp)
}
