package httpapi

import (
	"net/http"

	"github.com/jinhyuck8504/obdoc-sub000/internal/service"
)

// errorBody is the error envelope for every non-2xx response.
type errorBody struct {
	Error     string   `json:"error"`
	ErrorCode string   `json:"errorCode"`
	Errors    []string `json:"errors,omitempty"`
}

// statusFor maps taxonomy codes to HTTP status. Store and system errors are
// surfaced opaquely; detail stays in the server log.
func statusFor(code service.ErrorCode) int {
	switch code {
	case service.CodeRateLimited:
		return http.StatusTooManyRequests
	case service.CodeNotAuthorized:
		return http.StatusForbidden
	case service.CodeStoreError, service.CodeSystemError, service.CodeGenerationExhausted:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// writeServiceError renders a taxonomy error, attaching rate headers when the
// decision is present so rejected calls still tell the client its budget.
func writeServiceError(w http.ResponseWriter, err error) {
	svcErr := service.AsError(err)

	if svcErr.RateLimit != nil {
		setRateHeaders(w, *svcErr.RateLimit)
	}

	body := errorBody{
		Error:     svcErr.Message,
		ErrorCode: string(svcErr.Code),
	}
	if svcErr.Format != nil {
		body.Errors = svcErr.Format.Errors
	}
	switch svcErr.Code {
	case service.CodeStoreError, service.CodeSystemError:
		body.Error = "an internal error occurred"
	}
	writeJSON(w, statusFor(svcErr.Code), body)
}
