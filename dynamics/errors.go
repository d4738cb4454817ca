package dynamics

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/tidwall/gjson"
)

// APIError is returned for any non-2xx response from the Dynamics endpoint.
// Code and Message are taken from the OData error envelope when present.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.URL, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// newAPIError builds an APIError, reading {"error":{"code","message"}} from body.
func newAPIError(method, url string, status int, body string) *APIError {
	result := &APIError{
		Method:     method,
		URL:        url,
		StatusCode: status,
		Body:       body,
	}
	if gjson.Valid(body) {
		envelope := gjson.Get(body, "error")
		result.Code = envelope.Get("code").String()
		result.Message = envelope.Get("message").String()
	}
	return result
}

// IsTransient reports whether err is worth retrying: throttling and gateway
// style statuses, and network timeouts or resets.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return IsTransientHTTPStatus(apiErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"i/o timeout",
		"tls handshake timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether a status code is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// CompensationOutcome describes the rollback attempted after a dependent
// call failed.
type CompensationOutcome struct {
	Attempted bool
	Endpoint  string
	Deleted   bool
	Err       error
}

// UpsertError is returned when a call after the header create failed. It
// always carries the original cause and what happened to the header.
type UpsertError struct {
	Entity     string
	ExternalID string
	// FailedIn is the stage that was in progress; State is where the
	// orchestration ended (CompensatedDelete or FailedNoCompensation).
	FailedIn     UpsertState
	State        UpsertState
	Cause        error
	Compensation CompensationOutcome
}

func (e *UpsertError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: failed in %s: %v", e.Entity, e.ExternalID, e.FailedIn, e.Cause)
	switch {
	case !e.Compensation.Attempted:
	case e.Compensation.Deleted:
		b.WriteString("; the header was deleted due to the error")
	default:
		fmt.Fprintf(&b, "; deleting the header failed: %v", e.Compensation.Err)
	}
	return b.String()
}

func (e *UpsertError) Unwrap() error {
	return e.Cause
}
