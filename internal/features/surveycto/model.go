package surveycto

import (
	"errors"
	"fmt"
)

// Form is one form visible on the SurveyCTO server
type Form struct {
	FormID  string `json:"form_id"`
	Title   string `json:"title"`
	Version string `json:"version"`
}

// Record is one wide-JSON submission row. SurveyCTO serves flat objects whose
// values are strings; we keep them as interface{} to survive odd payloads.
type Record map[string]interface{}

var (
	// ErrAuthentication covers 401/403 answers from SurveyCTO
	ErrAuthentication = errors.New("SurveyCTO credentials are invalid or access is denied")
	// ErrServerConnection covers network-level failures reaching the server
	ErrServerConnection = errors.New("unable to reach the SurveyCTO server")
)

// ApiError is a non-auth HTTP failure from the SurveyCTO API
type ApiError struct {
	StatusCode int
	Message    string
}

func (e *ApiError) Error() string {
	return e.Message
}

// CooldownError is returned when SurveyCTO blocks a data pull (412/417/429)
// and directs the caller to wait. Seconds is parsed from the response body
// ("Please wait for N seconds...") and is zero when the server gave no number.
type CooldownError struct {
	StatusCode int
	Seconds    int
}

func (e *CooldownError) Error() string {
	if e.Seconds > 0 {
		return fmt.Sprintf("SurveyCTO blocked the data pull (status %d): retry after %d seconds", e.StatusCode, e.Seconds)
	}
	return fmt.Sprintf("SurveyCTO blocked the data pull (status %d)", e.StatusCode)
}

// ParseError is returned when a 200 answer is not the XML/JSON we expected
// (some servers return HTML login pages with status 200)
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}
