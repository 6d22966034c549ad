package whoop

import "fmt"

// AuthError means no usable access token could be produced: the token file
// is missing or the refresh was rejected.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("whoop auth: %s: %v", e.Reason, e.Err)
	}
	return "whoop auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// APIError is a non-2xx response from the WHOOP API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whoop API error (%s %s, status %d): %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
