// Package api defines the request and response payloads exchanged with the propdesk backend.
package api

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Text returns the most specific human-readable description carried by the response.
func (e ErrorResponse) Text() string {
	switch {
	case e.Message != "" && e.Details != "":
		return e.Message + ": " + e.Details
	case e.Error != "" && e.Details != "":
		return e.Error + ": " + e.Details
	case e.Message != "":
		return e.Message
	default:
		return e.Error
	}
}
