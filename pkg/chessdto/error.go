package chessdto

import "fmt"

// ErrorResponse is the authority's error payload.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// APIError is a non-2xx authority response.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e == nil {
		return "authority error"
	}
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("authority error: status=%d", e.Status)
}
