package aquarius

import (
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the service
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned HTTP %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Endpoint, e.Status, e.Body)
}

// IsTransient reports whether retrying later may succeed
func (e *APIError) IsTransient() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}
