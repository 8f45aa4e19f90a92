package model

import "fmt"

// ValidationError rejects a request naming the offending field. Requests
// failing validation are rejected whole; no partial write occurs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}
