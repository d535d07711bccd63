package session

import "fmt"

// ValidationError marks a malformed inbound payload. Handlers translate it
// to an error frame; the REST layer maps it to HTTP 400.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}
