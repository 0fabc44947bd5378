package api

import (
	"errors"
	"fmt"
)

// ErrUnexpectedStatus is wrapped when a read endpoint answers outside 2xx.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// RejectedError is returned when the server answered a write with
// success=false.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "request rejected by server"
	}
	return fmt.Sprintf("request rejected by server: %s", e.Message)
}
