// Package errors defines the error taxonomy shared by the store, the
// services, and the transports. Callers branch with errors.Is; transports
// translate each kind to a stable status code.
package errors

import "fmt"

var (
	ErrValidation       = fmt.Errorf("validation failed")
	ErrRoomNotFound     = fmt.Errorf("room not found")
	ErrRoomExists       = fmt.Errorf("room already exists")
	ErrPersistence      = fmt.Errorf("persistence failure")
	ErrMalformedPayload = fmt.Errorf("malformed payload")
)
