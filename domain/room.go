package domain

import (
	"fmt"
	"strings"

	errs "chat-relay/errors"
)

// Room is a named, independently-ordered message stream.
type Room struct {
	Name string `json:"name"`
}

// NormalizeRoomName trims a room name and checks it can serve as a store key.
// Names are case-sensitive, must be non-blank, and must not contain a NUL
// byte (the store uses NUL as its key separator).
func NormalizeRoomName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: room name is required", errs.ErrValidation)
	}
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: room name contains an invalid character", errs.ErrValidation)
	}
	return name, nil
}
