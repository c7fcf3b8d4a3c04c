package matter

import "github.com/google/uuid"

// NewRandomID returns a fresh identifier for worlds and events.
func NewRandomID() string {
	return uuid.NewString()
}
