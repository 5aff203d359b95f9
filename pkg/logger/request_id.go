package logger

import "github.com/google/uuid"

// GenerateRequestID returns a fresh id for requests that arrive without one.
func GenerateRequestID() string {
	return uuid.NewString()
}
