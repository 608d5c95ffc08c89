package core

import "github.com/segmentio/ksuid"

// NewRequestID returns a sortable unique identifier for correlating logs.
func NewRequestID() string {
	return ksuid.New().String()
}
