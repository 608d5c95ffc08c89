package llm

import (
	"errors"
	"fmt"
)

type Reason string

const (
	ReasonTimeout           Reason = "timeout"
	ReasonHTTPStatus        Reason = "http_status"
	ReasonMalformedResponse Reason = "malformed_response"
	ReasonUnconfigured      Reason = "unconfigured"
	ReasonTransport         Reason = "transport"
)

// GenerationError classifies a failed completion call.
type GenerationError struct {
	Reason     Reason
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("generation failed (%s, status %d): %v", e.Reason, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("generation failed (%s): %v", e.Reason, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the failure reason, defaulting to transport for unclassified errors.
func ReasonOf(err error) Reason {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Reason
	}
	return ReasonTransport
}
