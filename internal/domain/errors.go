package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery indicates a search with neither text nor an image.
	ErrInvalidQuery = errors.New("invalid query: enter text or attach an image")

	// ErrInvalidWeight indicates an image weight outside [0,1].
	ErrInvalidWeight = fmt.Errorf("%w: image weight must be between 0 and 1", ErrInvalidQuery)

	// ErrUnsupportedImage indicates an attachment the backend cannot accept.
	ErrUnsupportedImage = fmt.Errorf("%w: image must be JPG or PNG", ErrInvalidQuery)

	// ErrTransport is matched by every *TransportError.
	ErrTransport = errors.New("transport failure")

	// ErrNotFound indicates a requested product does not exist.
	ErrNotFound = errors.New("not found")
)

// TransportError reports a network failure or a non-success response from the backend.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Detail     string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		return fmt.Sprintf("%s failed: status %d: %s", e.Op, e.StatusCode, e.Detail)
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s failed: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s failed: status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return e.Op + " failed"
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is makes every TransportError match ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// AssistantError is returned when the chat endpoint answers with an error indicator.
type AssistantError struct {
	Message string
}

func (e *AssistantError) Error() string { return "assistant: " + e.Message }
