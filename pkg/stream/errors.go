package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is reported when no event arrives within the inactivity
	// window.
	ErrTimeout = errors.New("stream timed out waiting for data")

	// ErrStreamClosed is reported when the connection ends before a terminal
	// event.
	ErrStreamClosed = errors.New("stream closed before completion")
)

// TransportError is a connection level failure: a refused dial, a dropped
// stream or a non-2xx status from the setup or stream endpoint.
type TransportError struct {
	// Op names the failing step, for example "setup", "connect" or "read".
	Op string

	// Status is the HTTP status code when the failure was a response.
	Status int

	Err error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		if e.Err != nil {
			return fmt.Sprintf("stream %s: status %d: %v", e.Op, e.Status, e.Err)
		}
		return fmt.Sprintf("stream %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("stream %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// VendorError is an explicit error event sent by the backend inside an
// otherwise healthy stream.
type VendorError struct {
	Message string
}

func (e *VendorError) Error() string {
	return "vendor error: " + e.Message
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
