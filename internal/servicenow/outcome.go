package servicenow

import (
	"fmt"
)

// Outcome is the result of one network attempt. The set of variants is closed:
// only Success, APIError, HTTPError and TransportError implement it.
type Outcome interface {
	outcome()
}

// Success is a 200 response with a readable, non-empty body.
type Success struct {
	StatusCode int
	Body       []byte
}

// APIError is a failure raised by the client itself when a 200 response does
// not carry the content the protocol needs. There is no status code.
type APIError struct {
	Message string
}

// HTTPError is any non-200 response. Body holds the raw response text.
type HTTPError struct {
	StatusCode int
	Body       string
}

// TransportError is a failure before any status was received: DNS, connect,
// TLS, or a request that could not be built.
type TransportError struct {
	Message string
	Err     error
}

func (Success) outcome()        {}
func (APIError) outcome()       {}
func (HTTPError) outcome()      {}
func (TransportError) outcome() {}

// Handlers holds one function per Outcome variant. All four are required.
type Handlers[T any] struct {
	Success        func(Success) T
	APIError       func(APIError) T
	HTTPError      func(HTTPError) T
	TransportError func(TransportError) T
}

// Match dispatches o to the handler for its variant. It panics when a handler is
// missing or o is not one of the four variants (including nil); both are
// programming errors, never a runtime condition to recover from.
func Match[T any](o Outcome, h Handlers[T]) T {
	if h.Success == nil || h.APIError == nil || h.HTTPError == nil || h.TransportError == nil {
		panic("servicenow: Match requires a handler for every outcome variant")
	}

	switch v := o.(type) {
	case Success:
		return h.Success(v)
	case APIError:
		return h.APIError(v)
	case HTTPError:
		return h.HTTPError(v)
	case TransportError:
		return h.TransportError(v)
	default:
		panic(fmt.Sprintf("servicenow: unhandled outcome variant %T", o))
	}
}

// Describe returns a short, secret-free summary of o for logs.
func Describe(o Outcome) string {
	return Match(o, Handlers[string]{
		Success: func(s Success) string {
			return fmt.Sprintf("success (status %d, %d bytes)", s.StatusCode, len(s.Body))
		},
		APIError: func(e APIError) string {
			return "api error: " + e.Message
		},
		HTTPError: func(e HTTPError) string {
			return fmt.Sprintf("http error (status %d)", e.StatusCode)
		},
		TransportError: func(e TransportError) string {
			return "transport error: " + e.Message
		},
	})
}
