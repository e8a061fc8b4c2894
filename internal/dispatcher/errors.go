package dispatcher

import (
	"errors"
	"fmt"
)

// ErrUnknownDispatcher is returned by Registry lookups for unregistered keywords.
var ErrUnknownDispatcher = errors.New("unknown data dispatcher")

// InvalidURLError reports a URL without a host component.
type InvalidURLError struct {
	URL string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("bad URL %s", e.URL)
}

// DispatchError reports a failed send: either a response status outside
// [200,400) or a transport failure (Err).
type DispatchError struct {
	Method     string
	Host       string
	StatusCode int
	Err        error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Host, e.Err)
	}
	return fmt.Sprintf("%s %s: response status code indicates an error: %d", e.Method, e.Host, e.StatusCode)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
