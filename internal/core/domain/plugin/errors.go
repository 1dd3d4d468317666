package plugindomain

import (
	"errors"
	"fmt"
)

var (
	ErrNotRegistered   = errors.New("plugin is not registered")
	ErrNothingToReload = errors.New("no downloaded plugins awaiting reload")
	ErrInvalidFilename = errors.New("cannot derive a file name from source URL")
)

// TransportError wraps a failed manifest fetch. Checks swallow it; the next
// scheduled or manual check is the retry.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IOError wraps a failed local write during install
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
