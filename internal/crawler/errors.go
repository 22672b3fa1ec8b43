package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolShutdown is returned by a resource pool once shutdown has begun.
	ErrPoolShutdown = errors.New("resource pool shut down")
	// ErrInvalidSeed reports seed input that yields no crawlable URL.
	ErrInvalidSeed = errors.New("invalid seed")
	// ErrContentInvalid marks a fetched body that is too small or not HTML.
	ErrContentInvalid = errors.New("content failed validation")
)

// FetchFailure is returned when every fetch attempt for a URL failed.
type FetchFailure struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchFailure) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchFailure) Unwrap() error {
	return e.Err
}

// StorageFailure wraps a failed storage operation and the rows it carried.
type StorageFailure struct {
	Op   string
	Rows int
	Err  error
}

func (e *StorageFailure) Error() string {
	return fmt.Sprintf("storage %s (%d rows): %v", e.Op, e.Rows, e.Err)
}

func (e *StorageFailure) Unwrap() error {
	return e.Err
}

// MalformedLinkError describes an href that could not be parsed or resolved.
type MalformedLinkError struct {
	Href string
	Err  error
}

func (e *MalformedLinkError) Error() string {
	return fmt.Sprintf("malformed link %q: %v", e.Href, e.Err)
}

func (e *MalformedLinkError) Unwrap() error {
	return e.Err
}
