package relay

import (
	"errors"
	"fmt"
)

// OpenError means a capability could not be opened for a route. The
// registry records it as a failed session instead of returning it.
type OpenError struct {
	Route string
	Stage string // "source", "size" or "publisher"
	Err   error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("route %q: open %s: %v", e.Route, e.Stage, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

type DuplicateRouteError struct {
	Route string
}

func (e *DuplicateRouteError) Error() string {
	return fmt.Sprintf("route %q already exists", e.Route)
}

type RouteNotFoundError struct {
	Route string
}

func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("route %q not found", e.Route)
}

type PersistenceError struct {
	Route string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("route %q: save stream config: %v", e.Route, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type ResourceCleanupError struct {
	Route string
	Path  string
	Err   error
}

func (e *ResourceCleanupError) Error() string {
	return fmt.Sprintf("route %q: remove %s: %v", e.Route, e.Path, e.Err)
}

func (e *ResourceCleanupError) Unwrap() error { return e.Err }

type CapacityError struct {
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("relay limit of %d reached", e.Limit)
}

// ErrorKind names the most specific relay error type in err's chain.
func ErrorKind(err error) string {
	var (
		dup      *DuplicateRouteError
		notFound *RouteNotFoundError
		open     *OpenError
		persist  *PersistenceError
		cleanup  *ResourceCleanupError
		capacity *CapacityError
	)
	switch {
	case errors.As(err, &dup):
		return "DuplicateRouteError"
	case errors.As(err, &notFound):
		return "RouteNotFoundError"
	case errors.As(err, &persist):
		return "PersistenceError"
	case errors.As(err, &cleanup):
		return "ResourceCleanupError"
	case errors.As(err, &open):
		return "OpenError"
	case errors.As(err, &capacity):
		return "CapacityError"
	}
	return "Error"
}

// Describe renders err as "<ErrorKind>: <detail>".
func Describe(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", ErrorKind(err), err)
}
