package autocache

import (
	"errors"
	"fmt"
)

var (
	ErrCacheExists    = errors.New("autocache: cache already registered")
	ErrManagerExists  = errors.New("autocache: manager already registered")
	ErrUnknownManager = errors.New("autocache: unknown cache manager")
	ErrUnknownCache   = errors.New("autocache: unknown cache")
)

// RegisterError reports a failed cache registration.
type RegisterError struct {
	Manager string
	Cache   string
	Err     error
}

func (e *RegisterError) Error() string {
	switch {
	case e.Cache == "":
		return fmt.Sprintf("register in manager %q: %v", e.Manager, e.Err)
	default:
		return fmt.Sprintf("register cache %q in manager %q: %v", e.Cache, e.Manager, e.Err)
	}
}

func (e *RegisterError) Unwrap() error { return e.Err }
