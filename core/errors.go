package core

import (
	"errors"
	"fmt"
)

var (
	ErrRowOutOfRange   = errors.New("line buffer row out of range")
	ErrTooManyCells    = errors.New("cell count exceeds line capacity")
	ErrTooManySlots    = errors.New("sector count exceeds ring capacity")
	ErrSlotUnmapped    = errors.New("readback slot has no host mapping")
	ErrShortBuffer     = errors.New("output buffer smaller than frame")
	ErrShaderDirUnset  = errors.New("SHADER_DIR not set or empty")
	ErrIncompleteFrame = errors.New("framebuffer is not complete")
	ErrInvalidSize     = errors.New("width and height must be positive")
)

// InitError reports a failure that must abort startup: window, context or
// loader creation, missing shader configuration, shader compile/link
// failures and incomplete render targets.
type InitError struct {
	Op  string
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init %s: %v", e.Op, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// RuntimeWarning reports a failure that skips the offending operation
// while the render loop carries on with the next line or frame.
type RuntimeWarning struct {
	Op  string
	Err error
}

func (w *RuntimeWarning) Error() string {
	return fmt.Sprintf("%s: %v", w.Op, w.Err)
}

func (w *RuntimeWarning) Unwrap() error { return w.Err }

// NewInitError wraps err as an InitError, passing nil through
func NewInitError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &InitError{Op: op, Err: err}
}

// Warn wraps err as a RuntimeWarning, passing nil through
func Warn(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RuntimeWarning{Op: op, Err: err}
}

// IsFatal reports whether err must abort the caller. Anything that is not
// a RuntimeWarning counts as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var w *RuntimeWarning
	return !errors.As(err, &w)
}
