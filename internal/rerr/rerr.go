// Package rerr defines the closed set of symbolic error codes produced
// on the region-engine wire and helpers to carry them
// through a wrapped error chain.
package rerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code is one of the symbolic error codes carried on the wire.
type Code int

const (
	OK Code = iota
	Internal
	IllegalParameters
	RegionNotFound
	RegionUnavailable
	RegionVersion
	RangeInvalid
	KeyOutOfRange
	VectorInvalid
	NoEntries
	RaftSaveSnapshot
	ClusterReadOnly
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case Internal:
		return "Internal"
	case IllegalParameters:
		return "IllegalParameters"
	case RegionNotFound:
		return "RegionNotFound"
	case RegionUnavailable:
		return "RegionUnavailable"
	case RegionVersion:
		return "RegionVersion"
	case RangeInvalid:
		return "RangeInvalid"
	case KeyOutOfRange:
		return "KeyOutOfRange"
	case VectorInvalid:
		return "VectorInvalid"
	case NoEntries:
		return "NoEntries"
	case RaftSaveSnapshot:
		return "RaftSaveSnapshot"
	case ClusterReadOnly:
		return "ClusterReadOnly"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// codedError carries a symbolic Code alongside a wrapped error chain
// produced by github.com/pkg/errors, so callers can both Cause() into
// the original error and compare against a known Code.
type codedError struct {
	code Code
	err  error
}

func (e *codedError) Error() string { return e.code.String() + ": " + e.err.Error() }
func (e *codedError) Cause() error  { return e.err }
func (e *codedError) Unwrap() error { return e.err }

// New creates an error carrying code, with message formatted like fmt.Sprintf.
func New(code Code, format string, args ...interface{}) error {
	return &codedError{code: code, err: errors.Errorf(format, args...)}
}

// Wrap attaches code to an existing error, preserving err's stack via pkg/errors.
func Wrap(code Code, err error, message string) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: errors.Wrap(err, message)}
}

// CodeOf extracts the Code carried by err, defaulting to Internal if
// err does not carry one (e.g. it escaped from a stdlib/third-party call).
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var ce *codedError
	for e := err; e != nil; {
		if c, ok := e.(*codedError); ok {
			ce = c
			break
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	if ce != nil {
		return ce.code
	}
	return Internal
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
