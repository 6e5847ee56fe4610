// Package capture assigns sequential names to captured frames and persists them.
// It includes the writer, its result types, and the error kinds reported to callers.
package capture

import (
	"errors"
	"fmt"

	"github.com/isseis/go-safe-frame-store/internal/outputdir"
	"github.com/isseis/go-safe-frame-store/internal/payload"
	"github.com/isseis/go-safe-frame-store/internal/safefileio"
)

// Error definitions for the capture package
var (
	// ErrFileNameCollision is returned when the target name already exists at write time
	ErrFileNameCollision = errors.New("target file name already exists")
	// ErrWriteFailure is returned for generic I/O failures while persisting a frame
	ErrWriteFailure = errors.New("failed to write image")
)

// ErrorKind classifies a failed operation for the caller.
type ErrorKind int

const (
	// KindNone is used for successful results
	KindNone ErrorKind = iota
	// KindInvalidPath indicates that a candidate output path does not exist
	KindInvalidPath
	// KindDirectoryCreation indicates that the output directory could not be created
	KindDirectoryCreation
	// KindMalformedPayload indicates that the payload is not decodable image data
	KindMalformedPayload
	// KindFileNameCollision indicates that the target name was taken at write time
	KindFileNameCollision
	// KindWriteFailure indicates any other I/O failure
	KindWriteFailure
)

// String returns the name reported to callers
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return ""
	case KindInvalidPath:
		return "InvalidPathError"
	case KindDirectoryCreation:
		return "DirectoryCreationError"
	case KindMalformedPayload:
		return "MalformedPayloadError"
	case KindFileNameCollision:
		return "FileNameCollisionError"
	case KindWriteFailure:
		return "WriteFailureError"
	default:
		return "UnknownError"
	}
}

// MarshalText encodes the kind by name.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name produced by MarshalText.
func (k *ErrorKind) UnmarshalText(text []byte) error {
	for kind := KindNone; kind <= KindWriteFailure; kind++ {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", text)
}

// KindOf maps an error to its kind. Unrecognised errors are write failures.
func KindOf(err error) ErrorKind {
	var saveErr *SaveError
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &saveErr):
		return saveErr.Kind
	case errors.Is(err, outputdir.ErrInvalidPath):
		return KindInvalidPath
	case errors.Is(err, outputdir.ErrDirectoryCreation):
		return KindDirectoryCreation
	case errors.Is(err, payload.ErrMalformedPayload):
		return KindMalformedPayload
	case errors.Is(err, ErrFileNameCollision), errors.Is(err, safefileio.ErrFileExists):
		return KindFileNameCollision
	default:
		return KindWriteFailure
	}
}

// SaveError carries the kind of a failed save together with its cause.
type SaveError struct {
	Kind  ErrorKind
	Path  string
	Cause error
}

func (e *SaveError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Cause)
}

// Unwrap returns the underlying cause
func (e *SaveError) Unwrap() error {
	return e.Cause
}

func newSaveError(path string, cause error) *SaveError {
	return &SaveError{Kind: KindOf(cause), Path: path, Cause: cause}
}
