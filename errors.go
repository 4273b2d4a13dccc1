package wad

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies every error returned by this package.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindIO
	KindCorruptArchive
	KindMetadataSyntax
	KindMetadataSchema
	KindBadImage
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "i/o error"
	case KindCorruptArchive:
		return "corrupt archive"
	case KindMetadataSyntax:
		return "metadata syntax error"
	case KindMetadataSchema:
		return "metadata schema error"
	case KindBadImage:
		return "bad image"
	}
	return "unknown error"
}

// Sentinel causes. Test for them with errors.Is.
var (
	ErrBadMagic       = errors.New("bad magic")
	ErrBadName        = errors.New("bad name byte")
	ErrNameTooLong    = errors.New("name too long")
	ErrBadEntry       = errors.New("entry out of bounds")
	ErrSizeMismatch   = errors.New("entry size is not a multiple of the record size")
	ErrMissingEntry   = errors.New("missing required entry")
	ErrBadReference   = errors.New("reference out of range")
	ErrBadChild       = errors.New("bad node child")
	ErrMissingPatch   = errors.New("missing patch")
	ErrImageTooLarge  = errors.New("image too large")
	ErrBadPicture     = errors.New("malformed picture")
	ErrDuplicateImage = errors.New("image name packed twice")
)

// Error carries the kind of a failure together with the file and the entry or texture
// name it relates to, when known.
type Error struct {
	Kind ErrorKind
	Path string // file the error originated in
	Name string // entry, level or texture name
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Name != "" {
		msg += " in " + e.Name
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Cause implements the github.com/pkg/errors causer interface.
func (e *Error) Cause() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func ioError(err error, format string, args ...any) error {
	return &Error{Kind: KindIO, Err: errors.Wrapf(err, format, args...)}
}

func corrupt(cause error, format string, args ...any) error {
	return &Error{Kind: KindCorruptArchive, Err: errors.WithMessage(cause, fmt.Sprintf(format, args...))}
}

func badImage(name string, cause error, format string, args ...any) error {
	return &Error{Kind: KindBadImage, Name: name, Err: errors.WithMessage(cause, fmt.Sprintf(format, args...))}
}

// withPath attaches a file path to err if it has none yet.
func withPath(err error, path string) error {
	if err == nil || path == "" {
		return err
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Path == "" {
			e.Path = path
		}
		return err
	}
	return &Error{Kind: KindIO, Path: path, Err: err}
}

// withName attaches an entry name to err if it has none yet.
func withName(err error, name string) error {
	var e *Error
	if errors.As(err, &e) && e.Name == "" {
		e.Name = name
	}
	return err
}
