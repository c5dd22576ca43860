package cdev

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind identifies which GPIO operation produced an Error.
type Kind int

const (
	// KindIO is an I/O failure with no operation-specific context.
	KindIO Kind = iota
	// KindNix is a system call failure with no operation-specific context.
	KindNix
	KindOffsetOutOfRange
	KindReadDevDirectory
	KindOpenChip
	KindGetChipInfo
	KindLineeventIoctl
	KindLineinfoIoctl
	KindLinehandleRequestIoctl
	KindGetLineValue
	KindSetLineValue
)

var kindNames = [...]string{
	KindIO:                     "Io",
	KindNix:                    "Nix",
	KindOffsetOutOfRange:       "OffsetOutOfRange",
	KindReadDevDirectory:       "ReadDevDirectory",
	KindOpenChip:               "OpenChip",
	KindGetChipInfo:            "GetChipInfo",
	KindLineeventIoctl:         "LineeventIoctl",
	KindLineinfoIoctl:          "LineinfoIoctl",
	KindLinehandleRequestIoctl: "LinehandleRequestIoctl",
	KindGetLineValue:           "GetLineValue",
	KindSetLineValue:           "SetLineValue",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Error is the failure returned by every fallible operation in this
// package. An Error is immutable once constructed.
type Error struct {
	kind Kind
	path string
	err  error
}

// FromIO lifts a generic I/O failure into an Io error. It returns nil if
// err is nil.
func FromIO(err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{kind: KindIO, err: err}
}

// FromErrno lifts a generic system call failure into a Nix error. It
// returns nil for a zero errno.
func FromErrno(errno syscall.Errno) *Error {
	if errno == 0 {
		return nil
	}
	return &Error{kind: KindNix, err: errno}
}

// From converts any error into an *Error. An *Error is returned unchanged,
// a bare syscall.Errno becomes Nix and everything else becomes Io.
func From(err error) *Error {
	switch e := err.(type) {
	case nil:
		return nil
	case *Error:
		return e
	case syscall.Errno:
		return FromErrno(e)
	default:
		return FromIO(err)
	}
}

// Fail converts cause with From and returns it along with the zero value
// of T, so that a failing step reads as a single return statement:
//
//	if err != nil {
//		return cdev.Fail[*Chip](err)
//	}
func Fail[T any](cause error) (T, error) {
	var zero T
	if e := From(cause); e != nil {
		return zero, e
	}
	return zero, nil
}

// OffsetOutOfRange reports a line offset beyond the chip's line count.
func OffsetOutOfRange() *Error {
	return &Error{kind: KindOffsetOutOfRange}
}

// The contextual constructors below return nil when err is nil, so that
// an Error always carries its cause.

// ReadDevDirectory reports a failure to list /dev.
func ReadDevDirectory(err error) *Error {
	return contextual(KindReadDevDirectory, "", err)
}

// OpenChip reports a failure to open the chip device at path.
func OpenChip(path string, err error) *Error {
	return contextual(KindOpenChip, path, err)
}

// GetChipInfo reports a failed chip info query on the device at path.
func GetChipInfo(path string, err error) *Error {
	return contextual(KindGetChipInfo, path, err)
}

// LineeventIoctl reports a failed line event request.
func LineeventIoctl(err error) *Error {
	return contextual(KindLineeventIoctl, "", err)
}

// LineinfoIoctl reports a failed line info query.
func LineinfoIoctl(err error) *Error {
	return contextual(KindLineinfoIoctl, "", err)
}

// LinehandleRequestIoctl reports a failed line handle request.
func LinehandleRequestIoctl(err error) *Error {
	return contextual(KindLinehandleRequestIoctl, "", err)
}

// GetLineValue reports a failure to read line values.
func GetLineValue(err error) *Error {
	return contextual(KindGetLineValue, "", err)
}

// SetLineValue reports a failure to write line values.
func SetLineValue(err error) *Error {
	return contextual(KindSetLineValue, "", err)
}

func contextual(kind Kind, path string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, path: path, err: err}
}

func (e *Error) Error() string {
	switch e.kind {
	case KindIO, KindNix:
		return e.err.Error()
	case KindOffsetOutOfRange:
		return "offset out of range"
	case KindReadDevDirectory:
		return "unable to read /dev directory"
	case KindOpenChip:
		return fmt.Sprintf("unable to open chip at path %s", e.path)
	case KindGetChipInfo:
		return fmt.Sprintf("unable to get chip info for %s", e.path)
	case KindLineeventIoctl:
		return fmt.Sprintf("lineevent ioctl failed: %v", e.err)
	case KindLineinfoIoctl:
		return fmt.Sprintf("lineinfo ioctl failed: %v", e.err)
	case KindLinehandleRequestIoctl:
		return fmt.Sprintf("linehandle request ioctl failed: %v", e.err)
	case KindGetLineValue:
		return fmt.Sprintf("unable to get line value: %v", e.err)
	case KindSetLineValue:
		return fmt.Sprintf("unable to set line value: %v", e.err)
	default:
		return fmt.Sprintf("%s: %v", e.kind, e.err)
	}
}

// Kind returns the operation that failed.
func (e *Error) Kind() Kind {
	return e.kind
}

// Path returns the chip path for OpenChip and GetChipInfo errors, and ""
// for every other kind.
func (e *Error) Path() string {
	return e.path
}

// Unwrap returns the underlying cause, or nil for OffsetOutOfRange.
func (e *Error) Unwrap() error {
	return e.err
}

// Errno returns the system error number somewhere beneath e, if any.
func (e *Error) Errno() (syscall.Errno, bool) {
	var errno syscall.Errno
	if errors.As(e.err, &errno) {
		return errno, true
	}
	return 0, false
}

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.kind, true
	}
	return 0, false
}

// IsKind reports whether err's chain contains an *Error of kind k.
func IsKind(err error, k Kind) bool {
	kind, ok := KindOf(err)
	return ok && kind == k
}
