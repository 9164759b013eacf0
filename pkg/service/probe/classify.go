package probe

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

// ErrorClass is the logical category of a client transport failure.
type ErrorClass string

const (
	ClassNone          ErrorClass = "none"
	ClassUnexpectedEOF ErrorClass = "unexpected-eof"
	ClassEOF           ErrorClass = "eof"
	ClassReset         ErrorClass = "reset"
	ClassRefused       ErrorClass = "refused"
	ClassTimeout       ErrorClass = "timeout"
	ClassCanceled      ErrorClass = "canceled"
	ClassOther         ErrorClass = "other"
)

// Classify maps a client error onto an ErrorClass. A short read of a chunked
// body surfaces from net/http as io.ErrUnexpectedEOF.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}

	var ne net.Error
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		return ClassUnexpectedEOF
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded):
		return ClassTimeout
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	case errors.Is(err, syscall.ECONNRESET):
		return ClassReset
	case errors.Is(err, syscall.ECONNREFUSED):
		return ClassRefused
	case errors.Is(err, io.EOF):
		return ClassEOF
	case errors.As(err, &ne) && ne.Timeout():
		return ClassTimeout
	default:
		return ClassOther
	}
}
