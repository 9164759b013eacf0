package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ClassNone},
		{"unexpected eof", io.ErrUnexpectedEOF, ClassUnexpectedEOF},
		{"wrapped unexpected eof", fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), ClassUnexpectedEOF},
		{"eof", io.EOF, ClassEOF},
		{"deadline", context.DeadlineExceeded, ClassTimeout},
		{"os deadline", os.ErrDeadlineExceeded, ClassTimeout},
		{"canceled", context.Canceled, ClassCanceled},
		{"reset", &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, ClassReset},
		{"refused", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, ClassRefused},
		{"dns timeout", &net.DNSError{Err: "timeout", IsTimeout: true}, ClassTimeout},
		{"other", errors.New("boom"), ClassOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
