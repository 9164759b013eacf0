package responder

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// BindErrorCode represents the reason a responder could not listen.
type BindErrorCode string

const (
	ErrCodePortInUse           BindErrorCode = "PORT_IN_USE"
	ErrCodePermissionDenied    BindErrorCode = "PERMISSION_DENIED"
	ErrCodeAddressNotAvailable BindErrorCode = "ADDRESS_NOT_AVAILABLE"
	ErrCodeInvalidAddress      BindErrorCode = "INVALID_ADDRESS"
	ErrCodeUnknown             BindErrorCode = "UNKNOWN"
)

// BindError is returned by New when the listening socket cannot be created.
type BindError struct {
	Code      BindErrorCode
	Component string
	Addr      string
	Port      uint32
	Message   string
	Hint      string
	Solutions []string
	Err       error
}

func (e *BindError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\n❌ Failed to start %s on %s\n", e.Component, e.Addr))
	sb.WriteString(fmt.Sprintf("Error: %s\n", e.Message))

	if e.Hint != "" {
		sb.WriteString(fmt.Sprintf("\n💡 Hint: %s\n", e.Hint))
	}

	if len(e.Solutions) > 0 {
		sb.WriteString("\n🔧 Possible solutions:\n")
		for i, solution := range e.Solutions {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, solution))
		}
	}

	if e.Err != nil {
		sb.WriteString(fmt.Sprintf("\nOriginal error: %v\n", e.Err))
	}

	return sb.String()
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// NewBindError creates a BindError by analyzing the underlying network error
func NewBindError(component, addr string, port uint32, err error) *BindError {
	if err == nil {
		return nil
	}

	be := &BindError{
		Component: component,
		Addr:      addr,
		Port:      port,
		Err:       err,
	}

	var addrErr *net.AddrError
	var dnsErr *net.DNSError
	errStr := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, syscall.EADDRINUSE) || strings.Contains(errStr, "address already in use"):
		be.Code = ErrCodePortInUse
		be.Message = fmt.Sprintf("Port %d is already in use by another process", port)
		be.Hint = "Another chunkfault run or another application is using this port"
		be.Solutions = []string{
			fmt.Sprintf("Check what's using the port: sudo lsof -i :%d", port),
			"Pick other ports with --goodPort and --badPort",
			"Wait a moment and try again (port might be in TIME_WAIT state)",
		}

	case errors.Is(err, syscall.EACCES) || strings.Contains(errStr, "permission denied"):
		be.Code = ErrCodePermissionDenied
		be.Message = fmt.Sprintf("Permission denied to bind to port %d", port)
		if port < 1024 {
			be.Hint = fmt.Sprintf("Port %d is a privileged port (< 1024) and requires elevated privileges", port)
		} else {
			be.Hint = "Insufficient permissions to bind to this port"
		}
		be.Solutions = []string{
			"Use an unprivileged port (> 1024) with --goodPort and --badPort",
			"Check if a firewall or security policy is blocking the port",
		}

	case errors.Is(err, syscall.EADDRNOTAVAIL) || strings.Contains(errStr, "cannot assign requested address"):
		be.Code = ErrCodeAddressNotAvailable
		be.Message = "Cannot assign the requested address"
		be.Hint = "The configured host is not an address of this machine"
		be.Solutions = []string{
			"Check available network interfaces: ip addr show",
			"Bind to 127.0.0.1 with --host",
		}

	case errors.As(err, &addrErr) || errors.As(err, &dnsErr) || strings.Contains(errStr, "invalid port"):
		be.Code = ErrCodeInvalidAddress
		be.Message = fmt.Sprintf("%s is not a valid listen address", addr)
		be.Hint = "The host must be an IP or resolvable name and the port must be within 0-65535"
		be.Solutions = []string{
			"Check the --host, --goodPort and --badPort values",
		}

	default:
		be.Code = ErrCodeUnknown
		be.Message = err.Error()
		be.Hint = "An unexpected error occurred while starting the responder"
		be.Solutions = []string{
			fmt.Sprintf("Check if port %d is available: netstat -tlnp | grep %d", port, port),
			"Run again with --debug for more details",
		}
	}

	return be
}

// ConnError is a read or write failure on an accepted connection. It is logged
// by the handler and never leaves it.
type ConnError struct {
	Responder string
	ConnID    string
	State     State
	Err       error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("%s responder: connection %s failed while %s: %v", e.Responder, e.ConnID, e.State, e.Err)
}

func (e *ConnError) Unwrap() error {
	return e.Err
}
