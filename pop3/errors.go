package pop3

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected     = errors.New("not connected to a POP3 server")
	ErrNotAuthenticated = errors.New("session is not authenticated")
	ErrInvalidState     = errors.New("operation not allowed in the current session state")
	ErrInvalidArgument  = errors.New("invalid command argument")
)

// ConnectError is returned when the TCP connection cannot be established
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("cannot connect to %s: %s", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// TLSError is returned when the TLS handshake or the certificate verification fails
type TLSError struct {
	ServerName string
	Err        error
}

func (e *TLSError) Error() string {
	return fmt.Sprintf("TLS handshake with %s failed: %s", e.ServerName, e.Err)
}

func (e *TLSError) Unwrap() error {
	return e.Err
}

// IOError is a read, write or timeout failure in the middle of a session.
// The session is closed when one is returned.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the underlying error is a network timeout
func (e *IOError) Timeout() bool {
	var timeout interface{ Timeout() bool }
	return errors.As(e.Err, &timeout) && timeout.Timeout()
}

// ProtocolError is returned when the server answers a command with anything other than +OK
type ProtocolError struct {
	Command string
	Reply   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("server rejected %s: %s", e.Command, e.Reply)
}
