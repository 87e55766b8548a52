// Package pop3 is a client for the Post Office Protocol version 3 (RFC 1939).
//
// A Session walks through the protocol states one blocking command at a time:
// Connect reads the server greeting, Authenticate sends USER then PASS, and the
// transaction commands (LIST, RETR, TOP, STAT, DELE, RSET) are only sent once
// the mailbox is open. Quit always releases the connection.
//
// A Session is not safe for concurrent use.
package pop3

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/creativeprojects/pop3/lib"
)

// DefaultTimeout bounds every blocking network operation
const DefaultTimeout = 30 * time.Second

type Config struct {
	Host string
	// Port defaults to 110, or 995 when TLS is set
	Port                int
	TLS                 bool
	SkipTLSVerification bool
	// TLSConfig is cloned before use. ServerName defaults to Host.
	TLSConfig *tls.Config
	Timeout   time.Duration
	// ReadSize is the size of each chunk read from the connection
	ReadSize int
	// RateLimit caps the bandwidth in bytes per second (0 means no limit)
	RateLimit   float64
	Dialer      Dialer
	DebugLogger lib.Logger
}

type Session struct {
	cfg       Config
	log       lib.Logger
	state     State
	transport *transport
	reader    *reader
	lastReply string
}

// NewSession prepares a session. No connection is made until Connect is called.
func NewSession(cfg Config) *Session {
	log := cfg.DebugLogger
	if log == nil {
		log = &lib.NoLog{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ReadSize <= 0 {
		cfg.ReadSize = DefaultReadSize
	}
	return &Session{
		cfg:   cfg,
		log:   log,
		state: StateNew,
	}
}

func (s *Session) State() State {
	return s.state
}

// Connected returns true from a successful greeting until the session is closed
func (s *Session) Connected() bool {
	return s.state.connected()
}

// Authenticated returns true once the server accepted the credentials
func (s *Session) Authenticated() bool {
	return s.state == StateAuthenticated
}

// LastReply is the last status line received from the server
func (s *Session) LastReply() string {
	return s.lastReply
}

// Connect opens the connection and reads the server greeting.
// On failure the session stays in its initial state and Connect can be called again.
func (s *Session) Connect() error {
	if s.state != StateNew {
		return ErrInvalidState
	}
	if s.cfg.Host == "" {
		return &ConnectError{Err: lib.ErrMissingHost}
	}
	addr := lib.Address(s.cfg.Host, s.cfg.Port, s.cfg.TLS)
	s.state = StateConnecting
	s.log.Printf("Connecting to server %s...", addr)

	t, err := openTransport(s.cfg, addr)
	if err != nil {
		s.state = StateNew
		return err
	}
	s.transport = t
	s.reader = newReader(t, s.cfg.ReadSize)

	greeting, err := s.readLineResponse()
	if err != nil {
		s.teardown()
		s.state = StateNew
		return err
	}
	if !isOK(greeting) {
		s.teardown()
		s.state = StateNew
		return &ProtocolError{Command: "greeting", Reply: greeting}
	}
	s.state = StateConnected
	s.log.Print("Connected")
	return nil
}

// Authenticate sends USER then PASS. PASS is never sent if the server rejects the user name.
// A rejected authentication leaves the session connected so it can be retried.
// The user name cannot be empty or contain white space; the password can be empty
// but cannot contain a line break.
func (s *Session) Authenticate(username, password string) error {
	if !s.Connected() {
		return ErrNotConnected
	}
	if s.state != StateConnected {
		return ErrInvalidState
	}
	if !validArgument(username) || strings.ContainsAny(password, "\r\n") {
		return ErrInvalidArgument
	}
	s.state = StateAuthenticating

	if _, err := s.command("USER " + username); err != nil {
		s.fallback(StateConnected)
		return err
	}
	if _, err := s.command("PASS " + password); err != nil {
		s.fallback(StateConnected)
		return err
	}
	s.state = StateAuthenticated
	s.log.Printf("Logged in as %s", username)
	return nil
}

// ListMessages returns one summary per message, in the order given by the server
func (s *Session) ListMessages() ([]MessageSummary, error) {
	if err := s.requireAuthenticated(); err != nil {
		return nil, err
	}
	reply, err := s.multilineCommand("LIST")
	if err != nil {
		return nil, err
	}
	if !isOK(reply) {
		return nil, &ProtocolError{Command: "LIST", Reply: firstLine(reply)}
	}
	return parseListing(reply), nil
}

// RetrieveMessage returns the raw RETR reply, status line and terminator included.
// A -ERR reply is not an error: the caller has to check the status line.
func (s *Session) RetrieveMessage(id string) (string, error) {
	if err := s.requireAuthenticated(); err != nil {
		return "", err
	}
	if !validArgument(id) {
		return "", ErrInvalidArgument
	}
	return s.multilineCommand("RETR " + id)
}

// PeekMessageHeaders asks for the headers only (TOP id 0). The reply is raw, like RetrieveMessage.
func (s *Session) PeekMessageHeaders(id string) (string, error) {
	if err := s.requireAuthenticated(); err != nil {
		return "", err
	}
	if !validArgument(id) {
		return "", ErrInvalidArgument
	}
	return s.multilineCommand(fmt.Sprintf("TOP %s 0", id))
}

// Stat returns the number of messages and the size of the maildrop
func (s *Session) Stat() (Stat, error) {
	if err := s.requireAuthenticated(); err != nil {
		return Stat{}, err
	}
	reply, err := s.command("STAT")
	if err != nil {
		return Stat{}, err
	}
	return parseStat(reply)
}

// DeleteMessage marks a message as deleted. The server removes it when the session quits.
func (s *Session) DeleteMessage(id string) error {
	if err := s.requireAuthenticated(); err != nil {
		return err
	}
	if !validArgument(id) {
		return ErrInvalidArgument
	}
	_, err := s.command("DELE " + id)
	return err
}

// Reset unmarks the messages deleted during this session
func (s *Session) Reset() error {
	if err := s.requireAuthenticated(); err != nil {
		return err
	}
	_, err := s.command("RSET")
	return err
}

func (s *Session) Noop() error {
	if !s.Connected() {
		return ErrNotConnected
	}
	_, err := s.command("NOOP")
	return err
}

// Quit sends QUIT and closes the connection. It never fails and can be called more than once:
// the connection is released even when the command or its reply is lost.
func (s *Session) Quit() {
	if s.transport == nil {
		s.state = StateClosed
		return
	}
	if err := s.sendCommand("QUIT"); err == nil {
		_, _ = s.readLineResponse()
	}
	s.teardown()
}

func (s *Session) requireAuthenticated() error {
	if !s.Connected() {
		return ErrNotConnected
	}
	if !s.Authenticated() {
		return ErrNotAuthenticated
	}
	return nil
}

// fallback moves back to state unless the session has been closed in the meantime
func (s *Session) fallback(state State) {
	if s.state != StateClosed {
		s.state = state
	}
}

// teardown closes the transport and marks the session as closed
func (s *Session) teardown() {
	if s.transport != nil {
		s.log.Print("Closing connection")
		_ = s.transport.Close()
	}
	s.transport = nil
	s.reader = nil
	s.state = StateClosed
}
