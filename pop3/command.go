package pop3

import (
	"strings"
)

// isOK classifies a status line on its prefix only
func isOK(line string) bool {
	return strings.HasPrefix(line, "+OK")
}

// sendCommand writes one command line. A failed write closes the session.
func (s *Session) sendCommand(line string) error {
	if s.transport == nil {
		return ErrNotConnected
	}
	s.log.Printf("C: %s", maskCommand(line))
	_, err := s.transport.Write([]byte(line + "\r\n"))
	if err != nil {
		s.teardown()
		return &IOError{Op: "write " + verb(line), Err: err}
	}
	return nil
}

// readLineResponse reads a single status line. A failed read closes the session.
func (s *Session) readLineResponse() (string, error) {
	if s.reader == nil {
		return "", ErrNotConnected
	}
	line, err := s.reader.readLine()
	if err != nil {
		s.teardown()
		return "", &IOError{Op: "read response", Err: err}
	}
	s.lastReply = line
	s.log.Printf("S: %s", line)
	return line, nil
}

// readMultilineResponse reads a reply up to its terminator. A failed read closes the session.
func (s *Session) readMultilineResponse() (string, error) {
	if s.reader == nil {
		return "", ErrNotConnected
	}
	reply, err := s.reader.readMultiline()
	if err != nil {
		s.teardown()
		return "", &IOError{Op: "read multi-line response", Err: err}
	}
	s.lastReply = firstLine(reply)
	s.log.Printf("S: %s (%d bytes)", s.lastReply, len(reply))
	return reply, nil
}

// command sends line and expects a single +OK status line back
func (s *Session) command(line string) (string, error) {
	if err := s.sendCommand(line); err != nil {
		return "", err
	}
	reply, err := s.readLineResponse()
	if err != nil {
		return "", err
	}
	if !isOK(reply) {
		return reply, &ProtocolError{Command: verb(line), Reply: reply}
	}
	return reply, nil
}

// multilineCommand sends line and returns the raw reply, whatever its status
func (s *Session) multilineCommand(line string) (string, error) {
	if err := s.sendCommand(line); err != nil {
		return "", err
	}
	return s.readMultilineResponse()
}

func verb(line string) string {
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return line[:i]
	}
	return line
}

func maskCommand(line string) string {
	if verb(line) == "PASS" {
		return "PASS ********"
	}
	return line
}

// validArgument rejects arguments that would break the command line framing
func validArgument(arg string) bool {
	return arg != "" && !strings.ContainsAny(arg, " \t\r\n")
}
