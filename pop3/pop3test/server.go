// Package pop3test runs an in-memory POP3 server on a local port for tests.
package pop3test

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/creativeprojects/pop3/lib"
	"golang.org/x/net/nettest"
)

const DefaultGreeting = "+OK POP3 server ready"

// Server serves a single maildrop. Exported fields must be set before Start.
type Server struct {
	Username string
	Password string
	// Messages are full RFC 5322 messages with CRLF line endings, numbered from 1
	Messages []string
	Greeting string
	// ChunkSize splits every reply into writes of that many bytes (0 sends the reply in one write)
	ChunkSize int
	// ChunkDelay is the pause between two chunks, so they reach the client in separate reads
	ChunkDelay time.Duration
	// TLSConfig turns the listener into an implicit TLS (POP3S) listener
	TLSConfig *tls.Config
	// Handler replaces the maildrop with a scripted conversation
	Handler func(conn net.Conn)
	Log     lib.Logger

	listener net.Listener
	wg       sync.WaitGroup
	mu       sync.Mutex
	messages []string
	removed  map[int]bool
	commands []string
	conns    map[net.Conn]struct{}
}

// Start listens on a random local port. The server is closed at the end of the test.
func (s *Server) Start(t *testing.T) {
	t.Helper()
	listener, err := nettest.NewLocalListener("tcp")
	if err != nil {
		t.Fatalf("cannot start POP3 test server: %v", err)
	}
	if s.TLSConfig != nil {
		listener = tls.NewListener(listener, s.TLSConfig)
	}
	if s.Greeting == "" {
		s.Greeting = DefaultGreeting
	}
	if s.Log == nil {
		s.Log = &lib.NoLog{}
	}
	s.listener = listener
	s.messages = append([]string(nil), s.Messages...)
	s.removed = make(map[int]bool)
	s.conns = make(map[net.Conn]struct{})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serve()
	}()
	t.Cleanup(s.Close)
}

func (s *Server) Close() {
	if s.listener == nil {
		return
	}
	_ = s.listener.Close()
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String())
	return host
}

func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	value, _ := strconv.Atoi(port)
	return value
}

// Commands returns every command line received so far, across all connections
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Remaining returns the messages left in the maildrop after the deletions committed by QUIT
func (s *Server) Remaining() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := make([]string, 0, len(s.messages))
	for i, msg := range s.messages {
		if !s.removed[i+1] {
			remaining = append(remaining, msg)
		}
	}
	return remaining
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			defer conn.Close()
			if s.Handler != nil {
				s.Handler(conn)
				return
			}
			s.handle(conn)
		}()
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

type session struct {
	user          string
	authenticated bool
	deleted       map[int]bool
}

func (s *Server) handle(conn net.Conn) {
	_ = s.reply(conn, s.Greeting+"\r\n")

	state := &session{deleted: make(map[int]bool)}
	reader := bufio.NewReader(conn)
	for {
		_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		s.record(line)

		verb, args, _ := strings.Cut(line, " ")
		verb = strings.ToUpper(verb)
		if verb == "QUIT" {
			if state.authenticated {
				s.commit(state.deleted)
			}
			_ = s.reply(conn, "+OK bye\r\n")
			return
		}
		if err := s.reply(conn, s.execute(state, verb, args)); err != nil {
			return
		}
	}
}

func (s *Server) execute(state *session, verb, args string) string {
	switch verb {
	case "NOOP":
		return "+OK\r\n"
	case "USER":
		if state.authenticated {
			return "-ERR already authenticated\r\n"
		}
		if args != s.Username {
			return "-ERR unknown user\r\n"
		}
		state.user = args
		return "+OK send PASS\r\n"
	case "PASS":
		if state.authenticated || state.user == "" {
			return "-ERR send USER first\r\n"
		}
		if args != s.Password {
			state.user = ""
			return "-ERR invalid password\r\n"
		}
		state.authenticated = true
		return "+OK maildrop locked and ready\r\n"
	}

	if !state.authenticated {
		return "-ERR authentication required\r\n"
	}

	switch verb {
	case "STAT":
		count, size := 0, 0
		for _, msg := range s.visible(state) {
			count++
			size += len(msg)
		}
		return fmt.Sprintf("+OK %d %d\r\n", count, size)

	case "LIST":
		if args != "" {
			id, msg, ok := s.message(state, args)
			if !ok {
				return "-ERR no such message\r\n"
			}
			return fmt.Sprintf("+OK %d %d\r\n", id, len(msg))
		}
		visible := s.visible(state)
		size := 0
		for _, msg := range visible {
			size += len(msg)
		}
		reply := &strings.Builder{}
		fmt.Fprintf(reply, "+OK %d messages (%d octets)\r\n", len(visible), size)
		for id := 1; id <= len(s.messages); id++ {
			if msg, ok := visible[id]; ok {
				fmt.Fprintf(reply, "%d %d\r\n", id, len(msg))
			}
		}
		reply.WriteString(".\r\n")
		return reply.String()

	case "RETR":
		_, msg, ok := s.message(state, args)
		if !ok {
			return "-ERR no such message\r\n"
		}
		return fmt.Sprintf("+OK %d octets\r\n", len(msg)) + DotStuff(msg) + ".\r\n"

	case "TOP":
		id, lines, _ := strings.Cut(args, " ")
		count, err := strconv.Atoi(lines)
		if err != nil || count < 0 {
			return "-ERR invalid number of lines\r\n"
		}
		_, msg, ok := s.message(state, id)
		if !ok {
			return "-ERR no such message\r\n"
		}
		return "+OK top of message follows\r\n" + DotStuff(top(msg, count)) + ".\r\n"

	case "DELE":
		id, _, ok := s.message(state, args)
		if !ok {
			return "-ERR no such message\r\n"
		}
		state.deleted[id] = true
		return fmt.Sprintf("+OK message %d deleted\r\n", id)

	case "RSET":
		state.deleted = make(map[int]bool)
		return "+OK\r\n"
	}
	return "-ERR unknown command\r\n"
}

// reply writes data, split into chunks when requested
func (s *Server) reply(conn net.Conn, data string) error {
	s.Log.Printf("S: %q", data)
	size := s.ChunkSize
	if size <= 0 {
		size = len(data)
	}
	for start := 0; start < len(data); start += size {
		end := start + size
		if end > len(data) {
			end = len(data)
		}
		if start > 0 && s.ChunkDelay > 0 {
			time.Sleep(s.ChunkDelay)
		}
		if _, err := conn.Write([]byte(data[start:end])); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) record(line string) {
	s.Log.Printf("C: %s", line)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, line)
}

// visible returns the messages neither removed nor marked as deleted in this session, by id
func (s *Server) visible(state *session) map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	visible := make(map[int]string, len(s.messages))
	for i, msg := range s.messages {
		id := i + 1
		if s.removed[id] || state.deleted[id] {
			continue
		}
		visible[id] = msg
	}
	return visible
}

func (s *Server) message(state *session, arg string) (int, string, bool) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return 0, "", false
	}
	msg, ok := s.visible(state)[id]
	return id, msg, ok
}

func (s *Server) commit(deleted map[int]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range deleted {
		s.removed[id] = true
	}
}

// DotStuff escapes lines starting with a dot and makes sure the text ends with CRLF
func DotStuff(text string) string {
	if text != "" && !strings.HasSuffix(text, "\r\n") {
		text += "\r\n"
	}
	lines := strings.SplitAfter(text, "\r\n")
	for i, line := range lines {
		if strings.HasPrefix(line, ".") {
			lines[i] = "." + line
		}
	}
	return strings.Join(lines, "")
}

// top returns the headers, the empty separator line and the first lines of the body
func top(msg string, lines int) string {
	headers, body, found := strings.Cut(msg, "\r\n\r\n")
	if !found {
		return msg
	}
	result := headers + "\r\n\r\n"
	bodyLines := strings.SplitAfter(body, "\r\n")
	for i := 0; i < lines && i < len(bodyLines); i++ {
		result += bodyLines[i]
	}
	return result
}
