package pop3_test

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/creativeprojects/pop3/lib"
	"github.com/creativeprojects/pop3/pop3"
	"github.com/creativeprojects/pop3/pop3/pop3test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sampleMessage = "From: contact@example.org\r\n" +
		"To: bob@example.org\r\n" +
		"Subject: A little message, just for you\r\n" +
		"Date: Wed, 11 May 2016 14:31:59 +0000\r\n" +
		"Message-ID: <0000000@localhost/>\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"Hi there :)\r\n"
	dottedMessage = "From: contact@example.org\r\n" +
		"Subject: dots\r\n" +
		"\r\n" +
		".\r\n" +
		".leading dot\r\n"
)

func newServer(t *testing.T, messages ...string) *pop3test.Server {
	t.Helper()
	server := &pop3test.Server{
		Username: "bob",
		Password: "secret",
		Messages: messages,
		Log:      lib.NewTestLogger(t, "server"),
	}
	server.Start(t)
	return server
}

func newSession(t *testing.T, server *pop3test.Server) *pop3.Session {
	t.Helper()
	return pop3.NewSession(pop3.Config{
		Host:        server.Host(),
		Port:        server.Port(),
		Timeout:     5 * time.Second,
		DebugLogger: lib.NewTestLogger(t, "client"),
	})
}

func openSession(t *testing.T, server *pop3test.Server) *pop3.Session {
	t.Helper()
	session := newSession(t, server)
	require.NoError(t, session.Connect())
	require.NoError(t, session.Authenticate("bob", "secret"))
	return session
}

type dialerFunc func(network, address string) (net.Conn, error)

func (f dialerFunc) Dial(network, address string) (net.Conn, error) {
	return f(network, address)
}

// brokenConn fails every write once broken is set
type brokenConn struct {
	net.Conn
	broken atomic.Bool
	closed atomic.Bool
}

func (c *brokenConn) Write(p []byte) (int, error) {
	if c.broken.Load() {
		return 0, errors.New("connection reset by peer")
	}
	return c.Conn.Write(p)
}

func (c *brokenConn) Close() error {
	c.closed.Store(true)
	return c.Conn.Close()
}

// scripted answers each expected command line with the matching reply
func scripted(t *testing.T, greeting string, steps ...[2]string) func(conn net.Conn) {
	return func(conn net.Conn) {
		_, _ = conn.Write([]byte(greeting))
		reader := bufio.NewReader(conn)
		for _, step := range steps {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			assert.Equal(t, step[0], strings.TrimRight(line, "\r\n"))
			if step[1] != "" {
				_, _ = conn.Write([]byte(step[1]))
			}
		}
		// wait for the client to hang up
		_, _ = reader.ReadString('\n')
	}
}

func TestSessionWorkflow(t *testing.T) {
	server := newServer(t, sampleMessage, dottedMessage)
	session := newSession(t, server)
	assert.Equal(t, pop3.StateNew, session.State())

	require.NoError(t, session.Connect())
	assert.Equal(t, pop3.StateConnected, session.State())
	assert.True(t, session.Connected())
	assert.False(t, session.Authenticated())
	assert.Equal(t, pop3test.DefaultGreeting, session.LastReply())

	require.NoError(t, session.Authenticate("bob", "secret"))
	assert.Equal(t, pop3.StateAuthenticated, session.State())
	assert.True(t, session.Authenticated())

	list, err := session.ListMessages()
	require.NoError(t, err)
	assert.Equal(t, []pop3.MessageSummary{
		{ID: "1", Size: int64(len(sampleMessage))},
		{ID: "2", Size: int64(len(dottedMessage))},
	}, list)

	stat, err := session.Stat()
	require.NoError(t, err)
	assert.Equal(t, 2, stat.Count)
	assert.Equal(t, int64(len(sampleMessage)+len(dottedMessage)), stat.Size)

	require.NoError(t, session.Noop())

	session.Quit()
	assert.Equal(t, pop3.StateClosed, session.State())
	assert.False(t, session.Connected())
	assert.False(t, session.Authenticated())
	assert.Equal(t, "+OK bye", session.LastReply())

	assert.Equal(t, []string{"USER bob", "PASS secret", "LIST", "STAT", "NOOP", "QUIT"}, server.Commands())
}

func TestListMessagesChunked(t *testing.T) {
	for _, size := range []int{1, 2, 3, 5, 7, 13} {
		t.Run(fmt.Sprintf("chunks of %d bytes", size), func(t *testing.T) {
			server := &pop3test.Server{
				Username:   "bob",
				Password:   "secret",
				Messages:   []string{sampleMessage, dottedMessage, sampleMessage},
				ChunkSize:  size,
				ChunkDelay: time.Millisecond,
			}
			server.Start(t)
			session := openSession(t, server)
			defer session.Quit()

			list, err := session.ListMessages()
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, "3", list[2].ID)

			text, err := session.RetrieveMessage("2")
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("+OK %d octets\r\n", len(dottedMessage))+pop3test.DotStuff(dottedMessage)+".\r\n", text)
		})
	}
}

func TestListMessagesTerminatorSplit(t *testing.T) {
	splits := [][]string{
		{"+OK 2 messages\r\n1 100\r\n", "2 200\r\n.\r\n"},
		{"+OK 2 messages\r\n1 100\r\n2 200\r\n.", "\r\n"},
		{"+OK 2 messages\r\n1 100\r\n2 200\r\n", ".\r\n"},
		{"+OK 2 messages\r\n1 100\r\n2 200\r", "\n.\r\n"},
		{"+OK 2 messages\r\n1 100\r\n2 200\r\n.\r", "\n"},
	}
	for _, split := range splits {
		t.Run(fmt.Sprintf("%q", split[0]), func(t *testing.T) {
			server := &pop3test.Server{
				Handler: func(conn net.Conn) {
					_, _ = conn.Write([]byte("+OK ready\r\n"))
					reader := bufio.NewReader(conn)
					for _, reply := range []string{"+OK\r\n", "+OK\r\n"} {
						if _, err := reader.ReadString('\n'); err != nil {
							return
						}
						_, _ = conn.Write([]byte(reply))
					}
					line, err := reader.ReadString('\n')
					if err != nil {
						return
					}
					assert.Equal(t, "LIST\r\n", line)
					_, _ = conn.Write([]byte(split[0]))
					time.Sleep(20 * time.Millisecond)
					_, _ = conn.Write([]byte(split[1]))
					_, _ = reader.ReadString('\n')
				},
			}
			server.Start(t)
			session := openSession(t, server)
			defer session.Quit()

			list, err := session.ListMessages()
			require.NoError(t, err)
			assert.Equal(t, []pop3.MessageSummary{{ID: "1", Size: 100}, {ID: "2", Size: 200}}, list)
		})
	}
}

func TestListEmptyMailbox(t *testing.T) {
	server := newServer(t)
	session := openSession(t, server)
	defer session.Quit()

	list, err := session.ListMessages()
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestAuthenticateEmptyPassword(t *testing.T) {
	server := &pop3test.Server{
		Username: "guest",
		Messages: []string{sampleMessage},
		Log:      lib.NewTestLogger(t, "server"),
	}
	server.Start(t)
	session := newSession(t, server)
	defer session.Quit()
	require.NoError(t, session.Connect())

	require.NoError(t, session.Authenticate("guest", ""))
	assert.True(t, session.Authenticated())
	assert.Equal(t, []string{"USER guest", "PASS "}, server.Commands())
}

func TestAuthenticateWrongPassword(t *testing.T) {
	server := newServer(t, sampleMessage)
	session := newSession(t, server)
	defer session.Quit()
	require.NoError(t, session.Connect())

	err := session.Authenticate("bob", "wrongpass")
	var protocolErr *pop3.ProtocolError
	require.ErrorAs(t, err, &protocolErr)
	assert.Equal(t, "PASS", protocolErr.Command)
	assert.Equal(t, "-ERR invalid password", protocolErr.Reply)

	assert.Equal(t, pop3.StateConnected, session.State())
	assert.True(t, session.Connected())
	assert.False(t, session.Authenticated())

	_, err = session.ListMessages()
	assert.ErrorIs(t, err, pop3.ErrNotAuthenticated)
	assert.NotContains(t, server.Commands(), "LIST")

	// same connection, better credentials
	require.NoError(t, session.Authenticate("bob", "secret"))
	assert.True(t, session.Authenticated())
	assert.Equal(t, []string{"USER bob", "PASS wrongpass", "USER bob", "PASS secret"}, server.Commands())
}

func TestAuthenticateUnknownUser(t *testing.T) {
	server := newServer(t)
	session := newSession(t, server)
	defer session.Quit()
	require.NoError(t, session.Connect())

	err := session.Authenticate("alice", "secret")
	var protocolErr *pop3.ProtocolError
	require.ErrorAs(t, err, &protocolErr)
	assert.Equal(t, "USER", protocolErr.Command)
	assert.Equal(t, pop3.StateConnected, session.State())

	// PASS must not follow a rejected USER
	assert.Equal(t, []string{"USER alice"}, server.Commands())
}

func TestAuthenticateTwice(t *testing.T) {
	server := newServer(t)
	session := openSession(t, server)
	defer session.Quit()

	err := session.Authenticate("bob", "secret")
	assert.ErrorIs(t, err, pop3.ErrInvalidState)
	assert.True(t, session.Authenticated())
}

func TestRetrieveMessage(t *testing.T) {
	server := newServer(t, sampleMessage, dottedMessage)
	session := openSession(t, server)
	defer session.Quit()

	text, err := session.RetrieveMessage("1")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("+OK %d octets\r\n", len(sampleMessage))+sampleMessage+".\r\n", text)

	// dot-stuffed lines come back as they were sent
	text, err = session.RetrieveMessage("2")
	require.NoError(t, err)
	assert.Contains(t, text, "\r\n..\r\n..leading dot\r\n.\r\n")
}

func TestRetrieveUnknownMessage(t *testing.T) {
	server := newServer(t, sampleMessage)
	session := openSession(t, server)
	defer session.Quit()

	text, err := session.RetrieveMessage("99")
	require.NoError(t, err)
	assert.Equal(t, "-ERR no such message\r\n", text)
	assert.Equal(t, "-ERR no such message", session.LastReply())
	assert.True(t, session.Authenticated())

	// the session is still usable
	list, err := session.ListMessages()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPeekMessageHeaders(t *testing.T) {
	server := newServer(t, sampleMessage)
	session := openSession(t, server)
	defer session.Quit()

	text, err := session.PeekMessageHeaders("1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "+OK"))
	assert.True(t, strings.HasSuffix(text, "\r\n\r\n.\r\n"))
	assert.Contains(t, text, "Subject: A little message, just for you\r\n")
	assert.NotContains(t, text, "Hi there")
	assert.Contains(t, server.Commands(), "TOP 1 0")

	text, err = session.PeekMessageHeaders("5")
	require.NoError(t, err)
	assert.Equal(t, "-ERR no such message\r\n", text)
}

func TestDeleteAndReset(t *testing.T) {
	server := newServer(t, sampleMessage, dottedMessage)
	session := openSession(t, server)

	require.NoError(t, session.DeleteMessage("1"))
	list, err := session.ListMessages()
	require.NoError(t, err)
	assert.Equal(t, []pop3.MessageSummary{{ID: "2", Size: int64(len(dottedMessage))}}, list)

	require.NoError(t, session.Reset())
	list, err = session.ListMessages()
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, session.DeleteMessage("2"))
	err = session.DeleteMessage("2")
	var protocolErr *pop3.ProtocolError
	assert.ErrorAs(t, err, &protocolErr)

	session.Quit()
	assert.Equal(t, []string{sampleMessage}, server.Remaining())
}

func TestCommandsBeforeConnect(t *testing.T) {
	session := pop3.NewSession(pop3.Config{Host: "localhost"})

	assert.ErrorIs(t, session.Authenticate("bob", "secret"), pop3.ErrNotConnected)
	_, err := session.ListMessages()
	assert.ErrorIs(t, err, pop3.ErrNotConnected)
	_, err = session.RetrieveMessage("1")
	assert.ErrorIs(t, err, pop3.ErrNotConnected)
	_, err = session.PeekMessageHeaders("1")
	assert.ErrorIs(t, err, pop3.ErrNotConnected)
	_, err = session.Stat()
	assert.ErrorIs(t, err, pop3.ErrNotConnected)
	assert.ErrorIs(t, session.DeleteMessage("1"), pop3.ErrNotConnected)
	assert.ErrorIs(t, session.Reset(), pop3.ErrNotConnected)
	assert.ErrorIs(t, session.Noop(), pop3.ErrNotConnected)
	assert.Equal(t, pop3.StateNew, session.State())
}

func TestInvalidArguments(t *testing.T) {
	server := newServer(t, sampleMessage)
	session := newSession(t, server)
	defer session.Quit()
	require.NoError(t, session.Connect())

	assert.ErrorIs(t, session.Authenticate("", "secret"), pop3.ErrInvalidArgument)
	assert.ErrorIs(t, session.Authenticate("bob", "secret\r\nDELE 1"), pop3.ErrInvalidArgument)
	require.NoError(t, session.Authenticate("bob", "secret"))

	_, err := session.RetrieveMessage("1\r\nDELE 1")
	assert.ErrorIs(t, err, pop3.ErrInvalidArgument)
	_, err = session.PeekMessageHeaders("")
	assert.ErrorIs(t, err, pop3.ErrInvalidArgument)
	assert.ErrorIs(t, session.DeleteMessage("1 2"), pop3.ErrInvalidArgument)

	assert.Equal(t, []string{"USER bob", "PASS secret"}, server.Commands())
}

func TestConnectGreetingRejected(t *testing.T) {
	server := &pop3test.Server{Greeting: "-ERR too many connections"}
	server.Start(t)
	session := newSession(t, server)

	err := session.Connect()
	var protocolErr *pop3.ProtocolError
	require.ErrorAs(t, err, &protocolErr)
	assert.Equal(t, "-ERR too many connections", protocolErr.Reply)
	assert.Equal(t, pop3.StateNew, session.State())
	assert.False(t, session.Connected())
}

func TestConnectFailure(t *testing.T) {
	refused := errors.New("connection refused")
	session := pop3.NewSession(pop3.Config{
		Host: "pop.example.com",
		Dialer: dialerFunc(func(network, address string) (net.Conn, error) {
			assert.Equal(t, "tcp", network)
			assert.Equal(t, "pop.example.com:110", address)
			return nil, refused
		}),
	})

	err := session.Connect()
	var connectErr *pop3.ConnectError
	require.ErrorAs(t, err, &connectErr)
	assert.Equal(t, "pop.example.com:110", connectErr.Addr)
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, pop3.StateNew, session.State())

	// it can be tried again
	err = session.Connect()
	assert.ErrorIs(t, err, refused)
}

func TestConnectMissingHost(t *testing.T) {
	session := pop3.NewSession(pop3.Config{})
	err := session.Connect()
	assert.ErrorIs(t, err, lib.ErrMissingHost)
}

func TestConnectTwice(t *testing.T) {
	server := newServer(t)
	session := newSession(t, server)
	defer session.Quit()

	require.NoError(t, session.Connect())
	assert.ErrorIs(t, session.Connect(), pop3.ErrInvalidState)
	assert.True(t, session.Connected())
}

func TestConnectTLS(t *testing.T) {
	serverTLS, roots := pop3test.NewTLSConfig(t)
	server := &pop3test.Server{
		Username:  "bob",
		Password:  "secret",
		Messages:  []string{sampleMessage},
		TLSConfig: serverTLS,
	}
	server.Start(t)

	session := pop3.NewSession(pop3.Config{
		Host:        server.Host(),
		Port:        server.Port(),
		TLS:         true,
		TLSConfig:   &tls.Config{RootCAs: roots},
		DebugLogger: lib.NewTestLogger(t, "client"),
	})
	require.NoError(t, session.Connect())
	require.NoError(t, session.Authenticate("bob", "secret"))

	list, err := session.ListMessages()
	require.NoError(t, err)
	assert.Len(t, list, 1)
	session.Quit()
}

func TestConnectTLSUntrusted(t *testing.T) {
	serverTLS, _ := pop3test.NewTLSConfig(t)
	server := &pop3test.Server{TLSConfig: serverTLS}
	server.Start(t)

	session := pop3.NewSession(pop3.Config{
		Host:    server.Host(),
		Port:    server.Port(),
		TLS:     true,
		Timeout: 5 * time.Second,
	})
	err := session.Connect()
	var tlsErr *pop3.TLSError
	require.ErrorAs(t, err, &tlsErr)
	assert.Equal(t, server.Host(), tlsErr.ServerName)
	assert.Equal(t, pop3.StateNew, session.State())
}

func TestConnectTLSSkipVerification(t *testing.T) {
	serverTLS, _ := pop3test.NewTLSConfig(t)
	server := &pop3test.Server{TLSConfig: serverTLS}
	server.Start(t)

	session := pop3.NewSession(pop3.Config{
		Host:                server.Host(),
		Port:                server.Port(),
		TLS:                 true,
		SkipTLSVerification: true,
	})
	require.NoError(t, session.Connect())
	session.Quit()
}

func TestQuitWhenWriteFails(t *testing.T) {
	server := newServer(t, sampleMessage)
	var conn *brokenConn
	session := pop3.NewSession(pop3.Config{
		Host: server.Host(),
		Port: server.Port(),
		Dialer: dialerFunc(func(network, address string) (net.Conn, error) {
			raw, err := net.Dial(network, address)
			if err != nil {
				return nil, err
			}
			conn = &brokenConn{Conn: raw}
			return conn, nil
		}),
	})
	require.NoError(t, session.Connect())
	require.NoError(t, session.Authenticate("bob", "secret"))

	conn.broken.Store(true)
	session.Quit()
	assert.True(t, conn.closed.Load())
	assert.Equal(t, pop3.StateClosed, session.State())
	assert.False(t, session.Connected())
	assert.False(t, session.Authenticated())

	// second call is a no-op
	session.Quit()
	assert.Equal(t, pop3.StateClosed, session.State())
}

func TestWriteFailureClosesSession(t *testing.T) {
	server := newServer(t, sampleMessage)
	var conn *brokenConn
	session := pop3.NewSession(pop3.Config{
		Host: server.Host(),
		Port: server.Port(),
		Dialer: dialerFunc(func(network, address string) (net.Conn, error) {
			raw, err := net.Dial(network, address)
			if err != nil {
				return nil, err
			}
			conn = &brokenConn{Conn: raw}
			return conn, nil
		}),
	})
	require.NoError(t, session.Connect())
	require.NoError(t, session.Authenticate("bob", "secret"))

	conn.broken.Store(true)
	_, err := session.ListMessages()
	var ioErr *pop3.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "write LIST", ioErr.Op)
	assert.True(t, conn.closed.Load())
	assert.Equal(t, pop3.StateClosed, session.State())

	_, err = session.ListMessages()
	assert.ErrorIs(t, err, pop3.ErrNotConnected)
}

func TestQuitBeforeConnect(t *testing.T) {
	session := pop3.NewSession(pop3.Config{Host: "localhost"})
	session.Quit()
	session.Quit()
	assert.Equal(t, pop3.StateClosed, session.State())
	assert.ErrorIs(t, session.Connect(), pop3.ErrInvalidState)
}

func TestQuitWithoutReply(t *testing.T) {
	server := &pop3test.Server{
		Handler: scripted(t, "+OK ready\r\n", [2]string{"QUIT", ""}),
	}
	server.Start(t)
	session := pop3.NewSession(pop3.Config{
		Host:    server.Host(),
		Port:    server.Port(),
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, session.Connect())

	session.Quit()
	assert.Equal(t, pop3.StateClosed, session.State())
}

func TestReadTimeout(t *testing.T) {
	server := &pop3test.Server{
		// NOOP never gets an answer
		Handler: scripted(t, "+OK ready\r\n", [2]string{"NOOP", ""}),
	}
	server.Start(t)
	session := pop3.NewSession(pop3.Config{
		Host:    server.Host(),
		Port:    server.Port(),
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, session.Connect())

	start := time.Now()
	err := session.Noop()
	var ioErr *pop3.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.True(t, ioErr.Timeout())
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, pop3.StateClosed, session.State())
}

func TestServerHangsUp(t *testing.T) {
	server := &pop3test.Server{
		Handler: func(conn net.Conn) {
			_, _ = conn.Write([]byte("+OK ready\r\n"))
			reader := bufio.NewReader(conn)
			for _, reply := range []string{"+OK\r\n", "+OK\r\n", "+OK 3 messages\r\n1 100\r\n"} {
				if _, err := reader.ReadString('\n'); err != nil {
					return
				}
				_, _ = conn.Write([]byte(reply))
			}
			// hang up in the middle of the listing
		},
	}
	server.Start(t)
	session := newSession(t, server)
	require.NoError(t, session.Connect())
	require.NoError(t, session.Authenticate("bob", "secret"))

	_, err := session.ListMessages()
	var ioErr *pop3.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.False(t, session.Connected())
}

func TestListRejected(t *testing.T) {
	server := &pop3test.Server{
		Handler: scripted(t, "+OK ready\r\n",
			[2]string{"USER bob", "+OK\r\n"},
			[2]string{"PASS secret", "+OK\r\n"},
			[2]string{"LIST", "-ERR mailbox locked\r\n"},
		),
	}
	server.Start(t)
	session := openSession(t, server)
	defer session.Quit()

	_, err := session.ListMessages()
	var protocolErr *pop3.ProtocolError
	require.ErrorAs(t, err, &protocolErr)
	assert.Equal(t, "-ERR mailbox locked", protocolErr.Reply)
	assert.True(t, session.Authenticated())
}

func TestRateLimitedSession(t *testing.T) {
	server := newServer(t, sampleMessage)
	session := pop3.NewSession(pop3.Config{
		Host:      server.Host(),
		Port:      server.Port(),
		RateLimit: 1024 * 1024,
		ReadSize:  64,
	})
	require.NoError(t, session.Connect())
	require.NoError(t, session.Authenticate("bob", "secret"))
	defer session.Quit()

	text, err := session.RetrieveMessage("1")
	require.NoError(t, err)
	assert.Contains(t, text, "Hi there :)")
}
