package pop3

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/creativeprojects/pop3/limitio"
)

// Dialer opens the raw stream to the server. *net.Dialer satisfies it.
type Dialer interface {
	Dial(network, address string) (net.Conn, error)
}

// transport is the stream owned by a session. Every read and write gets a fresh deadline.
type transport struct {
	conn    net.Conn
	timeout time.Duration
}

func openTransport(cfg Config, addr string) (*transport, error) {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &net.Dialer{Timeout: cfg.Timeout}
	}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	if cfg.TLS {
		conn, err = wrapTLS(conn, cfg)
		if err != nil {
			return nil, err
		}
	}
	if cfg.RateLimit > 0 {
		conn = limitio.NewConn(conn, cfg.RateLimit, cfg.ReadSize)
	}
	return &transport{
		conn:    conn,
		timeout: cfg.Timeout,
	}, nil
}

// wrapTLS runs the client handshake over conn, verifying the certificate against cfg.Host
func wrapTLS(conn net.Conn, cfg Config) (net.Conn, error) {
	tlsConfig := &tls.Config{}
	if cfg.TLSConfig != nil {
		tlsConfig = cfg.TLSConfig.Clone()
	}
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = cfg.Host
	}
	if cfg.SkipTLSVerification {
		tlsConfig.InsecureSkipVerify = true
	}

	tlsConn := tls.Client(conn, tlsConfig)
	_ = tlsConn.SetDeadline(time.Now().Add(cfg.Timeout))
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, &TLSError{ServerName: tlsConfig.ServerName, Err: err}
	}
	_ = tlsConn.SetDeadline(time.Time{})
	return tlsConn, nil
}

func (t *transport) Read(p []byte) (int, error) {
	_ = t.conn.SetReadDeadline(time.Now().Add(t.timeout))
	return t.conn.Read(p)
}

func (t *transport) Write(p []byte) (int, error) {
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	return t.conn.Write(p)
}

func (t *transport) Close() error {
	return t.conn.Close()
}
