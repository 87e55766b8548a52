package limitio

import (
	"context"
	"net"

	"golang.org/x/time/rate"
)

// Conn is a net.Conn with the bandwidth capped in both directions.
// Each direction has its own limiter so a slow download doesn't starve the commands.
type Conn struct {
	net.Conn
	readLimiter  *rate.Limiter
	writeLimiter *rate.Limiter
}

// NewConn wraps conn with a rate limit of bytesPerSec on reads and writes.
// burst is the largest amount of bytes allowed in one go and should match the read buffer size.
func NewConn(conn net.Conn, bytesPerSec float64, burst int) *Conn {
	if burst <= 0 {
		burst = 1
	}
	return &Conn{
		Conn:         conn,
		readLimiter:  rate.NewLimiter(rate.Limit(bytesPerSec), burst),
		writeLimiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
	}
}

// Read bytes into p, then wait long enough to stay under the rate limit
func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		if werr := wait(c.readLimiter, n); werr != nil && err == nil {
			err = werr
		}
	}
	return n, err
}

// Write p in slices no larger than the burst size
func (c *Conn) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		size := len(p) - written
		if size > c.writeLimiter.Burst() {
			size = c.writeLimiter.Burst()
		}
		if err := c.writeLimiter.WaitN(context.Background(), size); err != nil {
			return written, err
		}
		n, err := c.Conn.Write(p[written : written+size])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// wait consumes n tokens, one burst at a time
func wait(limiter *rate.Limiter, n int) error {
	for n > 0 {
		size := n
		if size > limiter.Burst() {
			size = limiter.Burst()
		}
		if err := limiter.WaitN(context.Background(), size); err != nil {
			return err
		}
		n -= size
	}
	return nil
}
