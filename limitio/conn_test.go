package limitio_test

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/creativeprojects/pop3/limitio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const burst = 1024 // 1KB of burst

func TestPassThrough(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	conn := limitio.NewConn(client, 1024*1024, burst)
	defer conn.Close()

	payload := []byte("+OK POP3 server ready\r\n")
	go func() {
		_, _ = server.Write(payload)
	}()

	buffer := make([]byte, 100)
	n, err := conn.Read(buffer)
	require.NoError(t, err)
	assert.Equal(t, payload, buffer[:n])
}

func TestWriteLargerThanBurst(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	conn := limitio.NewConn(client, 1024*1024, burst)
	defer conn.Close()

	payload := bytes.Repeat([]byte{'a'}, 5*burst+10)
	received := make(chan []byte, 1)
	go func() {
		data, _ := io.ReadAll(io.LimitReader(server, int64(len(payload))))
		received <- data
	}()

	n, err := conn.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, <-received)
}

func TestReadRate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}

	rates := []float64{
		64 * 1024,  // 64KB/sec
		128 * 1024, // 128KB/sec
	}
	for _, limit := range rates {
		t.Run(fmt.Sprintf("%.0f bytes/sec", limit), func(t *testing.T) {
			client, server := net.Pipe()
			defer server.Close()

			size := int(limit / 2) // half a second of data
			go func() {
				_, _ = server.Write(bytes.Repeat([]byte{10}, size))
				server.Close()
			}()

			conn := limitio.NewConn(client, limit, burst)
			defer conn.Close()

			start := time.Now()
			n, err := io.Copy(io.Discard, conn)
			elapsed := time.Since(start)
			require.NoError(t, err)
			assert.Equal(t, int64(size), n)

			// the first burst is free
			expected := time.Duration(float64(size-burst) / limit * float64(time.Second))
			assert.GreaterOrEqual(t, elapsed, expected*9/10)
			t.Logf("read %d bytes in %s at %.0f bytes/sec", n, elapsed, limit)
		})
	}
}
