package lib

import (
	"net"
	"strconv"
)

const (
	PortPOP3  = 110
	PortPOP3S = 995
)

// DefaultPort returns the conventional POP3 port for a plain or TLS connection
func DefaultPort(useTLS bool) int {
	if useTLS {
		return PortPOP3S
	}
	return PortPOP3
}

// Address joins host and port, falling back to the default port when port is zero
func Address(host string, port int, useTLS bool) string {
	if port <= 0 {
		port = DefaultPort(useTLS)
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
