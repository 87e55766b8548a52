package lib

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddress(t *testing.T) {
	fixtures := []struct {
		host     string
		port     int
		useTLS   bool
		expected string
	}{
		{"pop.example.com", 0, false, "pop.example.com:110"},
		{"pop.example.com", 0, true, "pop.example.com:995"},
		{"pop.example.com", 1110, true, "pop.example.com:1110"},
		{"127.0.0.1", 2110, false, "127.0.0.1:2110"},
		{"::1", 0, true, "[::1]:995"},
	}

	for _, fixture := range fixtures {
		result := Address(fixture.host, fixture.port, fixture.useTLS)
		assert.Equal(t, fixture.expected, result)
	}
}
