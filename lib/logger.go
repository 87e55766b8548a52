package lib

import (
	"fmt"
	"strings"
	"testing"
)

type Logger interface {
	Print(a ...any)
	Println(a ...any)
	Printf(format string, a ...any)
}

type NoLog struct{}

func (l *NoLog) Print(a ...any)                 {}
func (l *NoLog) Println(a ...any)               {}
func (l *NoLog) Printf(format string, a ...any) {}

// TestLogger sends the session transcript to the test output, one line per call
type TestLogger struct {
	t      testing.TB
	prefix string
}

// NewTestLogger prefixes every line with prefix, to tell the client and the server apart
func NewTestLogger(t testing.TB, prefix string) *TestLogger {
	return &TestLogger{
		t:      t,
		prefix: prefix,
	}
}

func (l *TestLogger) Print(a ...any) {
	l.t.Helper()
	l.log(fmt.Sprint(a...))
}

func (l *TestLogger) Println(a ...any) {
	l.t.Helper()
	l.log(strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
}

func (l *TestLogger) Printf(format string, a ...any) {
	l.t.Helper()
	l.log(fmt.Sprintf(format, a...))
}

func (l *TestLogger) log(line string) {
	l.t.Helper()
	if l.prefix != "" {
		line = l.prefix + ": " + line
	}
	l.t.Log(line)
}
