package mailbox

import (
	"errors"
	"fmt"
	"strings"
)

var ErrReplyNotOK = errors.New("server did not reply +OK")

// Text extracts the message from a raw RETR or TOP reply: the status line and
// the terminator are removed and dot-stuffed lines are restored.
func Text(reply string) (string, error) {
	status, body := reply, ""
	if i := strings.IndexByte(reply, '\n'); i >= 0 {
		status, body = reply[:i+1], reply[i+1:]
	}
	status = strings.TrimRight(status, "\r\n")
	if !strings.HasPrefix(status, "+OK") {
		return "", fmt.Errorf("%w: %s", ErrReplyNotOK, status)
	}
	body = strings.TrimSuffix(body, ".\r\n")
	return Unstuff(body), nil
}

// Unstuff removes the extra dot the server adds in front of lines starting with a dot
func Unstuff(body string) string {
	if !strings.Contains(body, "\n.") && !strings.HasPrefix(body, ".") {
		return body
	}
	lines := strings.SplitAfter(body, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, ".") {
			lines[i] = line[1:]
		}
	}
	return strings.Join(lines, "")
}
