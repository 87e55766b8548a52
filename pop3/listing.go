package pop3

import (
	"fmt"
	"strconv"
	"strings"
)

// MessageSummary is one entry of a LIST reply
type MessageSummary struct {
	ID   string
	Size int64
}

// Stat is the maildrop summary returned by STAT
type Stat struct {
	Count int
	Size  int64
}

// parseListing extracts message summaries from a multi-line LIST reply.
// Lines that don't carry an id and a numeric size are skipped.
func parseListing(reply string) []MessageSummary {
	lines := strings.Split(reply, "\n")
	list := make([]MessageSummary, 0, len(lines))
	for i, line := range lines {
		if i == 0 {
			// status line
			continue
		}
		line = strings.TrimRight(line, "\r")
		if line == "." {
			break
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		size, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		list = append(list, MessageSummary{
			ID:   fields[0],
			Size: size,
		})
	}
	return list
}

func parseStat(reply string) (Stat, error) {
	fields := strings.Fields(reply)
	if len(fields) < 3 {
		return Stat{}, fmt.Errorf("malformed STAT reply %q", reply)
	}
	count, err := strconv.Atoi(fields[1])
	if err != nil {
		return Stat{}, fmt.Errorf("malformed STAT message count %q: %w", fields[1], err)
	}
	size, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Stat{}, fmt.Errorf("malformed STAT maildrop size %q: %w", fields[2], err)
	}
	return Stat{
		Count: count,
		Size:  size,
	}, nil
}

// firstLine returns the status line of a raw reply
func firstLine(reply string) string {
	if i := strings.IndexByte(reply, '\n'); i >= 0 {
		reply = reply[:i]
	}
	return strings.TrimRight(reply, "\r")
}
