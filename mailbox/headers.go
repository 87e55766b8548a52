package mailbox

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
)

type Headers struct {
	From      []string
	To        []string
	Subject   string
	Date      time.Time
	MessageID string
	// Fields keeps every header field in the order received
	Fields []Field
}

type Field struct {
	Key   string
	Value string
}

// ParseHeaders reads the header section of a message. The body, if any, is ignored.
// Malformed addresses or dates are left empty rather than failing the whole header.
func ParseHeaders(text string) (*Headers, error) {
	header, err := textproto.ReadHeader(bufio.NewReader(strings.NewReader(text)))
	if err != nil {
		return nil, fmt.Errorf("cannot read message header: %w", err)
	}
	mailHeader := mail.Header{Header: message.Header{Header: header}}

	headers := &Headers{
		Fields: make([]Field, 0, header.Len()),
	}
	fields := header.Fields()
	for fields.Next() {
		headers.Fields = append(headers.Fields, Field{Key: fields.Key(), Value: fields.Value()})
	}

	headers.Subject, err = mailHeader.Subject()
	if err != nil {
		headers.Subject = header.Get("Subject")
	}
	headers.From = addresses(&mailHeader, "From")
	headers.To = addresses(&mailHeader, "To")
	if date, err := mailHeader.Date(); err == nil {
		headers.Date = date
	}
	headers.MessageID = strings.Trim(header.Get("Message-Id"), "<> ")
	return headers, nil
}

func addresses(header *mail.Header, key string) []string {
	list, err := header.AddressList(key)
	if err != nil {
		if raw := header.Get(key); raw != "" {
			return []string{raw}
		}
		return nil
	}
	output := make([]string, len(list))
	for i, address := range list {
		output[i] = address.String()
	}
	return output
}
