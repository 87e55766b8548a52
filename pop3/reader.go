package pop3

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

// DefaultReadSize is the number of bytes requested from the transport on each read
const DefaultReadSize = 4096

// terminator ends a multi-line response: the CRLF of the previous line followed by a lone "."
var terminator = []byte("\r\n.\r\n")

// reader frames server replies on top of a byte stream.
// Bytes received past the end of a reply stay buffered for the next one.
type reader struct {
	src   io.Reader
	buf   bytes.Buffer
	chunk []byte
}

func newReader(src io.Reader, readSize int) *reader {
	if readSize <= 0 {
		readSize = DefaultReadSize
	}
	return &reader{
		src:   src,
		chunk: make([]byte, readSize),
	}
}

// fill appends one chunk from the source to the buffer
func (r *reader) fill() error {
	n, err := r.src.Read(r.chunk)
	if n > 0 {
		r.buf.Write(r.chunk[:n])
		return nil
	}
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// waitLine makes sure a complete line is buffered and returns its length, line feed included
func (r *reader) waitLine() (int, error) {
	scanned := 0
	for {
		data := r.buf.Bytes()
		if i := bytes.IndexByte(data[scanned:], '\n'); i >= 0 {
			return scanned + i + 1, nil
		}
		scanned = len(data)
		if err := r.fill(); err != nil {
			return 0, err
		}
	}
}

// readLine returns the next line without its trailing CRLF
func (r *reader) readLine() (string, error) {
	n, err := r.waitLine()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(r.buf.Next(n)), "\r\n"), nil
}

// readMultiline returns a whole multi-line reply, status line and terminator included.
// A status line other than +OK carries no body and is returned on its own.
func (r *reader) readMultiline() (string, error) {
	n, err := r.waitLine()
	if err != nil {
		return "", err
	}
	if !isOK(string(r.buf.Bytes()[:n])) {
		return string(r.buf.Next(n)), nil
	}

	// the status line CRLF is part of the terminator of an empty body,
	// so scanning starts at the beginning of the reply
	scanned := 0
	for {
		data := r.buf.Bytes()
		// step back so a terminator split over two chunks is still found
		from := scanned - len(terminator) + 1
		if from < 0 {
			from = 0
		}
		if i := bytes.Index(data[from:], terminator); i >= 0 {
			return string(r.buf.Next(from + i + len(terminator))), nil
		}
		scanned = len(data)
		if err := r.fill(); err != nil {
			return "", err
		}
	}
}
