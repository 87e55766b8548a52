package mdir

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/creativeprojects/pop3/lib"
	"github.com/emersion/go-maildir"
)

// Maildir stores downloaded messages, one file per message
type Maildir struct {
	root string
	dir  maildir.Dir
	log  lib.Logger
}

// New opens the maildir at root, creating the cur, new and tmp directories if needed
func New(root string) (*Maildir, error) {
	dir := maildir.Dir(root)
	if _, err := os.Stat(filepath.Join(root, "cur")); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if err := os.MkdirAll(root, 0700); err != nil {
			return nil, err
		}
		if err := dir.Init(); err != nil {
			return nil, fmt.Errorf("cannot initialize maildir %q: %w", root, err)
		}
	}
	return &Maildir{
		root: root,
		dir:  dir,
		log:  &lib.NoLog{},
	}, nil
}

func (m *Maildir) DebugLogger(logger lib.Logger) {
	m.log = logger
}

func (m *Maildir) Root() string {
	return m.root
}

// Save copies the message into the maildir and returns its key
func (m *Maildir) Save(body io.Reader, seen bool) (string, error) {
	var flags []maildir.Flag
	if seen {
		flags = append(flags, maildir.FlagSeen)
	}
	key, writer, err := m.dir.Create(flags)
	if err != nil {
		return "", err
	}
	copied, err := io.Copy(writer, body)
	if err != nil {
		_ = writer.Close()
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	m.log.Printf("Message saved: maildir=%q key=%q size=%d", m.root, key, copied)
	return key, nil
}
