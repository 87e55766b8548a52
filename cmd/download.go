package cmd

import (
	"fmt"
	"strings"

	"github.com/creativeprojects/pop3/lib"
	"github.com/creativeprojects/pop3/mailbox"
	"github.com/creativeprojects/pop3/mdir"
	"github.com/creativeprojects/pop3/pop3"
	"github.com/creativeprojects/pop3/term"
	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:         "download <account> <maildir>",
	Short:       "Download all messages into a maildir",
	Annotations: map[string]string{needsConfig: "true"},
	RunE:        runDownload,
}

var downloadFlags struct {
	delete bool
	seen   bool
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	flags := downloadCmd.Flags()
	flags.BoolVar(&downloadFlags.delete, "delete", false, "delete each message from the server once saved")
	flags.BoolVar(&downloadFlags.seen, "seen", false, "flag the saved messages as seen")
}

func runDownload(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return lib.ErrMissingAccount
	} else if len(args) < 2 {
		return fmt.Errorf("missing maildir path")
	}
	dir, err := mdir.New(args[1])
	if err != nil {
		return err
	}
	if global.verbose {
		dir.DebugLogger(term.Logger{})
	}

	session, err := openSession(args[0])
	if err != nil {
		return err
	}
	defer session.Quit()

	messages, err := session.ListMessages()
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		term.Info("No message to download")
		return nil
	}

	progress := newProgressBar("Downloading", len(messages))
	count, err := downloadMessages(session, messages, dir, progress)
	progress.Stop()
	term.Infof("%d messages saved into %s", count, dir.Root())
	return err
}

// downloadMessages saves every message into the maildir, and returns how many were saved.
// It stops at the first error.
func downloadMessages(session *pop3.Session, messages []pop3.MessageSummary, dir *mdir.Maildir, progress Progresser) (int, error) {
	count := 0
	for _, msg := range messages {
		reply, err := session.RetrieveMessage(msg.ID)
		if err != nil {
			return count, err
		}
		text, err := mailbox.Text(reply)
		if err != nil {
			return count, fmt.Errorf("message %s: %w", msg.ID, err)
		}
		if _, err := dir.Save(strings.NewReader(text), downloadFlags.seen); err != nil {
			return count, fmt.Errorf("cannot save message %s: %w", msg.ID, err)
		}
		count++
		if downloadFlags.delete {
			if err := session.DeleteMessage(msg.ID); err != nil {
				return count, err
			}
		}
		progress.Increment()
	}
	return count, nil
}
