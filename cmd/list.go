package cmd

import (
	"errors"
	"strconv"

	"github.com/creativeprojects/pop3/lib"
	"github.com/creativeprojects/pop3/pop3"
	"github.com/creativeprojects/pop3/term"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:         "list <account>",
	Short:       "Display the list of messages in the maildrop",
	Annotations: map[string]string{needsConfig: "true"},
	RunE:        runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return lib.ErrMissingAccount
	}
	session, err := openSession(args[0])
	if err != nil {
		return err
	}
	defer session.Quit()

	stat, messages, err := listMessages(session)
	if err != nil {
		return err
	}
	if stat != nil {
		term.Infof("%d messages (%s)", stat.Count, humanSize(stat.Size))
	}
	if len(messages) == 0 {
		term.Warn("No message in the maildrop")
		return nil
	}
	return listTable(messages).Render()
}

// listMessages returns the maildrop summary and the list of messages.
// The summary is nil when the server refuses STAT.
func listMessages(session *pop3.Session) (*pop3.Stat, []pop3.MessageSummary, error) {
	var summary *pop3.Stat
	stat, err := session.Stat()
	if err == nil {
		summary = &stat
	} else {
		var protocolErr *pop3.ProtocolError
		if !errors.As(err, &protocolErr) {
			return nil, nil, err
		}
		term.Debugf("no maildrop summary: %s", err)
	}
	messages, err := session.ListMessages()
	if err != nil {
		return summary, nil, err
	}
	return summary, messages, nil
}

func listTable(messages []pop3.MessageSummary) *pterm.TablePrinter {
	table := pterm.DefaultTable.WithHasHeader().WithRightAlignment().WithData(pterm.TableData{
		{"ID", "Size"},
	})
	for _, msg := range messages {
		table.Data = append(table.Data, []string{msg.ID, strconv.FormatInt(msg.Size, 10)})
	}
	return table
}
