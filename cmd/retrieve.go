package cmd

import (
	"fmt"
	"strings"

	"github.com/creativeprojects/pop3/lib"
	"github.com/creativeprojects/pop3/mailbox"
	"github.com/spf13/cobra"
)

var retrieveCmd = &cobra.Command{
	Use:         "retrieve <account> <message id>",
	Aliases:     []string{"retr"},
	Short:       "Display the raw content of a message",
	Annotations: map[string]string{needsConfig: "true"},
	RunE:        runRetrieve,
}

var retrieveFlags struct {
	text bool
}

func init() {
	rootCmd.AddCommand(retrieveCmd)
	retrieveCmd.Flags().BoolVarP(&retrieveFlags.text, "text", "t", false, "display the message only, without the server status line and terminator")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return lib.ErrMissingAccount
	} else if len(args) < 2 {
		return lib.ErrMissingMessageID
	}
	session, err := openSession(args[0])
	if err != nil {
		return err
	}
	defer session.Quit()

	reply, err := session.RetrieveMessage(args[1])
	if err != nil {
		return err
	}
	return printReply(cmd, reply, retrieveFlags.text)
}

// printReply writes a raw RETR or TOP reply, or only the message when text is set.
// A -ERR reply is reported as an error.
func printReply(cmd *cobra.Command, reply string, text bool) error {
	if !strings.HasPrefix(reply, "+OK") {
		return fmt.Errorf("server replied: %s", strings.TrimSpace(reply))
	}
	if text {
		var err error
		reply, err = mailbox.Text(reply)
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), reply)
	return err
}
