package cmd

import (
	"strings"

	"github.com/creativeprojects/pop3/lib"
	"github.com/creativeprojects/pop3/mailbox"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

const dateFormat = "2006-01-02 15:04:05 MST"

var headersCmd = &cobra.Command{
	Use:         "headers <account> <message id>",
	Aliases:     []string{"top"},
	Short:       "Display the headers of a message without downloading it",
	Annotations: map[string]string{needsConfig: "true"},
	RunE:        runHeaders,
}

var headersFlags struct {
	all bool
	raw bool
}

func init() {
	rootCmd.AddCommand(headersCmd)
	flags := headersCmd.Flags()
	flags.BoolVarP(&headersFlags.all, "all", "a", false, "display all the header fields")
	flags.BoolVar(&headersFlags.raw, "raw", false, "display the raw server reply")
}

func runHeaders(cmd *cobra.Command, args []string) error {
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

	reply, err := session.PeekMessageHeaders(args[1])
	if err != nil {
		return err
	}
	if headersFlags.raw {
		return printReply(cmd, reply, false)
	}
	text, err := mailbox.Text(reply)
	if err != nil {
		return err
	}
	headers, err := mailbox.ParseHeaders(text)
	if err != nil {
		return err
	}
	return headersTable(headers, headersFlags.all).Render()
}

func headersTable(headers *mailbox.Headers, all bool) *pterm.TablePrinter {
	table := pterm.DefaultTable.WithBoxed(true).WithData(pterm.TableData{})
	if all {
		for _, field := range headers.Fields {
			table.Data = append(table.Data, []string{field.Key, field.Value})
		}
		return table
	}
	date := ""
	if !headers.Date.IsZero() {
		date = headers.Date.Format(dateFormat)
	}
	table.Data = append(table.Data,
		[]string{"From", strings.Join(headers.From, ", ")},
		[]string{"To", strings.Join(headers.To, ", ")},
		[]string{"Date", date},
		[]string{"Subject", headers.Subject},
		[]string{"Message-ID", headers.MessageID},
	)
	return table
}
