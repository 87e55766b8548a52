package cmd

import (
	"fmt"
	"os"

	"github.com/creativeprojects/pop3/cfg"
	"github.com/creativeprojects/pop3/term"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pop3",
	Short: "POP3 tools: list, retrieve, download",
	Long:  "\nPOP3 tools: list, retrieve, download",
	// the configuration is only needed by the commands talking to a server
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[needsConfig] == "" {
			return nil
		}
		return initConfig()
	},
}

const needsConfig = "config"

func init() {
	cobra.OnInitialize(initLog)
	flag := rootCmd.PersistentFlags()
	flag.StringVarP(&global.configFile, "config", "c", "pop3.yaml", "configuration file (yaml or toml)")
	flag.BoolVarP(&global.quiet, "quiet", "q", false, "only display warnings and errors")
	flag.BoolVarP(&global.verbose, "verbose", "v", false, "display debugging information and the POP3 transcript")
}

func initConfig() error {
	var err error
	config, err = cfg.LoadFromFile(global.configFile)
	if err != nil {
		return fmt.Errorf("cannot open or read configuration file: %w", err)
	}
	return nil
}

func initLog() {
	switch {
	case global.verbose:
		term.SetLevel(term.LevelDebug)
	case global.quiet:
		term.SetLevel(term.LevelWarn)
	}
}

func Execute(version, commit, date, builtBy string) {
	setApp(version, commit, date, builtBy)
	rootCmd.Version = versionInfo()
	if err := rootCmd.Execute(); err != nil {
		term.Error(err)
		os.Exit(1)
	}
}
