package cmd

import "github.com/creativeprojects/pop3/cfg"

// GlobalFlags are the persistent flags shared by every command
type GlobalFlags struct {
	configFile string
	quiet      bool
	verbose    bool
}

var (
	global GlobalFlags
	// config is only loaded for the commands annotated with needsConfig
	config *cfg.Config
)
