package main

import "github.com/creativeprojects/pop3/cmd"

// set by the linker at build time
var (
	version = "dev"
	commit  = ""
	date    = ""
	builtBy = ""
)

func main() {
	cmd.Execute(version, commit, date, builtBy)
}
