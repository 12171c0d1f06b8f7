// Command besctl talks PPT to a backend from the shell: run commands, command files and admin requests.
package main

import (
	"github.com/maruel/subcommands"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"os"
)

var application = &subcommands.DefaultApplication{
	Name:  "besctl",
	Title: "Command line client for OPeNDAP back-end servers.",
	Commands: []*subcommands.Command{
		cmdExec(),
		cmdRun(),
		cmdAdmin(),
		subcommands.CmdHelp,
	},
}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
		With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	os.Exit(subcommands.Run(application, nil))
}
