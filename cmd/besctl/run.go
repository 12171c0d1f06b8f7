package main

import (
	"context"
	"github.com/maruel/subcommands"
	"github.com/rs/zerolog/log"
	"os"
)

func cmdRun() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "run [flags] -file <commands file>",
		ShortDesc: "executes a command file",
		LongDesc:  "Executes a command file. Statements end with ';' and may span several lines.",
		CommandRun: func() subcommands.CommandRun {
			r := &runRun{}
			r.registerConnFlags()
			r.Flags.StringVar(&r.file, "file", "", "command file")
			r.Flags.StringVar(&r.out, "out", "", "response output file, stdout by default")
			return r
		},
	}
}

type runRun struct {
	connRun
	file string
	out  string
}

func (r *runRun) Run(a subcommands.Application, _ []string, _ subcommands.Env) int {
	if r.file == "" {
		return usageErr(a, &r.Flags, "-file is required")
	}
	script, err := os.Open(r.file)
	if err != nil {
		return fail(err, "cannot open command file")
	}
	defer script.Close()

	out, err := openSink(r.out, os.Stdout)
	if err != nil {
		return fail(err, "cannot open output")
	}
	defer out.Close()

	tr, err := r.dial(context.Background(), "besctl-1")
	if err != nil {
		return fail(err, "cannot connect")
	}
	defer func() { _ = tr.Shutdown(true) }()

	tr.Redirect(out, os.Stderr, true)
	ok, err := tr.ExecuteScript(script)
	if err != nil {
		return fail(err, "session broken")
	}
	if !ok {
		log.Warn().Str("file", r.file).Int64("commands", tr.Commands()).Msg("script stopped at a backend error")
		return 1
	}
	log.Info().Str("file", r.file).Int64("commands", tr.Commands()).Msg("done")
	return 0
}
