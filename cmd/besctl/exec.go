package main

import (
	"context"
	"github.com/Borislavv/go-ash-bes/internal/ppt"
	"github.com/maruel/subcommands"
	"github.com/rs/zerolog/log"
	"os"
	"strconv"
	"strings"
)

func cmdExec() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "exec [flags] <commands>",
		ShortDesc: "runs ';' separated commands against a backend",
		LongDesc:  "Runs the ';' separated command list -reps times, reconnecting every -max-cmds commands.",
		CommandRun: func() subcommands.CommandRun {
			r := &execRun{}
			r.registerConnFlags()
			r.Flags.IntVar(&r.reps, "reps", 1, "how many times to run the command list")
			r.Flags.IntVar(&r.maxCmds, "max-cmds", 0, "reconnect after this many commands, 0 never")
			r.Flags.StringVar(&r.out, "out", "", "response output file, stdout by default")
			r.Flags.StringVar(&r.errOut, "err", "", "error output file, stderr by default")
			return r
		},
	}
}

type execRun struct {
	connRun
	reps    int
	maxCmds int
	out     string
	errOut  string
}

func (r *execRun) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	cmds := strings.TrimSpace(strings.Join(args, " "))
	if cmds == "" {
		return usageErr(a, &r.Flags, "no commands given")
	}
	if r.reps < 1 {
		return usageErr(a, &r.Flags, "-reps must be >= 1")
	}

	out, err := openSink(r.out, os.Stdout)
	if err != nil {
		return fail(err, "cannot open output")
	}
	defer out.Close()
	errOut, err := openSink(r.errOut, os.Stderr)
	if err != nil {
		return fail(err, "cannot open error output")
	}
	defer errOut.Close()

	var (
		ctx      = context.Background()
		tr       *ppt.Transport
		sessions int
	)
	defer func() {
		if tr != nil {
			_ = tr.Shutdown(true)
		}
	}()

	for rep := 1; rep <= r.reps; rep++ {
		if tr == nil || (r.maxCmds > 0 && tr.Commands() >= int64(r.maxCmds)) {
			if tr != nil {
				log.Debug().Int64("commands", tr.Commands()).Msg("reconnecting")
				if err = tr.Shutdown(true); err != nil {
					log.Warn().Err(err).Msg("shutdown failed")
				}
			}
			sessions++
			if tr, err = r.dial(ctx, "besctl-"+strconv.Itoa(sessions)); err != nil {
				return fail(err, "cannot connect")
			}
		}

		tr.Redirect(out, errOut, true)
		ok, err := tr.ExecuteCommands(cmds)
		if err != nil {
			return fail(err, "session broken")
		}
		if !ok {
			log.Warn().Int("rep", rep).Msg("backend answered with an error")
		}
	}

	log.Info().Int("reps", r.reps).Int("sessions", sessions).Msg("done")
	return 0
}
