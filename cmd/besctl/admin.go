package main

import (
	"context"
	"fmt"
	"github.com/Borislavv/go-ash-bes/config"
	"github.com/Borislavv/go-ash-bes/internal/admin"
	"github.com/maruel/subcommands"
	"github.com/rs/zerolog/log"
	"strconv"
)

func cmdAdmin() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "admin [flags] <start|stop|stop-nice|config|log|contexts|set-context name on|off>",
		ShortDesc: "sends a request to the backend daemon admin port",
		LongDesc:  "Sends one admin request to the backend daemon and prints the answer.",
		CommandRun: func() subcommands.CommandRun {
			r := &adminRun{}
			r.registerConnFlags()
			r.Flags.IntVar(&r.adminPort, "admin-port", 11002, "backend daemon admin port")
			r.Flags.StringVar(&r.module, "module", "", "module for config requests")
			r.Flags.IntVar(&r.lines, "lines", 0, "log lines to tail")
			return r
		},
	}
}

type adminRun struct {
	connRun
	adminPort int
	module    string
	lines     int
}

func (r *adminRun) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) == 0 {
		return usageErr(a, &r.Flags, "no admin request given")
	}

	target := config.NewTarget()
	target.Host, target.Port, target.AdminPort, target.Timeout = r.host, r.port, r.adminPort, r.timeout
	client, err := admin.New(target, &config.AdminCfg{Timeout: r.timeout}, nil, r.sessionLogger())
	if err != nil {
		return fail(err, "invalid admin target")
	}

	ctx := context.Background()
	var out []byte
	switch args[0] {
	case "start":
		out, err = client.Start(ctx)
	case "stop":
		out, err = client.StopNow(ctx)
	case "stop-nice":
		out, err = client.StopNice(ctx, r.timeout)
	case "config":
		out, err = client.GetConfig(ctx, r.module)
	case "log":
		out, err = client.TailLog(ctx, r.lines)
	case "contexts":
		var contexts []admin.LogContext
		if contexts, err = client.LogContexts(ctx); err == nil {
			for _, c := range contexts {
				fmt.Fprintf(a.GetOut(), "%-24s %s\n", c.Name, c.State)
			}
		}
	case "set-context":
		if len(args) != 3 {
			return usageErr(a, &r.Flags, "set-context needs a name and on|off")
		}
		out, err = client.SetLogContext(ctx, args[1], args[2] == "on")
	default:
		return usageErr(a, &r.Flags, "unknown admin request "+strconv.Quote(args[0]))
	}
	if err != nil {
		return fail(err, "admin request failed")
	}
	if len(out) > 0 {
		_, _ = a.GetOut().Write(out)
		fmt.Fprintln(a.GetOut())
	}
	log.Debug().Str("request", args[0]).Msg("done")
	return 0
}
