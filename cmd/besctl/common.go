package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/Borislavv/go-ash-bes/internal/ppt"
	"github.com/maruel/subcommands"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// connRun holds the flags every subcommand shares.
type connRun struct {
	subcommands.CommandRunBase
	host    string
	port    int
	timeout time.Duration
	verbose bool
}

func (r *connRun) registerConnFlags() {
	r.Flags.StringVar(&r.host, "host", "localhost", "backend host")
	r.Flags.IntVar(&r.port, "port", 10022, "backend PPT port")
	r.Flags.DurationVar(&r.timeout, "timeout", 5*time.Second, "connect and read timeout")
	r.Flags.BoolVar(&r.verbose, "v", false, "log every PPT command")
}

func (r *connRun) addr() string {
	return fmt.Sprintf("%s:%s", r.host, strconv.Itoa(r.port))
}

// sessionLogger is the slog logger handed to the PPT layer.
func (r *connRun) sessionLogger() *slog.Logger {
	level := slog.LevelWarn
	if r.verbose {
		level = slog.LevelDebug
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (r *connRun) dial(ctx context.Context, id string) (*ppt.Transport, error) {
	tr, err := ppt.Dial(ctx, id, r.addr(), r.timeout, r.sessionLogger())
	if err != nil {
		return nil, err
	}
	log.Debug().Str("conn", id).Str("addr", r.addr()).Msg("connected")
	return tr, nil
}

// openSink returns os.Stdout/os.Stderr for an empty path or "-", the created file otherwise.
func openSink(path string, std *os.File) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{std}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file %s: %w", path, err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func usageErr(a subcommands.Application, flags *flag.FlagSet, msg string) int {
	fmt.Fprintf(a.GetErr(), "%s: %s\n", a.GetName(), msg)
	flags.SetOutput(a.GetErr())
	flags.PrintDefaults()
	return 2
}

func fail(err error, msg string) int {
	log.Error().Err(err).Msg(msg)
	return 1
}
