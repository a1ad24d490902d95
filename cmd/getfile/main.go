// Command getfile runs GETFILE servers and clients plus the echo and
// transfer warm-up tools.
package main

import (
	"context"
	"flag"
	"fmt"
	"getfile-lab/internal"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
)

// Exit codes, aligned with subcommands.ExitStatus.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	config, err := internal.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "getfile: %v\n", err)
		os.Exit(exitConfig)
	}

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&serveCmd{config: config}, "getfile")
	subcommands.Register(&fetchCmd{config: config}, "getfile")
	subcommands.Register(&inspectCmd{config: config}, "getfile")
	subcommands.Register(&echoServerCmd{config: config}, "warm-up")
	subcommands.Register(&echoCmd{config: config}, "warm-up")
	subcommands.Register(&transferServerCmd{config: config}, "warm-up")
	subcommands.Register(&transferCmd{config: config}, "warm-up")
	subcommands.Register(&versionCmd{}, "")

	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := subcommands.Execute(ctx)
	stop()
	os.Exit(int(code))
}

// status turns a run() result into an exit status, reporting err on stderr.
func status(name string, code int, err error) subcommands.ExitStatus {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s terminated with error: %v\n", name, err)
	}
	switch code {
	case exitOK:
		return subcommands.ExitSuccess
	case exitConfig:
		return subcommands.ExitUsageError
	default:
		return subcommands.ExitFailure
	}
}
