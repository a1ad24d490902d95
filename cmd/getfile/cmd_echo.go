package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"getfile-lab/echo"
	"getfile-lab/internal"
	"net"
	"strconv"

	"github.com/google/subcommands"
	"github.com/mama165/sdk-go/logs"
)

type echoServerCmd struct {
	config internal.Config
}

func (*echoServerCmd) Name() string     { return "echo-server" }
func (*echoServerCmd) Synopsis() string { return "Echo one short message per connection." }
func (*echoServerCmd) Usage() string {
	return `echo-server [-port N] :
  Read up to 15 bytes from each client and send them back.
`
}

func (p *echoServerCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&p.config.Port, "port", p.config.Port, "Port to listen on.")
}

func (p *echoServerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log := logs.GetLoggerFromString(p.config.LogLevel)
	err := echo.NewServer(log, p.config.ReadHeaderTimeout).ListenAndServe(ctx, p.config.Port)
	if err != nil && !errors.Is(err, context.Canceled) {
		return status("echo-server", exitRuntime, err)
	}
	return subcommands.ExitSuccess
}

type echoCmd struct {
	config  internal.Config
	message string
}

func (*echoCmd) Name() string     { return "echo" }
func (*echoCmd) Synopsis() string { return "Send a message to an echo server." }
func (*echoCmd) Usage() string {
	return `echo [-server HOST] [-port N] [-message TEXT] :
  Print what the echo server sends back.
`
}

func (p *echoCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.config.Server, "server", p.config.Server, "Echo server host.")
	f.IntVar(&p.config.Port, "port", p.config.Port, "Echo server port.")
	f.StringVar(&p.message, "message", "Hello World!", "Message to send, at most 15 bytes.")
}

func (p *echoCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	addr := net.JoinHostPort(p.config.Server, strconv.Itoa(p.config.Port))
	reply, err := echo.Send(ctx, addr, p.message)
	if errors.Is(err, echo.ErrMessageTooLong) {
		return status("echo", exitConfig, err)
	}
	if err != nil {
		return status("echo", exitRuntime, err)
	}
	fmt.Println(reply)
	return subcommands.ExitSuccess
}
