package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"getfile-lab/internal"
	"getfile-lab/sink"
	"getfile-lab/transfer"
	"net"
	"strconv"

	"github.com/google/subcommands"
	"github.com/mama165/sdk-go/logs"
)

type transferServerCmd struct {
	config internal.Config
}

func (*transferServerCmd) Name() string     { return "transfer-server" }
func (*transferServerCmd) Synopsis() string { return "Send one file to every client." }
func (*transferServerCmd) Usage() string {
	return `transfer-server [-port N] -file FILE :
  Stream FILE to each connecting client, then close the connection.
`
}

func (p *transferServerCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&p.config.Port, "port", p.config.Port, "Port to listen on.")
	f.StringVar(&p.config.TransferFilepath, "file", p.config.TransferFilepath, "File to send.")
}

func (p *transferServerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if p.config.TransferFilepath == "" {
		return status("transfer-server", exitConfig, errors.New("-file is required"))
	}
	log := logs.GetLoggerFromString(p.config.LogLevel)
	s := transfer.NewServer(log, p.config.TransferFilepath, p.config.ChunkSize())
	if err := s.ListenAndServe(ctx, p.config.Port); err != nil && !errors.Is(err, context.Canceled) {
		return status("transfer-server", exitRuntime, err)
	}
	return subcommands.ExitSuccess
}

type transferCmd struct {
	config internal.Config
	out    string
}

func (*transferCmd) Name() string     { return "transfer" }
func (*transferCmd) Synopsis() string { return "Receive a file from a transfer server." }
func (*transferCmd) Usage() string {
	return `transfer [-server HOST] [-port N] [-out FILE] :
  Save everything the transfer server sends.
`
}

func (p *transferCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.config.Server, "server", p.config.Server, "Transfer server host.")
	f.IntVar(&p.config.Port, "port", p.config.Port, "Transfer server port.")
	f.StringVar(&p.out, "out", "received.bin", "Local file to write.")
}

func (p *transferCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	file, err := sink.Open(p.out)
	if err != nil {
		return status("transfer", exitRuntime, err)
	}
	addr := net.JoinHostPort(p.config.Server, strconv.Itoa(p.config.Port))
	n, err := transfer.Receive(ctx, addr, file)
	if err != nil {
		_ = file.Discard()
		return status("transfer", exitRuntime, err)
	}
	if err := file.Close(); err != nil {
		return status("transfer", exitRuntime, err)
	}
	fmt.Printf("%d bytes written to %s (sha256 %s)\n", n, file.Path(), file.Sha256())
	return subcommands.ExitSuccess
}
