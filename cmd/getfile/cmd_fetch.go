package main

import (
	"context"
	"flag"
	"fmt"
	"getfile-lab/internal"
	"getfile-lab/observability"
	"getfile-lab/runtime"
	"getfile-lab/storage"
	"getfile-lab/workload"
	"time"

	"github.com/google/subcommands"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
)

type fetchCmd struct {
	config internal.Config
}

func (*fetchCmd) Name() string     { return "fetch" }
func (*fetchCmd) Synopsis() string { return "Download a workload from a GETFILE server." }
func (*fetchCmd) Usage() string {
	return `fetch [-server HOST] [-port N] [-workers N] [-requests N] [-workload FILE] :
  Cycle through the workload until workers*requests downloads are done.
`
}

func (p *fetchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.config.Server, "server", p.config.Server, "GETFILE server host.")
	f.IntVar(&p.config.Port, "port", p.config.Port, "GETFILE server port.")
	f.IntVar(&p.config.NumberOfWorkers, "workers", p.config.NumberOfWorkers, "Number of download workers.")
	f.IntVar(&p.config.NumberOfRequests, "requests", p.config.NumberOfRequests, "Number of requests per worker.")
	f.StringVar(&p.config.WorkloadFilepath, "workload", p.config.WorkloadFilepath, "File with one request path per line.")
	f.StringVar(&p.config.OutputDir, "out", p.config.OutputDir, "Directory receiving downloaded files.")
	f.StringVar(&p.config.BadgerFilepath, "ledger", p.config.BadgerFilepath, "Transfer ledger directory, empty for in-memory.")
	f.IntVar(&p.config.DebugPort, "debug-port", p.config.DebugPort, "Serve /inspect on this port, 0 to disable.")
	f.StringVar(&p.config.LogLevel, "log-level", p.config.LogLevel, "DEBUG, INFO, WARN or ERROR.")
}

func (p *fetchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	code, err := p.run(ctx)
	return status("fetch", code, err)
}

func (p *fetchCmd) run(ctx context.Context) (int, error) {
	if err := p.config.Validate(); err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(p.config.LogLevel)

	source, err := workload.Load(p.config.WorkloadFilepath)
	if err != nil {
		return exitConfig, err
	}

	db, err := storage.Open(p.config.BadgerFilepath)
	if err != nil {
		return exitRuntime, err
	}
	defer db.Close()

	publisher, err := newPublisher(log, p.config)
	if err != nil {
		return exitRuntime, err
	}
	defer publisher.Close()

	monitoring := observability.NewMonitoringManager(log)
	repository := storage.NewTransferRepository(db, log)
	internal.StartDebugServer(ctx, log, p.config.DebugPort, repository.List, monitoringStats(monitoring))

	downloader := runtime.NewDownloader(log, runtime.DownloaderConfig{
		Server:            p.config.Server,
		Port:              p.config.Port,
		Workers:           p.config.NumberOfWorkers,
		OutputDir:         p.config.OutputDir,
		ChunkSize:         p.config.ChunkSize(),
		MaxHeaderBytes:    p.config.MaxHeaderBytes,
		RestartInterval:   p.config.RestartInterval,
		HeartbeatInterval: p.config.HeartbeatInterval,
	}, repository, publisher, monitoring)

	summary, err := downloader.Run(ctx, source, p.config.TotalRequests())
	printSummary(summary)
	if err != nil {
		return exitRuntime, fmt.Errorf("download run: %w", err)
	}
	if summary.Failed > 0 {
		return exitRuntime, fmt.Errorf("%d of %d downloads failed", summary.Failed, summary.Requested)
	}
	return exitOK, nil
}

func printSummary(s runtime.Summary) {
	header := color.New(color.BgBlack, color.FgGreen).Render(" GETFILE fetch summary ")
	fmt.Println(header)
	fmt.Printf("  requested : %d\n", s.Requested)
	fmt.Printf("  completed : %s\n", color.Green.Sprint(s.Completed))
	if s.Failed > 0 {
		fmt.Printf("  failed    : %s\n", color.Red.Sprint(s.Failed))
	} else {
		fmt.Printf("  failed    : %d\n", s.Failed)
	}
	fmt.Printf("  bytes     : %d\n", s.Bytes)
	fmt.Printf("  elapsed   : %s\n", s.Elapsed.Round(time.Millisecond))
}
