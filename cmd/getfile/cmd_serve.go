package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"getfile-lab/content"
	"getfile-lab/contract"
	"getfile-lab/internal"
	"getfile-lab/notify"
	"getfile-lab/observability"
	"getfile-lab/runtime"
	"getfile-lab/server"
	"getfile-lab/services"
	"log/slog"

	"github.com/google/subcommands"
	"github.com/mama165/sdk-go/logs"
)

type serveCmd struct {
	config internal.Config
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "Serve files over GETFILE with a worker pool." }
func (*serveCmd) Usage() string {
	return `serve [-port N] [-workers N] [-content FILE] :
  Serve the files listed in the content index until interrupted.
`
}

func (p *serveCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&p.config.Port, "port", p.config.Port, "Port to listen on.")
	f.IntVar(&p.config.NumberOfWorkers, "workers", p.config.NumberOfWorkers, "Number of handler workers.")
	f.IntVar(&p.config.MaxPending, "max-pending", p.config.MaxPending, "Maximum pending connections (informational).")
	f.StringVar(&p.config.ContentFilepath, "content", p.config.ContentFilepath, "Content index: one \"<path> <file>\" per line.")
	f.IntVar(&p.config.DebugPort, "debug-port", p.config.DebugPort, "Serve /inspect on this port, 0 to disable.")
	f.StringVar(&p.config.LogLevel, "log-level", p.config.LogLevel, "DEBUG, INFO, WARN or ERROR.")
}

func (p *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	code, err := p.run(ctx)
	return status("serve", code, err)
}

func (p *serveCmd) run(ctx context.Context) (int, error) {
	if err := p.config.Validate(); err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(p.config.LogLevel)

	index, err := content.LoadIndex(log, p.config.ContentFilepath)
	if err != nil {
		return exitConfig, err
	}
	log.Info("Content index loaded", "entries", index.Len(), "path", p.config.ContentFilepath)

	publisher, err := newPublisher(log, p.config)
	if err != nil {
		return exitRuntime, err
	}
	defer publisher.Close()

	monitoring := observability.NewMonitoringManager(log)
	internal.StartDebugServer(ctx, log, p.config.DebugPort, nil, monitoringStats(monitoring))
	handler := services.NewContentHandler(log, index, publisher, monitoring, p.config.ChunkSize())
	fileServer := runtime.NewFileServer(log, runtime.FileServerConfig{
		Server: server.Config{
			Port:              p.config.Port,
			MaxPending:        p.config.MaxPending,
			MaxHeaderBytes:    p.config.MaxHeaderBytes,
			ReadHeaderTimeout: p.config.ReadHeaderTimeout,
		},
		Workers:           p.config.NumberOfWorkers,
		RestartInterval:   p.config.RestartInterval,
		HeartbeatInterval: p.config.HeartbeatInterval,
	}, handler, monitoring)

	if err := fileServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return exitRuntime, fmt.Errorf("file server: %w", err)
	}
	log.Info("File server stopped")
	return exitOK, nil
}

func monitoringStats(m *observability.MonitoringManager) internal.StatsProvider {
	return func() map[string]any {
		s := m.Snapshot()
		return map[string]any{
			"requests_served":     s.RequestsServed,
			"requests_rejected":   s.RequestsRejected,
			"requests_failed":     s.RequestsFailed,
			"downloads_completed": s.DownloadsCompleted,
			"downloads_failed":    s.DownloadsFailed,
			"bytes_sent":          s.BytesSent,
			"bytes_received":      s.BytesReceived,
			"queue":               fmt.Sprintf("%d/%d", s.QueueSize, s.QueueCapacity),
			"alloc_mem_mb":        s.AllocMemMb,
		}
	}
}

// newPublisher logs every event and also sends it to MQTT when a broker is
// configured.
func newPublisher(log *slog.Logger, config internal.Config) (contract.Publisher, error) {
	fanout := notify.NewFanout(notify.NewLogPublisher(log))
	if config.MQTTBroker == "" {
		return fanout, nil
	}
	mqtt, err := notify.NewMQTTPublisher(log, config.MQTTBroker, config.MQTTTopic)
	if err != nil {
		return nil, err
	}
	return fanout.Add(mqtt), nil
}
