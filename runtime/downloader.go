// Package runtime holds the two bosses: the Downloader feeds download
// workers from a workload and the FileServer feeds handler workers from the
// accept loop. Both share one bounded queue with their workers.
package runtime

import (
	"context"
	"fmt"
	"getfile-lab/client"
	"getfile-lab/contract"
	"getfile-lab/domain"
	"getfile-lab/observability"
	"getfile-lab/queue"
	"getfile-lab/runtime/workers"
	"getfile-lab/sink"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type DownloaderConfig struct {
	Server            string
	Port              int
	Workers           int
	OutputDir         string
	ChunkSize         int
	MaxHeaderBytes    int
	RestartInterval   time.Duration
	HeartbeatInterval time.Duration
}

// Summary describes one Run.
type Summary struct {
	Requested int
	Completed int
	Failed    int
	Bytes     int64
	Elapsed   time.Duration
}

type Downloader struct {
	log        *slog.Logger
	config     DownloaderConfig
	engine     *client.Engine
	repository contract.ITransferRepository
	publisher  contract.Publisher
	monitoring *observability.MonitoringManager
	namer      *sink.Namer
}

func NewDownloader(log *slog.Logger, config DownloaderConfig,
	repository contract.ITransferRepository,
	publisher contract.Publisher,
	monitoring *observability.MonitoringManager) *Downloader {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &Downloader{
		log:        log,
		config:     config,
		engine:     client.NewEngine(log, config.ChunkSize, config.MaxHeaderBytes),
		repository: repository,
		publisher:  publisher,
		monitoring: monitoring,
		namer:      sink.NewNamer(config.OutputDir),
	}
}

// Source hands out request paths; workload.Workload implements it.
type Source interface {
	Next() string
}

// Run downloads total paths taken from source, waits for every one of them
// and stops the workers. Individual failures are counted in the Summary, not
// returned.
func (d *Downloader) Run(ctx context.Context, source Source, total int) (Summary, error) {
	if total <= 0 {
		return Summary{}, fmt.Errorf("total requests must be positive, got %d", total)
	}
	start := time.Now()

	tasks := queue.New[workers.DownloadTask](d.config.Workers + 2)
	completion := workers.NewCompletion()
	supervisor := workers.NewSupervisor(d.log, d.config.RestartInterval)
	for i := 0; i < d.config.Workers; i++ {
		supervisor.Add(workers.NewDownloadWorker(d.log, tasks, d.engine,
			d.config.Server, d.config.Port, d.repository, d.publisher, d.monitoring, completion))
	}
	if d.config.HeartbeatInterval > 0 {
		supervisor.Add(workers.NewHeartbeatWorker(d.log, d.monitoring, tasks, d.config.HeartbeatInterval))
	}

	supervised := make(chan struct{})
	go func() {
		defer close(supervised)
		supervisor.Run(ctx)
	}()
	stopQueue := context.AfterFunc(ctx, tasks.Close)
	defer stopQueue()

	d.log.Info("Starting downloads", "server", d.config.Server, "port", d.config.Port,
		"workers", d.config.Workers, "requests", total)

	for i := 0; i < total; i++ {
		path := source.Next()
		task, err := d.newTask(path)
		if err != nil {
			d.log.Error("Could not prepare download", "path", path, "error", err)
			completion.Done(domain.Transfer{RemotePath: path, Status: domain.StatusFailed})
			continue
		}
		if err := tasks.Enqueue(task); err != nil {
			_ = task.File.Discard()
			break
		}
	}

	waitErr := completion.Wait(ctx, total)
	tasks.Close()
	supervisor.Stop()
	<-supervised

	completed, failed, bytes := completion.Totals()
	summary := Summary{
		Requested: total,
		Completed: completed,
		Failed:    failed,
		Bytes:     bytes,
		Elapsed:   time.Since(start),
	}
	d.log.Info("Downloads finished", "completed", completed, "failed", failed,
		"bytes", bytes, "elapsed", summary.Elapsed)
	return summary, waitErr
}

func (d *Downloader) newTask(path string) (workers.DownloadTask, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return workers.DownloadTask{}, err
	}
	file, err := sink.Open(d.namer.Name(path))
	if err != nil {
		return workers.DownloadTask{}, err
	}
	return workers.DownloadTask{ID: domain.TransferID(id.String()), Path: path, File: file}, nil
}
