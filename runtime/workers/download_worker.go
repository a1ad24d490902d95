package workers

import (
	"context"
	"errors"
	"fmt"
	"getfile-lab/client"
	"getfile-lab/contract"
	"getfile-lab/domain"
	"getfile-lab/observability"
	"getfile-lab/protocol"
	"getfile-lab/queue"
	"getfile-lab/sink"
	"log/slog"
	"time"
)

// DownloadTask is one queued request. The boss has already opened File.
type DownloadTask struct {
	ID   domain.TransferID
	Path string
	File *sink.LocalFile
}

type DownloadWorker struct {
	log        *slog.Logger
	tasks      *queue.Queue[DownloadTask]
	engine     *client.Engine
	server     string
	port       int
	repository contract.ITransferRepository
	publisher  contract.Publisher
	monitoring *observability.MonitoringManager
	completion *Completion
}

func NewDownloadWorker(log *slog.Logger,
	tasks *queue.Queue[DownloadTask],
	engine *client.Engine,
	server string, port int,
	repository contract.ITransferRepository,
	publisher contract.Publisher,
	monitoring *observability.MonitoringManager,
	completion *Completion) *DownloadWorker {
	return &DownloadWorker{
		log:        log,
		tasks:      tasks,
		engine:     engine,
		server:     server,
		port:       port,
		repository: repository,
		publisher:  publisher,
		monitoring: monitoring,
		completion: completion,
	}
}

// Run performs queued downloads until the queue is closed and drained.
func (w *DownloadWorker) Run(ctx context.Context) error {
	for {
		task, err := w.tasks.Dequeue()
		if errors.Is(err, queue.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		w.Process(ctx, task)
	}
}

// Process performs one download and always marks it done on the completion,
// even when it panics.
func (w *DownloadWorker) Process(ctx context.Context, task DownloadTask) {
	transfer := domain.Transfer{
		ID:         task.ID,
		RemotePath: task.Path,
		LocalPath:  task.File.Path(),
		Status:     domain.StatusInProgress,
		WireStatus: protocol.StatusInvalid.String(),
		StartedAt:  time.Now(),
	}
	defer func() { w.completion.Done(transfer) }()
	w.save(transfer)

	req := client.NewRequest(w.server, w.port, task.Path, task.File)
	err := w.engine.Perform(ctx, req)

	transfer.WireStatus = req.Status().String()
	transfer.Advertised = req.FileLen()
	transfer.Received = req.BytesReceived()
	transfer.EndedAt = time.Now()
	w.monitoring.AddBytesReceived(req.BytesReceived())

	if err == nil && req.Status() != protocol.StatusOK {
		err = fmt.Errorf("server answered %s", req.Status())
	}
	if err == nil {
		err = task.File.Close()
	}

	if err != nil {
		if derr := task.File.Discard(); derr != nil {
			w.log.Warn("Failed to discard local file", "file", task.File.Path(), "error", derr)
		}
		transfer.Status = domain.StatusFailed
		transfer.Error = err.Error()
		w.monitoring.IncrDownloadsFailed()
		w.log.Warn("Download failed", "path", task.Path, "status", transfer.WireStatus, "error", err)
	} else {
		transfer.Status = domain.StatusCompleted
		transfer.Sha256 = task.File.Sha256()
		w.monitoring.IncrDownloadsCompleted()
		w.log.Debug("Download completed", "path", task.Path, "file", task.File.Path(), "bytes", transfer.Received)
	}

	w.save(transfer)
	w.publish(ctx, transfer)
}

func (w *DownloadWorker) save(transfer domain.Transfer) {
	if err := w.repository.Save(transfer); err != nil {
		w.log.Error("Failed to record transfer", "id", transfer.ID, "error", err)
	}
}

func (w *DownloadWorker) publish(ctx context.Context, transfer domain.Transfer) {
	evt := domain.TransferEvent{
		Kind:       domain.EventDownloaded,
		ID:         string(transfer.ID),
		Path:       transfer.RemotePath,
		WireStatus: transfer.WireStatus,
		Bytes:      transfer.Received,
		Failed:     transfer.Status != domain.StatusCompleted,
		At:         transfer.EndedAt,
	}
	if err := w.publisher.Publish(ctx, evt); err != nil {
		w.log.Warn("Failed to publish transfer event", "id", transfer.ID, "error", err)
	}
}
