package workers

import (
	"context"
	"errors"
	"getfile-lab/queue"
	"getfile-lab/server"
	"log/slog"
)

// ServeTask is an accepted connection waiting for a handler worker.
type ServeTask struct {
	Path string
	Conn *server.Conn
}

type HandlerWorker struct {
	log     *slog.Logger
	tasks   *queue.Queue[ServeTask]
	handler server.Handler
}

func NewHandlerWorker(log *slog.Logger, tasks *queue.Queue[ServeTask], handler server.Handler) *HandlerWorker {
	return &HandlerWorker{log: log, tasks: tasks, handler: handler}
}

// Run serves queued connections until the queue is closed and drained.
// Connections still queued after ctx is cancelled are aborted.
func (w *HandlerWorker) Run(ctx context.Context) error {
	for {
		task, err := w.tasks.Dequeue()
		if errors.Is(err, queue.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			_ = task.Conn.Abort()
			continue
		}
		if err := w.handler.Handle(ctx, task.Conn); err != nil {
			w.log.Warn("Request handling failed", "path", task.Path, "error", err)
			if task.Conn.State() != server.StateClosed {
				_ = task.Conn.Abort()
			}
		}
	}
}
