package runtime

import (
	"context"
	"fmt"
	"getfile-lab/observability"
	"getfile-lab/queue"
	"getfile-lab/runtime/workers"
	"getfile-lab/server"
	"log/slog"
	"net"
	"strconv"
	"time"
)

type FileServerConfig struct {
	Server            server.Config
	Workers           int
	RestartInterval   time.Duration
	HeartbeatInterval time.Duration
}

// FileServer accepts connections on the boss goroutine and hands each one
// to a pool of workers running handler.
type FileServer struct {
	log        *slog.Logger
	config     FileServerConfig
	handler    server.Handler
	monitoring *observability.MonitoringManager
}

func NewFileServer(log *slog.Logger, config FileServerConfig, handler server.Handler,
	monitoring *observability.MonitoringManager) *FileServer {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &FileServer{log: log, config: config, handler: handler, monitoring: monitoring}
}

// Run listens on the configured port until ctx is cancelled.
func (fs *FileServer) Run(ctx context.Context) error {
	addr := net.JoinHostPort("", strconv.Itoa(fs.config.Server.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return fs.Serve(ctx, ln)
}

// Serve blocks until ctx is cancelled or ln fails. Workers are stopped and
// connections still queued are aborted before it returns.
func (fs *FileServer) Serve(ctx context.Context, ln net.Listener) error {
	tasks := queue.New[workers.ServeTask](fs.config.Workers + 2)
	supervisor := workers.NewSupervisor(fs.log, fs.config.RestartInterval)
	for i := 0; i < fs.config.Workers; i++ {
		supervisor.Add(workers.NewHandlerWorker(fs.log, tasks, fs.handler))
	}
	if fs.config.HeartbeatInterval > 0 {
		supervisor.Add(workers.NewHeartbeatWorker(fs.log, fs.monitoring, tasks, fs.config.HeartbeatInterval))
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	supervised := make(chan struct{})
	go func() {
		defer close(supervised)
		supervisor.Run(serveCtx)
	}()
	stopQueue := context.AfterFunc(serveCtx, tasks.Close)
	defer stopQueue()

	dispatch := server.HandlerFunc(func(_ context.Context, c *server.Conn) error {
		fs.monitoring.UpdateQueue(tasks.Len(), tasks.Cap())
		return tasks.Enqueue(workers.ServeTask{Path: c.Path(), Conn: c})
	})

	serverConfig := fs.config.Server
	onReject := serverConfig.OnReject
	serverConfig.OnReject = func(err error) {
		fs.monitoring.IncrRequestsRejected()
		if onReject != nil {
			onReject(err)
		}
	}

	fs.log.Info("Starting file server", "workers", fs.config.Workers, "queue_capacity", tasks.Cap())
	err := server.NewServer(fs.log, dispatch, serverConfig).Serve(serveCtx, ln)

	cancel()
	tasks.Close()
	<-supervised
	fs.monitoring.Log()
	return err
}
