package workers

import (
	"context"
	"getfile-lab/observability"
	"getfile-lab/protocol"
	"getfile-lab/queue"
	"getfile-lab/server"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/shirou/gopsutil/process"
	"github.com/stretchr/testify/require"
)

func TestHandlerWorker_ServesQueuedConnections(t *testing.T) {
	req := require.New(t)
	log := slog.New(slog.DiscardHandler)
	tasks := queue.New[ServeTask](2)

	handler := server.HandlerFunc(func(_ context.Context, c *server.Conn) error {
		_ = c.SendHeader(protocol.StatusOK, int64(len(c.Path())))
		_, _ = c.Send([]byte(c.Path()))
		return c.Close()
	})
	worker := NewHandlerWorker(log, tasks, handler)
	workerDone := make(chan error)
	go func() { workerDone <- worker.Run(context.Background()) }()

	dispatcher := server.HandlerFunc(func(_ context.Context, c *server.Conn) error {
		return tasks.Enqueue(ServeTask{Path: c.Path(), Conn: c})
	})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan struct{})
	go func() {
		defer close(serveDone)
		_ = server.NewServer(log, dispatcher, server.Config{}).Serve(ctx, ln)
	}()

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(ln.Addr().(*net.TCPAddr).Port))
	for _, path := range []string{"/one", "/two", "/three"} {
		conn, err := net.Dial("tcp", addr)
		req.NoError(err)
		_, err = conn.Write(protocol.EncodeRequest(path))
		req.NoError(err)
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		reply, err := io.ReadAll(conn)
		req.NoError(err)
		req.Equal("GETFILE OK "+strconv.Itoa(len(path))+"\r\n\r\n"+path, string(reply))
		conn.Close()
	}

	cancel()
	<-serveDone
	tasks.Close()
	req.NoError(<-workerDone)
}

type fixedGauge struct{ size, capacity int }

func (g fixedGauge) Len() int { return g.size }
func (g fixedGauge) Cap() int { return g.capacity }

func TestHeartbeatWorker_BeatUpdatesQueueGauge(t *testing.T) {
	req := require.New(t)
	log := slog.New(slog.DiscardHandler)
	monitoring := observability.NewMonitoringManager(log)
	w := NewHeartbeatWorker(log, monitoring, fixedGauge{size: 2, capacity: 6}, 0)

	p, err := process.NewProcess(int32(os.Getpid()))
	req.NoError(err)
	w.Beat(p)

	s := monitoring.Snapshot()
	req.Equal(2, s.QueueSize)
	req.Equal(6, s.QueueCapacity)
}
