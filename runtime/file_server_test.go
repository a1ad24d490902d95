package runtime

import (
	"context"
	"getfile-lab/observability"
	"getfile-lab/protocol"
	"getfile-lab/server"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileServer_CountsEngineRejections(t *testing.T) {
	req := require.New(t)
	log := slog.New(slog.DiscardHandler)
	monitoring := observability.NewMonitoringManager(log)

	var handled, forwarded atomic.Int32
	handler := server.HandlerFunc(func(_ context.Context, c *server.Conn) error {
		handled.Add(1)
		if err := c.SendHeader(protocol.StatusFileNotFound, 0); err != nil {
			return err
		}
		return c.Close()
	})
	fs := NewFileServer(log, FileServerConfig{
		Workers: 1,
		Server: server.Config{
			MaxHeaderBytes: 64,
			OnReject:       func(error) { forwarded.Add(1) },
		},
	}, handler, monitoring)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = fs.Serve(ctx, ln)
	}()
	defer func() {
		cancel()
		<-done
	}()
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(ln.Addr().(*net.TCPAddr).Port))

	// Given two malformed requests
	for _, raw := range []string{"GETFILE GET noslash\r\n\r\n", "NOPE\r\n\r\n"} {
		conn, err := net.Dial("tcp", addr)
		req.NoError(err)
		_, err = conn.Write([]byte(raw))
		req.NoError(err)
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		reply, err := io.ReadAll(conn)
		req.NoError(err)
		req.Equal(protocol.StatusFileNotFound, protocol.DecodeResponse(reply).Status)
		_ = conn.Close()
	}

	// Then both are counted and the configured hook still runs
	req.Eventually(func() bool {
		return monitoring.Snapshot().RequestsRejected == 2 && forwarded.Load() == 2
	}, 2*time.Second, 10*time.Millisecond)
	req.Zero(handled.Load())
}
