package runtime

import (
	"context"
	"getfile-lab/content"
	"getfile-lab/domain"
	"getfile-lab/notify"
	"getfile-lab/observability"
	"getfile-lab/server"
	"getfile-lab/services"
	"getfile-lab/storage"
	"getfile-lab/workload"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startContentServer(t *testing.T, workers int, files map[string]string) int {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	dir := t.TempDir()
	var index strings.Builder
	for key, body := range files {
		name := strings.TrimPrefix(key, "/")
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
		index.WriteString(key + " " + name + "\n")
	}
	idx, err := content.ParseIndex(log, strings.NewReader(index.String()), dir)
	require.NoError(t, err)

	monitoring := observability.NewMonitoringManager(log)
	handler := services.NewContentHandler(log, idx, notify.Nop{}, monitoring, 3)
	fs := NewFileServer(log, FileServerConfig{Workers: workers, Server: server.Config{}}, handler, monitoring)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = fs.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().(*net.TCPAddr).Port
}

func TestDownloader_RunAgainstFileServer(t *testing.T) {
	req := require.New(t)
	log := slog.New(slog.DiscardHandler)
	port := startContentServer(t, 2, map[string]string{
		"/a.txt": "hello",
		"/b.txt": strings.Repeat("b", 10000),
	})

	db, err := storage.Open("")
	req.NoError(err)
	defer db.Close()
	repository := storage.NewTransferRepository(db, log)

	out := t.TempDir()
	d := NewDownloader(log, DownloaderConfig{
		Server:    "127.0.0.1",
		Port:      port,
		Workers:   3,
		OutputDir: out,
		ChunkSize: 512,
	}, repository, notify.Nop{}, observability.NewMonitoringManager(log))

	source, err := workload.New("/a.txt", "/b.txt", "/missing")
	req.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	summary, err := d.Run(ctx, source, 9)
	req.NoError(err)
	req.Equal(9, summary.Requested)
	req.Equal(6, summary.Completed)
	req.Equal(3, summary.Failed)
	req.Equal(int64(3*5+3*10000), summary.Bytes)

	counts, err := repository.CountByStatus()
	req.NoError(err)
	req.Equal(6, counts[domain.StatusCompleted])
	req.Equal(3, counts[domain.StatusFailed])

	transfers, err := repository.List(0)
	req.NoError(err)
	req.Len(transfers, 9)
	for _, tr := range transfers {
		if tr.Status != domain.StatusCompleted {
			_, err := os.Stat(tr.LocalPath)
			req.True(os.IsNotExist(err), tr.LocalPath)
			continue
		}
		body, err := os.ReadFile(tr.LocalPath)
		req.NoError(err)
		req.Equal(tr.Advertised, int64(len(body)))
		req.True(strings.HasPrefix(tr.LocalPath, out))
	}
}

func TestDownloader_MoreRequestsThanQueueCapacity(t *testing.T) {
	req := require.New(t)
	log := slog.New(slog.DiscardHandler)
	port := startContentServer(t, 1, map[string]string{"/f": "x"})

	db, err := storage.Open("")
	req.NoError(err)
	defer db.Close()

	d := NewDownloader(log, DownloaderConfig{
		Server: "127.0.0.1", Port: port, Workers: 2, OutputDir: t.TempDir(),
	}, storage.NewTransferRepository(db, log), notify.Nop{}, observability.NewMonitoringManager(log))

	source, err := workload.New("/f")
	req.NoError(err)
	summary, err := d.Run(context.Background(), source, 2+5)
	req.NoError(err)
	req.Equal(7, summary.Completed)
	req.Zero(summary.Failed)
}

func TestDownloader_RejectsNonPositiveTotal(t *testing.T) {
	d := NewDownloader(slog.Default(), DownloaderConfig{}, nil, notify.Nop{}, nil)
	source, err := workload.New("/f")
	require.NoError(t, err)
	_, err = d.Run(context.Background(), source, 0)
	require.Error(t, err)
}

func TestDownloader_CancelledRunReturns(t *testing.T) {
	req := require.New(t)
	log := slog.New(slog.DiscardHandler)

	// Accepts but never answers.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				_, _ = io.Copy(io.Discard, c)
				_ = c.Close()
			}()
		}
	}()

	db, err := storage.Open("")
	req.NoError(err)
	defer db.Close()
	d := NewDownloader(log, DownloaderConfig{
		Server: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port, Workers: 2, OutputDir: t.TempDir(),
	}, storage.NewTransferRepository(db, log), notify.Nop{}, observability.NewMonitoringManager(log))

	source, err := workload.New("/slow")
	req.NoError(err)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error)
	go func() {
		_, err := d.Run(ctx, source, 10)
		done <- err
	}()
	select {
	case err := <-done:
		req.ErrorIs(err, context.DeadlineExceeded)
	case <-time.After(3 * time.Second):
		req.Fail("Run did not return after cancellation")
	}
}
