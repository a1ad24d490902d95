package main

import (
	"context"
	"getfile-lab/content"
	"getfile-lab/domain"
	"getfile-lab/internal"
	"getfile-lab/notify"
	"getfile-lab/observability"
	"getfile-lab/runtime"
	"getfile-lab/services"
	"getfile-lab/storage"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startFetchTarget(t *testing.T) int {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644))
	idx, err := content.ParseIndex(log, strings.NewReader("/a.txt a.txt\n"), dir)
	require.NoError(t, err)

	monitoring := observability.NewMonitoringManager(log)
	handler := services.NewContentHandler(log, idx, notify.Nop{}, monitoring, 0)
	fs := runtime.NewFileServer(log, runtime.FileServerConfig{Workers: 2}, handler, monitoring)

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

func TestFetch_RequestsArePerWorker(t *testing.T) {
	req := require.New(t)
	port := startFetchTarget(t)

	dir := t.TempDir()
	workloadPath := filepath.Join(dir, "workload.txt")
	req.NoError(os.WriteFile(workloadPath, []byte("/a.txt\n"), 0o644))
	ledger := filepath.Join(dir, "ledger")

	// Given 3 workers doing 4 requests each
	cmd := &fetchCmd{config: internal.Config{
		LogLevel:         "ERROR",
		Server:           "127.0.0.1",
		Port:             port,
		MaxPending:       1,
		MaxHeaderBytes:   4096,
		ChunkSizeKb:      1,
		NumberOfWorkers:  3,
		NumberOfRequests: 4,
		WorkloadFilepath: workloadPath,
		OutputDir:        filepath.Join(dir, "out"),
		BadgerFilepath:   ledger,
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	code, err := cmd.run(ctx)
	req.NoError(err)
	req.Equal(exitOK, code)

	// Then 12 downloads were recorded
	db, err := storage.Open(ledger)
	req.NoError(err)
	defer db.Close()
	counts, err := storage.NewTransferRepository(db, slog.Default()).CountByStatus()
	req.NoError(err)
	req.Equal(12, counts[domain.StatusCompleted])

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	req.NoError(err)
	req.Len(entries, 12)
	req.Equal("a.txt-000000", entries[0].Name())
}
