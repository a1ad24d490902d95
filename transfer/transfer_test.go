package transfer

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransfer_EveryClientGetsTheWholeFile(t *testing.T) {
	req := require.New(t)
	body := strings.Repeat("getfile-", 5000)
	path := filepath.Join(t.TempDir(), "payload.bin")
	req.NoError(os.WriteFile(path, []byte(body), 0o644))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = NewServer(slog.New(slog.DiscardHandler), path, 1024).Serve(ctx, ln)
	}()
	defer func() {
		cancel()
		<-done
	}()

	for i := 0; i < 3; i++ {
		var got bytes.Buffer
		n, err := Receive(context.Background(), ln.Addr().String(), &got)
		req.NoError(err)
		req.Equal(int64(len(body)), n)
		req.Equal(body, got.String())
	}
}

func TestTransfer_ListenRequiresFile(t *testing.T) {
	s := NewServer(slog.Default(), filepath.Join(t.TempDir(), "absent"), 0)
	require.Error(t, s.ListenAndServe(context.Background(), 0))
}
