package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"getfile-lab/client"
	"getfile-lab/domain"
	gferrors "getfile-lab/errors"
	"getfile-lab/mocks"
	"getfile-lab/observability"
	"getfile-lab/protocol"
	"getfile-lab/server"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	provider   *mocks.MockContentProvider
	publisher  *mocks.MockPublisher
	monitoring *observability.MonitoringManager
	events     chan domain.TransferEvent
	port       int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	f := &fixture{
		provider:   mocks.NewMockContentProvider(ctrl),
		publisher:  mocks.NewMockPublisher(ctrl),
		monitoring: observability.NewMonitoringManager(log),
		events:     make(chan domain.TransferEvent, 4),
	}
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, evt domain.TransferEvent) error {
			f.events <- evt
			return nil
		}).AnyTimes()

	handler := NewContentHandler(log, f.provider, f.publisher, f.monitoring, 4)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.NewServer(log, handler, server.Config{}).Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	f.port = ln.Addr().(*net.TCPAddr).Port
	return f
}

func (f *fixture) fetch(t *testing.T, path string) (*client.Request, string, error) {
	var body bytes.Buffer
	r := client.NewRequest("127.0.0.1", f.port, path, &body)
	err := client.NewEngine(slog.Default(), 0, 0).Perform(context.Background(), r)
	return r, body.String(), err
}

func (f *fixture) nextEvent(t *testing.T) domain.TransferEvent {
	select {
	case evt := <-f.events:
		return evt
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no transfer event published")
		return domain.TransferEvent{}
	}
}

func TestContentHandler_StreamsFoundContent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	body := strings.Repeat("0123456789", 3)
	f.provider.EXPECT().Lookup("/a.txt").Return(domain.Content{
		Key:  "/a.txt",
		Size: int64(len(body)),
		Body: io.NopCloser(strings.NewReader(body)),
	}, nil)

	r, got, err := f.fetch(t, "/a.txt")
	req.NoError(err)
	req.Equal(protocol.StatusOK, r.Status())
	req.Equal(body, got)

	evt := f.nextEvent(t)
	req.Equal(domain.EventServed, evt.Kind)
	req.Equal("OK", evt.WireStatus)
	req.Equal(int64(30), evt.Bytes)
	req.False(evt.Failed)

	s := f.monitoring.Snapshot()
	req.Equal(uint64(1), s.RequestsServed)
	req.Equal(uint64(30), s.BytesSent)
}

func TestContentHandler_NotFound(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.provider.EXPECT().Lookup("/missing").
		Return(domain.Content{}, fmt.Errorf("content %w", gferrors.ErrNotFound))

	r, got, err := f.fetch(t, "/missing")
	req.NoError(err)
	req.Equal(protocol.StatusFileNotFound, r.Status())
	req.Empty(got)

	evt := f.nextEvent(t)
	req.Equal("FILE_NOT_FOUND", evt.WireStatus)
	req.False(evt.Failed)
	req.Equal(uint64(1), f.monitoring.Snapshot().RequestsRejected)
}

func TestContentHandler_LookupFailureIsError(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.provider.EXPECT().Lookup("/locked").
		Return(domain.Content{}, errors.New("permission denied"))

	r, _, err := f.fetch(t, "/locked")
	req.NoError(err)
	req.Equal(protocol.StatusError, r.Status())

	evt := f.nextEvent(t)
	req.Equal("ERROR", evt.WireStatus)
	req.True(evt.Failed)
}

func TestContentHandler_ShortContentAborts(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.provider.EXPECT().Lookup("/shrunk").Return(domain.Content{
		Key:  "/shrunk",
		Size: 10,
		Body: io.NopCloser(strings.NewReader("abc")),
	}, nil)

	r, _, err := f.fetch(t, "/shrunk")
	req.Error(err)
	req.Less(r.BytesReceived(), int64(10))

	evt := f.nextEvent(t)
	req.True(evt.Failed)
	req.Equal(int64(3), evt.Bytes)
	req.Equal(uint64(1), f.monitoring.Snapshot().RequestsFailed)
}
