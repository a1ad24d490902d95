package services

import (
	"context"
	"errors"
	"fmt"
	"getfile-lab/contract"
	"getfile-lab/domain"
	gferrors "getfile-lab/errors"
	"getfile-lab/observability"
	"getfile-lab/protocol"
	"getfile-lab/server"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ContentHandler answers one GETFILE request from a ContentProvider. It can
// be used directly as a server.Handler or called from handler workers.
type ContentHandler struct {
	log        *slog.Logger
	provider   contract.ContentProvider
	publisher  contract.Publisher
	monitoring *observability.MonitoringManager
	bufferPool *sync.Pool
}

func NewContentHandler(log *slog.Logger,
	provider contract.ContentProvider,
	publisher contract.Publisher,
	monitoring *observability.MonitoringManager,
	chunkSize int) *ContentHandler {
	if chunkSize <= 0 {
		chunkSize = 64 * domain.KB
	}
	return &ContentHandler{
		log:        log,
		provider:   provider,
		publisher:  publisher,
		monitoring: monitoring,
		bufferPool: &sync.Pool{
			New: func() any {
				b := make([]byte, chunkSize)
				return &b
			},
		},
	}
}

// Handle always leaves c closed or aborted. The returned error only reports
// what went wrong; the connection is already dealt with.
func (h *ContentHandler) Handle(ctx context.Context, c *server.Conn) error {
	path := c.Path()
	log := h.log.With("path", path, "remote", c.RemoteAddr().String())

	content, err := h.provider.Lookup(path)
	if err != nil {
		status := protocol.StatusError
		if errors.Is(err, gferrors.ErrNotFound) {
			status = protocol.StatusFileNotFound
			h.monitoring.IncrRequestsRejected()
			log.Debug("Requested file not found")
		} else {
			h.monitoring.IncrRequestsFailed()
			log.Error("Content lookup failed", "error", err)
		}
		if herr := c.SendHeader(status, 0); herr != nil {
			_ = c.Abort()
			return fmt.Errorf("sending %s header: %w", status, herr)
		}
		_ = c.Close()
		h.publish(ctx, path, status, 0, status != protocol.StatusFileNotFound)
		return nil
	}
	defer content.Body.Close()

	if err := c.SendHeader(protocol.StatusOK, content.Size); err != nil {
		_ = c.Abort()
		h.monitoring.IncrRequestsFailed()
		return fmt.Errorf("sending OK header: %w", err)
	}

	sent, err := h.stream(c, content)
	h.monitoring.AddBytesSent(sent)
	if err != nil {
		_ = c.Abort()
		h.monitoring.IncrRequestsFailed()
		h.publish(ctx, path, protocol.StatusOK, sent, true)
		return fmt.Errorf("streaming %s after %d of %d bytes: %w", path, sent, content.Size, err)
	}

	_ = c.Close()
	h.monitoring.IncrRequestsServed()
	log.Debug("File served", "bytes", sent, "mime", content.MimeType)
	h.publish(ctx, path, protocol.StatusOK, sent, false)
	return nil
}

func (h *ContentHandler) stream(c *server.Conn, content domain.Content) (int64, error) {
	bufPtr := h.bufferPool.Get().(*[]byte)
	defer h.bufferPool.Put(bufPtr)
	buf := *bufPtr

	var sent int64
	for sent < content.Size {
		n, rerr := content.Body.Read(buf)
		if n > 0 {
			if remaining := content.Size - sent; int64(n) > remaining {
				n = int(remaining)
			}
			w, werr := c.Send(buf[:n])
			sent += int64(w)
			if werr != nil {
				return sent, werr
			}
			if w < n {
				return sent, io.ErrShortWrite
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) && sent == content.Size {
				break
			}
			if errors.Is(rerr, io.EOF) {
				return sent, io.ErrUnexpectedEOF
			}
			return sent, rerr
		}
	}
	return sent, nil
}

func (h *ContentHandler) publish(ctx context.Context, path string, status protocol.Status, n int64, failed bool) {
	evt := domain.TransferEvent{
		Kind:       domain.EventServed,
		Path:       path,
		WireStatus: status.String(),
		Bytes:      n,
		Failed:     failed,
		At:         time.Now(),
	}
	if err := h.publisher.Publish(ctx, evt); err != nil {
		h.log.Warn("Failed to publish served event", "path", path, "error", err)
	}
}
