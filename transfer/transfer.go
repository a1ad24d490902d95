// Package transfer streams one fixed file to every client that connects.
// There is no header: the end of the file is the end of the connection.
package transfer

import (
	"context"
	"fmt"
	"getfile-lab/domain"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
)

type Server struct {
	log        *slog.Logger
	path       string
	bufferPool *sync.Pool
}

func NewServer(log *slog.Logger, path string, chunkSize int) *Server {
	if chunkSize <= 0 {
		chunkSize = 4 * domain.KB
	}
	return &Server{
		log:  log,
		path: path,
		bufferPool: &sync.Pool{
			New: func() any {
				b := make([]byte, chunkSize)
				return &b
			},
		},
	}
}

func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("file to serve: %w", err)
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve sends the file to each connection in turn until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.log.Info("Transfer server listening", "address", ln.Addr().String(), "file", s.path)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("accept: %w", err)
		}
		n, err := s.send(conn)
		if err != nil {
			s.log.Warn("Transfer failed", "remote", conn.RemoteAddr().String(), "sent", n, "error", err)
		} else {
			s.log.Debug("Transfer done", "remote", conn.RemoteAddr().String(), "sent", n)
		}
	}
}

func (s *Server) send(conn net.Conn) (int64, error) {
	defer conn.Close()
	f, err := os.Open(s.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	bufPtr := s.bufferPool.Get().(*[]byte)
	defer s.bufferPool.Put(bufPtr)
	return io.CopyBuffer(conn, f, *bufPtr)
}

// Receive connects to addr and copies everything the server sends into dst.
func Receive(ctx context.Context, addr string, dst io.Writer) (int64, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("transfer: connect %s: %w", addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	n, err := io.Copy(dst, conn)
	if err != nil {
		if ctx.Err() != nil {
			return n, fmt.Errorf("transfer: %w", ctx.Err())
		}
		return n, fmt.Errorf("transfer: receive: %w", err)
	}
	return n, nil
}
