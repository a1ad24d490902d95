// Package echo is the smallest request/response exchange: the server reads
// one short message per connection and sends it back.
package echo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"
)

// MaxMessage is the longest message echoed back in full.
const MaxMessage = 15

var ErrMessageTooLong = fmt.Errorf("echo: message longer than %d bytes", MaxMessage)

type Server struct {
	log         *slog.Logger
	readTimeout time.Duration
}

func NewServer(log *slog.Logger, readTimeout time.Duration) *Server {
	return &Server{log: log, readTimeout: readTimeout}
}

func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve handles connections one at a time until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.log.Info("Echo server listening", "address", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.echo(conn)
	}
}

func (s *Server) echo(conn net.Conn) {
	defer conn.Close()
	if s.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}
	buf := make([]byte, MaxMessage+1)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		s.log.Warn("Echo read failed", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}
	if n > MaxMessage {
		n = MaxMessage
	}
	if _, err := conn.Write(buf[:n]); err != nil {
		s.log.Warn("Echo write failed", "remote", conn.RemoteAddr().String(), "error", err)
	}
}

// Send writes message to addr and returns what came back.
func Send(ctx context.Context, addr, message string) (string, error) {
	if len(message) > MaxMessage {
		return "", ErrMessageTooLong
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("echo: connect %s: %w", addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if _, err := conn.Write([]byte(message)); err != nil {
		return "", fmt.Errorf("echo: send: %w", err)
	}
	reply, err := io.ReadAll(io.LimitReader(conn, MaxMessage))
	if err != nil {
		return "", fmt.Errorf("echo: receive: %w", err)
	}
	return string(reply), nil
}
