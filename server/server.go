// Package server accepts GETFILE connections, reads and parses each request
// and hands valid ones to a Handler. Responses are produced by the handler
// through Conn.SendHeader, Conn.Send and Conn.Close or Conn.Abort.
package server

import (
	"context"
	"errors"
	"fmt"
	"getfile-lab/protocol"
	"log/slog"
	"net"
	"strconv"
	"time"
)

// Handler owns c from the moment Handle is called: it must eventually Close
// or Abort it, possibly from another goroutine. Returning an error while c
// is still open makes the server abort it.
type Handler interface {
	Handle(ctx context.Context, c *Conn) error
}

type HandlerFunc func(ctx context.Context, c *Conn) error

func (f HandlerFunc) Handle(ctx context.Context, c *Conn) error {
	return f(ctx, c)
}

type Config struct {
	Port int
	// MaxPending is reported in logs only; the listen backlog is chosen by
	// the Go runtime from the OS limit.
	MaxPending        int
	MaxHeaderBytes    int
	ReadHeaderTimeout time.Duration
	// OnReject, when set, is called for every request answered by the
	// engine itself: unreadable, oversized, timed out or malformed headers.
	OnReject func(err error)
}

type Server struct {
	log     *slog.Logger
	handler Handler
	config  Config
}

func NewServer(log *slog.Logger, handler Handler, config Config) *Server {
	if config.MaxHeaderBytes <= 0 {
		config.MaxHeaderBytes = protocol.DefaultMaxHeaderBytes
	}
	return &Server{log: log, handler: handler, config: config}
}

// ListenAndServe binds the configured port on every interface.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort("", strconv.Itoa(s.config.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop until ctx is cancelled or the listener fails.
// Requests are read and parsed on this goroutine, one after the other.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.log.Info("GETFILE server listening", "address", ln.Addr().String(), "max_pending", s.config.MaxPending)
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warn("Accept failed, continuing", "error", err)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.serveConn(ctx, newConn(c))
	}
}

func (s *Server) serveConn(ctx context.Context, c *Conn) {
	log := s.log.With("remote", c.RemoteAddr().String())

	if s.config.ReadHeaderTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(s.config.ReadHeaderTimeout))
	}
	raw, _, err := protocol.ReadHeader(c.conn, make([]byte, 512), s.config.MaxHeaderBytes)
	if err != nil {
		log.Warn("Could not read request header", "error", err)
		s.reject(log, c, err)
		return
	}
	_ = c.conn.SetReadDeadline(time.Time{})
	c.setState(StateHeaderRead)

	header, err := protocol.DecodeRequest(raw)
	if err != nil {
		log.Warn("Malformed request", "error", err)
		s.reject(log, c, err)
		return
	}
	c.path = header.Path
	c.setState(StateDispatched)

	if err := s.handler.Handle(ctx, c); err != nil {
		log.Error("Handler failed", "path", c.path, "error", err)
		if c.State() != StateClosed {
			_ = c.Abort()
		}
	}
}

// reject answers FILE_NOT_FOUND without involving the handler.
func (s *Server) reject(log *slog.Logger, c *Conn, reason error) {
	c.setState(StateRejected)
	raw, _ := protocol.EncodeResponse(protocol.StatusFileNotFound, 0)
	if _, err := c.conn.Write(raw); err != nil {
		log.Debug("Could not send rejection", "error", err)
	}
	c.mu.Lock()
	c.status = protocol.StatusFileNotFound
	c.mu.Unlock()
	_ = c.Close()
	if s.config.OnReject != nil {
		s.config.OnReject(reason)
	}
}
