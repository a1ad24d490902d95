// Package client performs GETFILE downloads, one request per connection.
package client

import (
	"context"
	"errors"
	"fmt"
	"getfile-lab/protocol"
	"io"
	"log/slog"
	"net"
	"strconv"

	"github.com/go-playground/validator/v10"
)

const DefaultChunkSize = 4096

var (
	ErrInvalidRequest  = errors.New("client: invalid request")
	ErrRequestReused   = errors.New("client: request already performed")
	ErrConnect         = errors.New("client: connection failed")
	ErrSend            = errors.New("client: sending request failed")
	ErrInvalidResponse = errors.New("client: invalid response header")
	ErrShortRead       = errors.New("client: connection closed before the advertised length")
	ErrSink            = errors.New("client: body sink failed")
)

// HeaderFunc receives the decoded response header before any body byte.
type HeaderFunc func(h protocol.ResponseHeader)

// Request is a single-use download handle. Body receives exactly the body
// bytes, in order; it is never called when the status is not OK.
type Request struct {
	Server   string `validate:"required,max=253"`
	Port     int    `validate:"min=1,max=65535"`
	Path     string `validate:"required,startswith=/,max=1024"`
	Body     io.Writer
	OnHeader HeaderFunc

	performed bool
	status    protocol.Status
	fileLen   int64
	received  int64
}

func NewRequest(server string, port int, path string, body io.Writer) *Request {
	return &Request{Server: server, Port: port, Path: path, Body: body}
}

func (r *Request) Status() protocol.Status { return r.status }

// FileLen is the length advertised by the server.
func (r *Request) FileLen() int64 { return r.fileLen }

func (r *Request) BytesReceived() int64 { return r.received }

type Engine struct {
	log            *slog.Logger
	validator      *validator.Validate
	dialer         net.Dialer
	chunkSize      int
	maxHeaderBytes int
}

func NewEngine(log *slog.Logger, chunkSize, maxHeaderBytes int) *Engine {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if maxHeaderBytes <= 0 {
		maxHeaderBytes = protocol.DefaultMaxHeaderBytes
	}
	return &Engine{
		log:            log,
		validator:      validator.New(),
		chunkSize:      chunkSize,
		maxHeaderBytes: maxHeaderBytes,
	}
}

// Perform runs the whole exchange for req. A non-OK status from the server
// is not an error: the caller inspects req.Status(). Errors are returned for
// connection failures, invalid headers and transfers that end early. No
// retry is attempted.
func (e *Engine) Perform(ctx context.Context, req *Request) error {
	if req.performed {
		return ErrRequestReused
	}
	req.performed = true
	req.status = protocol.StatusInvalid

	if err := e.validator.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if req.Body == nil {
		return fmt.Errorf("%w: body sink is required", ErrInvalidRequest)
	}

	addr := net.JoinHostPort(req.Server, strconv.Itoa(req.Port))
	conn, err := e.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnect, addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if _, err := conn.Write(protocol.EncodeRequest(req.Path)); err != nil {
		return e.wrapCtx(ctx, fmt.Errorf("%w: %w", ErrSend, err))
	}

	chunk := make([]byte, e.chunkSize)
	raw, rest, err := protocol.ReadHeader(conn, chunk, e.maxHeaderBytes)
	if err != nil {
		return e.wrapCtx(ctx, fmt.Errorf("%w: %w", ErrInvalidResponse, err))
	}

	header := protocol.DecodeResponse(raw)
	req.status = header.Status
	req.fileLen = header.Length
	if req.OnHeader != nil {
		req.OnHeader(header)
	}
	if header.Status == protocol.StatusInvalid {
		return fmt.Errorf("%w: %q", ErrInvalidResponse, raw)
	}
	if header.Status != protocol.StatusOK {
		e.log.Debug("Request answered without body", "path", req.Path, "status", header.Status)
		return nil
	}

	if err := e.sink(req, rest); err != nil {
		return err
	}
	for req.received < req.fileLen {
		n, rerr := conn.Read(chunk)
		if n > 0 {
			if err := e.sink(req, chunk[:n]); err != nil {
				return err
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return e.wrapCtx(ctx, fmt.Errorf("%w: %w", ErrShortRead, rerr))
		}
	}
	if req.received < req.fileLen {
		return fmt.Errorf("%w: received %d of %d bytes", ErrShortRead, req.received, req.fileLen)
	}
	return nil
}

// sink forwards p to the body writer, never past the advertised length.
func (e *Engine) sink(req *Request, p []byte) error {
	if remaining := req.fileLen - req.received; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	if len(p) == 0 {
		return nil
	}
	n, err := req.Body.Write(p)
	req.received += int64(n)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSink, err)
	}
	return nil
}

func (e *Engine) wrapCtx(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", err, ctx.Err())
	}
	return err
}
