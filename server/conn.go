package server

import (
	"errors"
	"fmt"
	"getfile-lab/protocol"
	"net"
	"sync"
)

var (
	ErrHeaderAlreadySent = errors.New("server: response header already sent")
	ErrHeaderNotSent     = errors.New("server: response header not sent yet")
	ErrConnClosed        = errors.New("server: connection closed")
)

type State int

const (
	StateAccepted State = iota
	StateHeaderRead
	StateRejected
	StateDispatched
	StateResponding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAccepted:
		return "ACCEPTED"
	case StateHeaderRead:
		return "HEADER_READ"
	case StateRejected:
		return "REJECTED"
	case StateDispatched:
		return "DISPATCHED"
	case StateResponding:
		return "RESPONDING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Conn is the per-connection context. One is allocated per accepted
// connection and it belongs to a single goroutine at a time: the accept loop
// until the handler is called, then whoever the handler passes it to.
// The mutex only makes a late Abort from another goroutine safe.
type Conn struct {
	mu     sync.Mutex
	conn   net.Conn
	path   string
	state  State
	status protocol.Status
	sent   int64
}

func newConn(c net.Conn) *Conn {
	return &Conn{conn: c, state: StateAccepted, status: protocol.StatusInvalid}
}

// Path is the request path parsed from the header.
func (c *Conn) Path() string { return c.path }

func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status is the status sent with SendHeader, INVALID before that.
func (c *Conn) Status() protocol.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// BytesSent counts body bytes only.
func (c *Conn) BytesSent() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// SendHeader writes the response header. It may be called once per
// connection; later calls return ErrHeaderAlreadySent and write nothing.
func (c *Conn) SendHeader(status protocol.Status, length int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateClosed:
		return ErrConnClosed
	case StateResponding:
		return ErrHeaderAlreadySent
	}
	raw, err := protocol.EncodeResponse(status, length)
	if err != nil {
		return err
	}
	c.state = StateResponding
	c.status = status
	if _, err := c.conn.Write(raw); err != nil {
		return fmt.Errorf("server: writing header: %w", err)
	}
	return nil
}

// Send writes raw body bytes and returns how many were written.
func (c *Conn) Send(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateClosed:
		return 0, ErrConnClosed
	case StateResponding:
	default:
		return 0, ErrHeaderNotSent
	}
	n, err := c.conn.Write(p)
	c.sent += int64(n)
	return n, err
}

// Close ends a completed response. Calling it again is a no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return nil
	}
	c.state = StateClosed
	return c.conn.Close()
}

// Abort drops the connection mid-response. The peer sees a short body.
func (c *Conn) Abort() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return nil
	}
	c.state = StateClosed
	if tcp, ok := c.conn.(*net.TCPConn); ok {
		// RST instead of FIN.
		_ = tcp.SetLinger(0)
	}
	return c.conn.Close()
}
