package tcpclient

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrTimeout          = errors.New("operation timed out")
	ErrFrameTooLarge    = errors.New("frame exceeds maximum size")
)

const sizePrefixLen = 4

// TCPClient exchanges length-prefixed frames over a small pool of
// connections. Each request and its response use the same connection.
// At most poolSize connections are in use at once; idle ones are reused and
// missing ones are dialed on demand.
type TCPClient struct {
	address      string
	timeout      time.Duration
	maxFrameSize uint32
	slots        chan struct{}
	idle         chan net.Conn
	done         chan struct{}
	tlsConfig    *tls.Config
	logger       *zap.Logger
	mu           sync.Mutex
	closed       bool
}

type TCPClientOption func(*TCPClient)

func WithTLS(config *tls.Config) TCPClientOption {
	return func(c *TCPClient) {
		c.tlsConfig = config
	}
}

func WithLogger(logger *zap.Logger) TCPClientOption {
	return func(c *TCPClient) {
		c.logger = logger
	}
}

func WithMaxFrameSize(size uint32) TCPClientOption {
	return func(c *TCPClient) {
		c.maxFrameSize = size
	}
}

// NewTCPClient dials poolSize connections up front so an unreachable
// address fails here rather than on the first request.
func NewTCPClient(address string, timeout time.Duration, poolSize int, opts ...TCPClientOption) (*TCPClient, error) {
	if poolSize < 1 {
		poolSize = 1
	}

	client := &TCPClient{
		address:      address,
		timeout:      timeout,
		maxFrameSize: 512 << 20,
		slots:        make(chan struct{}, poolSize),
		idle:         make(chan net.Conn, poolSize),
		done:         make(chan struct{}),
		logger:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(client)
	}

	for i := 0; i < poolSize; i++ {
		conn, err := client.dial(context.Background())
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to initialize connection pool: %w", err)
		}
		client.idle <- conn
	}

	return client, nil
}

func (c *TCPClient) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: c.timeout}
	if c.tlsConfig != nil {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: c.tlsConfig}
		return tlsDialer.DialContext(ctx, "tcp", c.address)
	}
	return dialer.DialContext(ctx, "tcp", c.address)
}

func (c *TCPClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// getConnection takes a slot and returns an idle connection, or dials a new
// one when none is idle. The slot is held until the connection is released
// or discarded.
func (c *TCPClient) getConnection(ctx context.Context) (net.Conn, error) {
	var expired <-chan time.Time
	if c.timeout > 0 {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case c.slots <- struct{}{}:
	case <-c.done:
		return nil, ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-expired:
		return nil, ErrTimeout
	}

	if c.isClosed() {
		<-c.slots
		return nil, ErrConnectionClosed
	}

	select {
	case conn := <-c.idle:
		return conn, nil
	default:
	}

	conn, err := c.dial(ctx)
	if err != nil {
		<-c.slots
		return nil, fmt.Errorf("failed to dial %s: %w", c.address, err)
	}

	return conn, nil
}

func (c *TCPClient) releaseConnection(conn net.Conn) {
	defer func() { <-c.slots }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		conn.Close()
		return
	}

	select {
	case c.idle <- conn:
	default:
		conn.Close()
	}
}

// discardConnection closes a broken connection and frees its slot. The next
// request dials a replacement.
func (c *TCPClient) discardConnection(conn net.Conn) {
	if err := conn.Close(); err != nil {
		c.logger.Debug("Failed to close broken connection", zap.String("address", c.address), zap.Error(err))
	}
	<-c.slots
}

// Do writes payload as one frame and reads one response frame.
func (c *TCPClient) Do(ctx context.Context, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, ErrFrameTooLarge
	}

	conn, err := c.getConnection(ctx)
	if err != nil {
		return nil, err
	}

	response, err := c.roundTrip(ctx, conn, payload)
	if err != nil {
		c.discardConnection(conn)
		return nil, err
	}

	c.releaseConnection(conn)
	return response, nil
}

func (c *TCPClient) roundTrip(ctx context.Context, conn net.Conn, payload []byte) ([]byte, error) {
	var deadline time.Time
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	writer := bufio.NewWriter(conn)
	if err := WriteFrame(writer, payload); err != nil {
		return nil, fmt.Errorf("failed to send data: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush data: %w", err)
	}

	response, err := ReadFrame(conn, c.maxFrameSize)
	if err != nil {
		return nil, fmt.Errorf("failed to receive data: %w", err)
	}

	return response, nil
}

// WriteFrame writes a 4-byte big-endian size prefix followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	var prefix [sizePrefixLen]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))

	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one size-prefixed frame from r.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	var prefix [sizePrefixLen]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if maxSize > 0 && size > maxSize {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	return payload, nil
}

func (c *TCPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	for {
		select {
		case conn := <-c.idle:
			if err := conn.Close(); err != nil {
				c.logger.Error("Failed to close connection", zap.Error(err))
			}
		default:
			return nil
		}
	}
}
