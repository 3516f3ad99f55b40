package nmc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/pkg/log"
	"github.com/bft-labs/rankflow/pkg/wire"
)

var (
	// ErrServerDisconnect is returned after the server asked the client to leave.
	ErrServerDisconnect = errors.New("nmc: server requested disconnect")

	// ErrIdle is returned after a keep-alive poll so callers can service
	// other work between messages.
	ErrIdle = errors.New("nmc: keep-alive poll")

	// ErrNotConnected is returned by operations that need an open connection.
	ErrNotConnected = errors.New("nmc: not connected")

	// ErrBrokenPackage is returned for a data frame shorter than the frame layout.
	ErrBrokenPackage = wire.ErrBrokenPackage

	// ErrMalformedData is returned when the stream cannot be parsed further.
	ErrMalformedData = wire.ErrMalformedData
)

// State is the connection state of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateRegistered
	StateStreaming
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateRegistered:
		return "registered"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Config configures a Client.
type Config struct {
	Host string
	Port int

	// DialTimeout bounds Connect. Zero means 5s.
	DialTimeout time.Duration

	// PollDelay is slept after each keep-alive poll. Zero means 10ms.
	PollDelay time.Duration

	// MaxMessageSize rejects client messages with a larger length field.
	MaxMessageSize int

	Logger log.Logger
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Client is a single connection to an NMC server.
// NextMessage, ReadFrame and WaitReadable must be called from one goroutine.
type Client struct {
	cfg    Config
	logger log.Logger

	conn net.Conn
	r    *bufio.Reader

	mu      sync.Mutex
	state   State
	clients map[int32]string
}

// NewClient creates a disconnected client.
func NewClient(cfg Config) *Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.PollDelay <= 0 {
		cfg.PollDelay = 10 * time.Millisecond
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}
	return &Client{
		cfg:     cfg,
		logger:  log.With(cfg.Logger, log.String("component", "nmc"), log.String("addr", cfg.Addr())),
		clients: make(map[int32]string),
	}
}

// Connect dials the server. It returns false if the connection was refused
// or timed out.
func (c *Client) Connect(ctx context.Context) bool {
	d := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.cfg.Addr())
	if err != nil {
		c.logger.Debug("dial failed", log.Err(err))
		return false
	}

	c.mu.Lock()
	c.conn = conn
	c.r = bufio.NewReaderSize(conn, 64*1024)
	c.state = StateConnected
	c.mu.Unlock()

	c.logger.Debug("connected")
	return true
}

// Register announces the client under name. The server sends no reply.
func (c *Client) Register(name string) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	msg, err := EncodeRegistration(name)
	if err != nil {
		return err
	}
	if _, err := c.conn.Write(msg); err != nil {
		return fmt.Errorf("register %q: %w", name, err)
	}

	c.setState(StateRegistered)
	c.logger.Debug("registered", log.String("name", name))
	return nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Clients returns a snapshot of the known clients by id.
func (c *Client) Clients() map[int32]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int32]string, len(c.clients))
	for id, name := range c.clients {
		out[id] = name
	}
	return out
}

// WaitReadable reports whether the next message header has arrived within
// timeout. Nothing is consumed from the stream.
func (c *Client) WaitReadable(timeout time.Duration) (bool, error) {
	if c.conn == nil {
		return false, ErrNotConnected
	}
	if c.r.Buffered() >= 4 {
		return true, nil
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, err
	}
	_, err := c.r.Peek(4)
	_ = c.conn.SetReadDeadline(time.Time{})
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// NextMessage reads until the next client-to-client message, handling server
// commands on the way. A keep-alive poll ends the read early with ErrIdle.
func (c *Client) NextMessage(ctx context.Context) (Message, error) {
	if c.conn == nil {
		return Message{}, ErrNotConnected
	}
	stop := c.bindContext(ctx)
	defer stop()

	for {
		sender, err := c.readInt32()
		if err != nil {
			return Message{}, c.readErr(ctx, err)
		}
		if sender != 0 {
			return c.readClientMessage(ctx, sender)
		}

		cmd, err := c.readInt32()
		if err != nil {
			return Message{}, c.readErr(ctx, err)
		}
		switch cmd {
		case CommandDisconnect:
			c.logger.Info("server requested disconnect")
			_ = c.Close()
			return Message{}, ErrServerDisconnect
		case CommandPoll:
			select {
			case <-ctx.Done():
				return Message{}, ctx.Err()
			case <-time.After(c.cfg.PollDelay):
			}
			return Message{}, ErrIdle
		case CommandAddClient, CommandRemoveClient:
			id, name, err := c.readClientRecord()
			if err != nil {
				return Message{}, c.readErr(ctx, err)
			}
			c.mu.Lock()
			if cmd == CommandAddClient {
				c.clients[id] = name
			} else {
				delete(c.clients, id)
			}
			c.mu.Unlock()
			c.logger.Debug("client table changed",
				log.Int32("command", cmd),
				log.Int32("client_id", id),
				log.String("client_name", name),
			)
		default:
			return Message{}, fmt.Errorf("%w: unknown server command %d", ErrMalformedData, cmd)
		}
	}
}

// ReadFrame returns the next data frame. Client messages of other types are
// skipped. A truncated frame yields ErrBrokenPackage; the stream stays aligned.
// A keep-alive poll yields ErrIdle.
func (c *Client) ReadFrame(ctx context.Context) (domain.Frame, error) {
	for {
		msg, err := c.NextMessage(ctx)
		if err != nil {
			return domain.Frame{}, err
		}
		if !msg.IsFrame() {
			c.logger.Debug("skipping non-frame message", log.Int32("sender", msg.Sender), log.Int("size", len(msg.Payload)))
			continue
		}
		if c.State() == StateRegistered {
			c.setState(StateStreaming)
		}
		return wire.DecodeFrame(msg.Payload[4:])
	}
}

// Close closes the connection and clears the client table.
// It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateDisconnected
	c.clients = make(map[int32]string)
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (c *Client) readClientMessage(ctx context.Context, sender int32) (Message, error) {
	n, err := c.readInt32()
	if err != nil {
		return Message{}, c.readErr(ctx, err)
	}
	if n < 0 || int(n) > c.cfg.MaxMessageSize {
		return Message{}, fmt.Errorf("%w: message length %d", ErrMalformedData, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return Message{}, c.readErr(ctx, err)
	}
	return Message{Sender: sender, Payload: payload}, nil
}

func (c *Client) readClientRecord() (int32, string, error) {
	hdr := make([]byte, 8)
	if _, err := io.ReadFull(c.r, hdr); err != nil {
		return 0, "", err
	}
	vs, err := wire.Int32s(hdr, 2)
	if err != nil {
		return 0, "", err
	}
	id, units := vs[0], vs[1]
	if units < 0 || int(units)*2 > c.cfg.MaxMessageSize {
		return 0, "", fmt.Errorf("%w: name length %d", ErrMalformedData, units)
	}
	raw := make([]byte, int(units)*2)
	if _, err := io.ReadFull(c.r, raw); err != nil {
		return 0, "", err
	}
	name, err := wire.DecodeName(raw)
	return id, name, err
}

func (c *Client) readInt32() (int32, error) {
	b := make([]byte, 4)
	if _, err := io.ReadFull(c.r, b); err != nil {
		return 0, err
	}
	return wire.Int32(b)
}

// bindContext interrupts blocked reads when ctx is done.
func (c *Client) bindContext(ctx context.Context) func() {
	conn := c.conn
	dl, _ := ctx.Deadline()
	_ = conn.SetReadDeadline(dl)
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	return func() {
		stop()
		_ = conn.SetReadDeadline(time.Time{})
	}
}

func (c *Client) readErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var ne net.Error
	if dl, ok := ctx.Deadline(); ok && errors.As(err, &ne) && ne.Timeout() && !time.Now().Before(dl) {
		return context.DeadlineExceeded
	}
	return err
}
