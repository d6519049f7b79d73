package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Publisher is the outbound half of the room data channel as seen by the
// session core.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

var errClientClosed = errors.New("room client closed")

type ClientConfig struct {
	URL          string
	APIKey       string
	RoomName     string
	Identity     string
	PingInterval time.Duration
	WriteTimeout time.Duration
	QueueSize    int
}

// Client is one websocket connection into a room's data channel. All writes
// go through a single writer goroutine; reads are delivered in arrival order
// to the handler passed to Run.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger
	cfg    ClientConfig

	outbound chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func Dial(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("room url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	if cfg.RoomName != "" {
		header.Set("X-Room-Name", cfg.RoomName)
	}
	if cfg.Identity != "" {
		header.Set("X-Participant-Identity", cfg.Identity)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dial room %q: %w", cfg.RoomName, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	return &Client{
		conn:     conn,
		logger:   logger.With("room", cfg.RoomName),
		cfg:      cfg,
		outbound: make(chan []byte, cfg.QueueSize),
		closed:   make(chan struct{}),
	}, nil
}

// Publish queues one outbound data packet. It fails fast when the queue is
// full rather than blocking a tool call on a slow socket.
func (c *Client) Publish(ctx context.Context, topic string, payload any) error {
	if c == nil {
		return errClientClosed
	}
	frame, err := EncodePacket(topic, payload)
	if err != nil {
		return err
	}
	select {
	case <-c.closed:
		return errClientClosed
	case <-ctx.Done():
		return ctx.Err()
	case c.outbound <- frame:
		return nil
	default:
		return fmt.Errorf("outbound queue full (topic %s)", topic)
	}
}

// Run drives the connection until ctx is canceled or the socket fails.
// Inbound frames that fail envelope decode are logged and dropped; every
// well-formed packet is handed to onData synchronously, preserving arrival
// order.
func (c *Client) Run(ctx context.Context, onData func(ctx context.Context, pkt DataPacket)) error {
	if c == nil || c.conn == nil {
		return errClientClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan error, 1)
	go func() {
		writerDone <- c.writeLoop(ctx)
	}()

	readErr := c.readLoop(ctx, onData)
	cancel()
	c.Close()
	<-writerDone

	if readErr != nil && !errors.Is(readErr, context.Canceled) {
		return readErr
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context, onData func(ctx context.Context, pkt DataPacket)) error {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read room frame: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}

		pkt, err := DecodePacket(data)
		if err != nil {
			c.logger.Warn("dropping undecodable room frame", "error", err)
			continue
		}
		if onData != nil {
			onData(ctx, pkt)
		}
	}
}

func (c *Client) writeLoop(ctx context.Context) error {
	pingTicker := time.NewTicker(c.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return nil
		case <-pingTicker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				return err
			}
		case frame := <-c.outbound:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				return err
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}
		}
	}
}

func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
