package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"csvpulse/internal/infrastructure"
	"csvpulse/pkg/contracts/events"
)

var (
	// ErrClientClosed is returned by Serve for a client closed before it started.
	ErrClientClosed = errors.New("websocket client closed")

	errDisconnected = errors.New("peer disconnected")
	heartbeat       = []byte(`{"type":"heartbeat"}`)
)

// Config tunes connection keepalive and limits
type Config struct {
	WriteWait      time.Duration // time allowed to write a message
	PongWait       time.Duration // time allowed between reads
	PingPeriod     time.Duration // must be less than PongWait
	MaxMessageSize int64
	SendBuffer     int
}

// DefaultConfig returns the keepalive defaults.
func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 64 << 10,
		SendBuffer:     16,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.WriteWait <= 0 {
		c.WriteWait = def.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = def.PongWait
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = (c.PongWait * 9) / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = def.SendBuffer
	}
	return c
}

// Client answers the messages of one connection. Messages are read and
// processed strictly one at a time; replies are written in the same order.
type Client struct {
	conn      Connection
	process   Processor
	cfg       Config
	send      chan []byte
	id        string
	sessionID string
	logger    *slog.Logger

	connectedAt      time.Time
	messagesReceived atomic.Int64
	messagesSent     atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// NewClient creates a client for conn. sessionID is reported in the connect
// message and in logs.
func NewClient(conn Connection, sessionID string, process Processor, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	cfg = cfg.withDefaults()

	id := uuid.NewString()
	return &Client{
		conn:        conn,
		process:     process,
		cfg:         cfg,
		send:        make(chan []byte, cfg.SendBuffer),
		id:          id,
		sessionID:   sessionID,
		connectedAt: time.Now(),
		logger: logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id),
			slog.String("session_id", sessionID),
			slog.String("remote_addr", conn.RemoteAddr()),
		),
	}
}

// ID returns the client ID.
func (c *Client) ID() string { return c.id }

// Serve runs the connection until the peer disconnects, ctx is done or
// Close is called. The connection is closed when Serve returns.
func (c *Client) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.conn.Close()
		return ErrClientClosed
	}
	c.cancel = cancel
	c.mu.Unlock()

	hello := events.NewMessage(events.MessageTypeConnect, infrastructure.GetTraceID(ctx),
		events.ConnectData{ClientID: c.id, SessionID: c.sessionID})
	if data, err := json.Marshal(hello); err == nil {
		c.send <- data
	}

	c.logger.InfoContext(ctx, "WebSocket client connected")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.writePump(gctx) })
	g.Go(func() error { return c.readPump(gctx) })
	err := g.Wait()

	c.logger.InfoContext(ctx, "WebSocket client disconnected",
		slog.Duration("connection_duration", time.Since(c.connectedAt)),
		slog.Int64("messages_received", c.messagesReceived.Load()),
		slog.Int64("messages_sent", c.messagesSent.Load()))

	if errors.Is(err, errDisconnected) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close stops Serve. It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Client) readPump(ctx context.Context) error {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	var seq int64
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.WarnContext(ctx, "Unexpected WebSocket close error",
					slog.String("error", err.Error()))
			}
			return errDisconnected
		}
		c.messagesReceived.Add(1)

		message = bytes.TrimSpace(message)
		if len(message) == 0 || bytes.Equal(message, heartbeat) {
			continue
		}

		seq++
		reply := c.process(ctx, seq, message)
		// the peer was busy waiting on us, not idle
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		if reply == nil {
			continue
		}

		select {
		case c.send <- reply:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) writePump(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return fmt.Errorf("write message: %w", err)
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("write ping: %w", err)
			}
		case <-ctx.Done():
			// flush replies already queued before saying goodbye
			for {
				select {
				case message := <-c.send:
					if err := c.write(websocket.TextMessage, message); err != nil {
						return ctx.Err()
					}
					continue
				default:
				}
				break
			}
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return ctx.Err()
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		return err
	}
	if messageType == websocket.TextMessage {
		c.messagesSent.Add(1)
	}
	return nil
}
