package ws

import (
	"collab-lab/domain/event"
	"collab-lab/errors"
	"collab-lab/observability"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Connection is the EventSink of one websocket client. Only its write pump
// writes to the socket.
type Connection struct {
	conn          *websocket.Conn
	participantID string
	send          chan event.Message
	closing       chan struct{}
	closeOnce     sync.Once
	done          chan struct{}
	missedPongs   atomic.Int32
	options       Options
	log           *slog.Logger
}

func newConnection(conn *websocket.Conn, participantID string, options Options, log *slog.Logger) *Connection {
	return &Connection{
		conn:          conn,
		participantID: participantID,
		send:          make(chan event.Message, options.BufferSize),
		closing:       make(chan struct{}),
		done:          make(chan struct{}),
		options:       options,
		log:           log.With("participant_id", participantID),
	}
}

// Consume enqueues msg without blocking. A full queue means the client
// cannot keep up: the connection is torn down.
func (c *Connection) Consume(_ context.Context, msg event.Message) error {
	select {
	case <-c.closing:
		return errors.ErrConnectionLost
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		c.log.Warn("Send buffer full, dropping connection", "buffer_size", c.options.BufferSize)
		c.abort()
		return errors.ErrSinkFull
	}
}

// Close flushes queued frames, then sends a close frame.
func (c *Connection) Close() {
	c.closeOnce.Do(func() { close(c.closing) })
}

// abort closes the socket right away. The read pump then fails and the
// participant leaves its session.
func (c *Connection) abort() {
	c.Close()
	_ = c.conn.Close()
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.options.KeepaliveInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				c.log.Debug("Write failed", "error", err)
				return
			}
		case <-ticker.C:
			if c.missedPongs.Load() >= int32(c.options.MissedPongLimit) {
				c.log.Info("Keepalive timed out", "missed_pongs", c.missedPongs.Load())
				return
			}
			c.missedPongs.Add(1)
			if err := c.write(event.Ping{}); err != nil {
				c.log.Debug("Ping failed", "error", err)
				return
			}
		case <-c.closing:
			c.flush()
			return
		}
	}
}

func (c *Connection) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				return
			}
		default:
			deadline := time.Now().Add(c.options.WriteTimeout)
			closeFrame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, closeFrame, deadline)
			return
		}
	}
}

func (c *Connection) write(msg event.Message) error {
	data, err := event.Encode(msg)
	if err != nil {
		c.log.Error("Failed to encode frame", "type", msg.Type(), "error", err)
		return nil
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// readPump decodes client frames and hands them to dispatch until the socket
// fails or dispatch refuses a frame. It returns ErrConnectionLost for socket
// failures and the dispatch error otherwise.
func (c *Connection) readPump(ctx context.Context, dispatch func(context.Context, event.Inbound) error) error {
	c.conn.SetReadLimit(c.options.MaxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.missedPongs.Store(0)
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Connection lost", "error", err)
			}
			return fmt.Errorf("%w: %v", errors.ErrConnectionLost, err)
		}

		msg, err := event.DecodeInbound(data)
		if err != nil {
			c.log.Debug("Rejected client frame", "error", err)
			_ = c.Consume(ctx, event.Error{Message: err.Error()})
			continue
		}
		observability.InboundMessages.WithLabelValues(string(msg.Type())).Inc()
		if _, ok := msg.(event.Pong); ok {
			c.missedPongs.Store(0)
		}

		if err := dispatch(ctx, msg); err != nil {
			c.log.Debug("Dispatch refused", "type", msg.Type(), "error", err)
			return err
		}
	}
}
