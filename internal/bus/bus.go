// Package bus publishes turn events to a websocket message bus and accepts
// control commands addressed to this agent.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	log "log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// Event kinds.
const (
	KindWake     = "wake"
	KindReset    = "reset"
	KindTurn     = "turn"
	KindFallback = "fallback"
	KindCommand  = "command"
)

type Message struct {
	From    string    `json:"from"`
	To      string    `json:"to"`
	Kind    string    `json:"kind"`
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

type Client struct {
	url       string
	name      string
	reconnect time.Duration
	onCommand func(string)

	out chan Message
}

type Option func(*Client)

// WithReconnect sets the pause between dial attempts.
func WithReconnect(d time.Duration) Option {
	return func(c *Client) { c.reconnect = d }
}

// OnCommand registers f for messages of kind "command" sent to this agent.
func OnCommand(f func(cmd string)) Option {
	return func(c *Client) { c.onCommand = f }
}

func New(url, name string, opts ...Option) *Client {
	c := &Client{
		url:       url,
		name:      name,
		reconnect: 2 * time.Second,
		out:       make(chan Message, 64),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Publish queues an event for broadcast. Events are dropped while the queue is
// full.
func (c *Client) Publish(kind, content string) {
	m := Message{From: c.name, To: "ALL", Kind: kind, Content: content, Time: time.Now()}
	select {
	case c.out <- m:
	default:
		log.Debug("Bus queue full, dropping event", "kind", kind)
	}
}

// Run keeps a connection open until ctx is done, reconnecting on failure.
func (c *Client) Run(ctx context.Context) error {
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("Bus dial failed", "url", c.url, "err", err)
			if !sleep(ctx, c.reconnect) {
				return ctx.Err()
			}
			continue
		}
		log.Info("Connected to bus", "url", c.url)

		err = c.serve(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isClosed(err) {
			log.Warn("Bus connection closed, reconnecting", "url", c.url)
		} else {
			log.Error("Bus connection failed", "err", err)
		}
		if !sleep(ctx, c.reconnect) {
			return ctx.Err()
		}
	}
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	readErr := make(chan error, 1)
	go func() {
		readErr <- c.readLoop(conn)
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return ctx.Err()
		case err := <-readErr:
			return err
		case m := <-c.out:
			data, err := json.Marshal(m)
			if err != nil {
				log.Error("Failed to encode bus message", "err", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			log.Warn("Failed to parse bus message", "msg", string(data), "err", err)
			continue
		}
		if m.To != c.name || m.Kind != KindCommand {
			continue
		}
		if c.onCommand != nil {
			c.onCommand(m.Content)
		}
	}
}

func isClosed(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
