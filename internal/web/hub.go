package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/sweeney/gaslog-controller/internal/logic"
	"github.com/sweeney/gaslog-controller/internal/status"
)

// Controls is the part of the operating settings the UI can change.
type Controls interface {
	SetPower(on bool)
	SetUIMode(ui string) error
	SetSetpoint(v int) int
	UIMode() string
}

var errUnknownCommand = errors.New("unknown command")

// Hub tracks connected WebSocket clients and fans out UI messages.
type Hub struct {
	tracker  *status.Tracker
	controls Controls
	limit    rate.Limit
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates a Hub. cmdRate limits commands per second per client.
func NewHub(tracker *status.Tracker, controls Controls, cmdRate float64) *Hub {
	return &Hub{
		tracker:  tracker,
		controls: controls,
		limit:    rate.Limit(cmdRate),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastState sends the current state to every client.
func (h *Hub) BroadcastState() {
	h.broadcast(h.state())
}

// BroadcastNotice sends a notice to every client.
func (h *Hub) BroadcastNotice(n logic.Notice) {
	if n == logic.NoticeNone {
		return
	}
	h.broadcast(noticeMessage(n))
}

func (h *Hub) state() StateMessage {
	return newStateMessage(h.tracker.Snapshot(), h.controls.UIMode())
}

func (h *Hub) broadcast(msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.send(msg)
	}
}

// ServeHTTP upgrades the request and serves the client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade: %v", err)
		return
	}

	c := &client{
		conn:    conn,
		sendCh:  make(chan any, 32),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(h.limit, 5),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	log.Printf("web: websocket client %s connected", r.RemoteAddr)

	c.send(newStatusMessage(WelcomeMessage, false))
	c.send(h.state())

	go c.writePump()
	h.readPump(c)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
	log.Printf("web: websocket client %s disconnected", r.RemoteAddr)
}

func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("web: websocket read: %v", err)
			}
			return
		}
		if !c.limiter.Allow() {
			c.send(newStatusMessage("Error: Too many commands", true))
			continue
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.send(newStatusMessage("Error: Malformed command", true))
			continue
		}
		if err := h.apply(cmd); err != nil {
			log.Printf("web: command %s: %v", cmd.Type, err)
			c.send(newStatusMessage("Error: "+err.Error(), true))
			continue
		}
		h.BroadcastState()
	}
}

// apply routes a UI command to the settings.
func (h *Hub) apply(cmd Command) error {
	switch cmd.Type {
	case "power":
		switch strings.ToUpper(cmd.stringValue()) {
		case "ON":
			h.controls.SetPower(true)
		case "OFF":
			h.controls.SetPower(false)
		default:
			return fmt.Errorf("invalid power %s", cmd.Value)
		}
		return nil
	case "mode":
		return h.controls.SetUIMode(cmd.stringValue())
	case "setpoint":
		v, err := cmd.intValue()
		if err != nil {
			return err
		}
		h.controls.SetSetpoint(v)
		return nil
	}
	return fmt.Errorf("%w %q", errUnknownCommand, cmd.Type)
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

type client struct {
	conn    *websocket.Conn
	sendCh  chan any
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
}

// send queues msg, dropping it if the client is not keeping up.
func (c *client) send(msg any) {
	select {
	case c.sendCh <- msg:
	case <-c.done:
	default:
		log.Printf("web: dropping message to slow websocket client")
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
