package httphandler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jgivc/dltracker/internal/adapter/surface"
	"github.com/yuin/goldmark"
)

const (
	MessageBadge    = "badge"
	MessageProgress = "progress"
	MessageError    = "error"
	MessageFinished = "finished"

	broadcastQueueSize = 64
	clientQueueSize    = 256
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = 30 * time.Second
	closeWait          = 2 * time.Second
	maxMessageSize     = 512
)

type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type badgeData struct {
	Count int `json:"count"`
}

type progressData struct {
	Fraction float64 `json:"fraction"`
}

type errorData struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	HTML    string `json:"html,omitempty"`
}

type finishedData struct {
	Path string `json:"path"`
}

type wsClient struct {
	hub  *WSHub
	conn *websocket.Conn
	send chan []byte
}

// WSHub fans lifecycle notifications out to websocket clients. It serves as the
// badge, dialog, dock and progress window of web frontends.
type WSHub struct {
	clients    map[*wsClient]bool
	count      atomic.Int64
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	once       sync.Once
	closed     atomic.Bool
	md         goldmark.Markdown
	log        *slog.Logger
}

func NewWSHub(log *slog.Logger) *WSHub {
	return &WSHub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, broadcastQueueSize),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
		md:         goldmark.New(),
		log:        log.With(slog.String("item", "WSHub")),
	}
}

// Run serves clients until Close is called.
func (h *WSHub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				if client.conn != nil {
					_ = client.conn.WriteControl(
						websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
						time.Now().Add(closeWait),
					)
				}
				h.drop(client)
			}
			h.log.Debug("Hub stopped")

			return
		case client := <-h.register:
			h.clients[client] = true
			h.count.Add(1)
			h.log.Debug("Client connected", slog.Int("total", len(h.clients)))
		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				h.log.Debug("Client disconnected", slog.Int("total", len(h.clients)))
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					h.drop(client)
				}
			}
		}
	}
}

func (h *WSHub) drop(client *wsClient) {
	delete(h.clients, client)
	h.count.Add(-1)
	close(client.send)
}

// Close disconnects all clients and stops Run.
func (h *WSHub) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.done)
	})
}

func (h *WSHub) ClientCount() int {
	return int(h.count.Load())
}

// Broadcast sends a typed JSON message to all connected clients. Messages are
// dropped when nobody listens or the queue is full.
func (h *WSHub) Broadcast(msgType string, data any) {
	if h.count.Load() == 0 {
		return
	}

	payload, err := json.Marshal(wsMessage{Type: msgType, Data: data})
	if err != nil {
		h.log.Error("Cannot marshal message", slog.String("type", msgType), slog.Any("error", err))

		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.log.Debug("Broadcast queue is full", slog.String("type", msgType))
	}
}

func (h *WSHub) Platform() surface.Platform {
	return surface.Platform{
		Badge:  h,
		Dialog: h,
		Dock:   h,
	}
}

func (h *WSHub) SetBadgeCount(count int) {
	h.Broadcast(MessageBadge, badgeData{Count: count})
}

func (h *WSHub) SetProgressBar(fraction float64) {
	h.Broadcast(MessageProgress, progressData{Fraction: fraction})
}

// IsDestroyed reports true once the hub was closed.
func (h *WSHub) IsDestroyed() bool {
	return h.closed.Load()
}

// ShowErrorDialog sends the message both as text and rendered from Markdown.
func (h *WSHub) ShowErrorDialog(title, message string) {
	h.Broadcast(MessageError, errorData{Title: title, Message: message, HTML: h.render(message)})
}

func (h *WSHub) MarkDownloadFinished(path string) {
	h.Broadcast(MessageFinished, finishedData{Path: path})
}

func (h *WSHub) render(message string) string {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(message), &buf); err != nil {
		h.log.Warn("Cannot render message", slog.Any("error", err))

		return ""
	}

	return buf.String()
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func NewWSHandler(hub *WSHub, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "WSHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("Cannot upgrade connection", slog.Any("error", err))

			return
		}

		client := &wsClient{hub: hub, conn: conn, send: make(chan []byte, clientQueueSize)}

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()

			return
		}

		go client.writePump()
		go client.readPump()
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)

				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
