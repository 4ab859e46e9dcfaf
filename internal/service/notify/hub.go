package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"SignalPulse/internal/domain/models"
	"SignalPulse/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 16
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// AlertHub broadcasts alerts to browser clients connected on /ws/alerts.
// It is both a Dispatcher and an HTTP handler.
type AlertHub struct {
	title    string
	upgrader websocket.Upgrader
	l        *logger.Logger
	now      func() time.Time

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewAlertHub(title string, l *logger.Logger) *AlertHub {
	if l == nil {
		l = logger.Nop()
	}
	return &AlertHub{
		title: title,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		l:       l,
		now:     time.Now,
		clients: make(map[*client]struct{}),
	}
}

func (h *AlertHub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/alerts", h.serve)
}

func (h *AlertHub) serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.l.Info("alert subscriber connected", logger.String("remote", c.RealIP()), logger.Int("subscribers", n))

	go h.writePump(cl)
	h.readPump(cl)
	return nil
}

// readPump discards client messages and detects disconnects.
func (h *AlertHub) readPump(cl *client) {
	defer h.remove(cl)
	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *AlertHub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *AlertHub) remove(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
}

// Subscribers returns the number of connected clients.
func (h *AlertHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dispatch queues the alert for every connected client. Slow clients whose
// buffer is full are dropped.
func (h *AlertHub) Dispatch(_ context.Context, sig models.Signal) error {
	payload, err := json.Marshal(NewAlert(h.title, sig, h.now()))
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		h.l.Warn("alert not broadcast, no websocket subscribers", logger.String("key", sig.Key()))
		return nil
	}
	for cl := range h.clients {
		select {
		case cl.send <- payload:
		default:
			delete(h.clients, cl)
			close(cl.send)
			h.l.Warn("dropping slow alert subscriber")
		}
	}
	return nil
}

// Close disconnects every client.
func (h *AlertHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		delete(h.clients, cl)
		close(cl.send)
	}
}
