package render

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dooshek/vumeter/internal/logger"
	"github.com/dooshek/vumeter/internal/meter"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 2 * time.Second
	wsSendBuffer = 4
)

// frameMessage is the JSON frame streamed to browser renderers. Vertices
// are interleaved XYZ+UV per vertex; draw the first DrawCount indices as
// triangles.
type frameMessage struct {
	Type      string    `json:"type"`
	Vertices  []float32 `json:"vertices"`
	Indices   []uint16  `json:"indices"`
	DrawCount int       `json:"draw_count"`
	Overload  bool      `json:"overload"`
	RMS       int       `json:"rms"`
	Peak      int       `json:"peak"`
	LevelDB   float64   `json:"level_db"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocket streams frames to every connected client. Clients that cannot
// keep up are disconnected rather than slowing the display loop.
type WebSocket struct {
	upgrader websocket.Upgrader
	origins  []string

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewWebSocket accepts same-host and loopback origins plus the listed
// ones, given as scheme://host[:port]. "*" accepts any origin.
func NewWebSocket(allowedOrigins []string) *WebSocket {
	ws := &WebSocket{
		clients: make(map[*wsClient]struct{}),
	}
	for _, o := range allowedOrigins {
		ws.origins = append(ws.origins, strings.ToLower(strings.TrimSuffix(o, "/")))
	}
	ws.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     ws.checkOrigin,
	}
	return ws
}

// checkOrigin reports whether a browser page may open the frame stream.
func (ws *WebSocket) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Non-browser clients send no Origin
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		logger.Warnf("Rejected WebSocket connection: invalid origin %q", origin)
		return false
	}

	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}

	requestHost := r.Host
	if h, _, err := net.SplitHostPort(requestHost); err == nil {
		requestHost = h
	}
	if strings.EqualFold(host, requestHost) {
		return true
	}

	if slices.Contains(ws.origins, "*") || slices.Contains(ws.origins, strings.ToLower(u.Scheme+"://"+u.Host)) {
		return true
	}

	logger.Warnf("Rejected WebSocket connection from origin %s", origin)
	return false
}

// ServeHTTP upgrades the request and registers the client.
func (ws *WebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	ws.mu.Lock()
	ws.clients[c] = struct{}{}
	ws.mu.Unlock()
	logger.Debugf("WebSocket client connected: %s", r.RemoteAddr)

	go ws.writeLoop(c)

	// Clients never send anything meaningful; reading detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	ws.remove(c)
	logger.Debugf("WebSocket client disconnected: %s", r.RemoteAddr)
}

func (ws *WebSocket) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			ws.remove(c)
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait))
}

func (ws *WebSocket) remove(c *wsClient) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if _, ok := ws.clients[c]; ok {
		delete(ws.clients, c)
		close(c.send)
	}
}

// ClientCount returns the number of connected clients.
func (ws *WebSocket) ClientCount() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.clients)
}

func (ws *WebSocket) Draw(frame meter.Frame) error {
	msg, err := json.Marshal(frameMessage{
		Type:      "frame",
		Vertices:  frame.Vertices[:],
		Indices:   frame.Indices[:],
		DrawCount: frame.DrawCount(),
		Overload:  frame.Overload,
		RMS:       frame.Level.RMS,
		Peak:      frame.Level.Peak,
		LevelDB:   frame.Level.LevelDB,
	})
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	for c := range ws.clients {
		select {
		case c.send <- msg:
		default:
			logger.Warnf("WebSocket client too slow, disconnecting")
			delete(ws.clients, c)
			close(c.send)
		}
	}
	return nil
}

// Close disconnects every client.
func (ws *WebSocket) Close() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for c := range ws.clients {
		delete(ws.clients, c)
		close(c.send)
	}
}
