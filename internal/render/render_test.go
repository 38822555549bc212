package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dooshek/vumeter/internal/meter"
	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

type staticSource struct {
	frame meter.Frame
}

func (s staticSource) Frame() meter.Frame { return s.frame }

type countingSink struct {
	mu    sync.Mutex
	draws int
	err   error
}

func (s *countingSink) Draw(meter.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draws++
	return s.err
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draws
}

func TestLoopDrawsUntilCancelled(t *testing.T) {
	good := &countingSink{}
	bad := &countingSink{err: errors.New("gpu lost")}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := Loop(ctx, staticSource{}, 100, good, bad)
	assert.NoError(t, err)
	assert.Greater(t, good.count(), 3)
	assert.Equal(t, 1, bad.count(), "failed sink is dropped")
}

func TestLoopEndsWhenAllSinksFail(t *testing.T) {
	bad := &countingSink{err: errors.New("closed")}
	err := Loop(context.Background(), staticSource{}, 100, bad)
	assert.ErrorIs(t, err, ErrNoSinks)
}

func TestLoopRejectsBadArguments(t *testing.T) {
	assert.Error(t, Loop(context.Background(), staticSource{}, 0, &countingSink{}))
	assert.ErrorIs(t, Loop(context.Background(), staticSource{}, 30), ErrNoSinks)
}

func TestConsoleNeedlePosition(t *testing.T) {
	cal := meter.DefaultCalibration()
	c := NewConsole(&bytes.Buffer{}, cal, 41)

	assert.Equal(t, 0, c.Position(cal.LeftLimit))
	assert.Equal(t, 40, c.Position(cal.RightLimit))
	assert.Equal(t, 20, c.Position((cal.LeftLimit+cal.RightLimit)/2))
	assert.Equal(t, 0, c.Position(cal.LeftLimit+1))
	assert.Equal(t, 40, c.Position(cal.RightLimit-1))
}

func TestConsoleDraw(t *testing.T) {
	cal := meter.DefaultCalibration()
	var out bytes.Buffer
	c := NewConsole(&out, cal, 10)

	frame := meter.Frame{Level: meter.Level{Theta: cal.LeftLimit, LevelDB: -60}}
	require.NoError(t, c.Draw(frame))
	assert.Equal(t, "\r┃─────────  -60.0 dB ○ OVL", out.String())

	out.Reset()
	require.NoError(t, c.Draw(frame))
	assert.Empty(t, out.String(), "unchanged frame is not redrawn")

	frame.Overload = true
	frame.Level.Theta = cal.RightLimit
	frame.Level.LevelDB = 0
	require.NoError(t, c.Draw(frame))
	assert.True(t, strings.HasSuffix(out.String(), "─┃    0.0 dB ● OVL"))
}

func TestWebSocketStreamsFrames(t *testing.T) {
	ws := NewWebSocket(nil)
	srv := httptest.NewServer(ws)
	defer srv.Close()
	defer ws.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return ws.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	m := meter.New(meter.DefaultConfig())
	block := make([]int16, 100)
	block[0] = 32767
	m.Process(block)
	require.NoError(t, ws.Draw(m.Frame()))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg frameMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "frame", msg.Type)
	assert.Len(t, msg.Vertices, meter.VertexFloats)
	assert.Len(t, msg.Indices, meter.IndexCount)
	assert.True(t, msg.Overload)
	assert.Equal(t, meter.IndexCount, msg.DrawCount)
	assert.Equal(t, 32767, msg.Peak)
}

func TestWebSocketForgetsDisconnectedClients(t *testing.T) {
	ws := NewWebSocket(nil)
	srv := httptest.NewServer(ws)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ws.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return ws.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, ws.Draw(meter.Frame{}))
}

func TestWebSocketChecksOrigin(t *testing.T) {
	ws := NewWebSocket([]string{"https://Renderer.example/"})
	srv := httptest.NewServer(ws)
	defer srv.Close()
	defer ws.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	dial := func(origin string) (*http.Response, error) {
		conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {origin}})
		if err == nil {
			conn.Close()
		}
		return resp, err
	}

	_, err := dial("https://renderer.example")
	assert.NoError(t, err, "listed origin")

	_, err = dial("http://localhost:5173")
	assert.NoError(t, err, "loopback origin")

	resp, err := dial("https://elsewhere.example")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = dial("https://renderer.example:8443")
	require.Error(t, err, "port is part of the origin")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocketWildcardOrigin(t *testing.T) {
	ws := NewWebSocket([]string{"*"})
	srv := httptest.NewServer(ws)
	defer srv.Close()
	defer ws.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://anywhere.example"}})
	require.NoError(t, err)
	conn.Close()
}
