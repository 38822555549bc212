package dbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dooshek/vumeter/internal/logger"
	"github.com/dooshek/vumeter/internal/meter"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	dbusServiceName = "com.dooshek.vumeter"
	dbusObjectPath  = "/com/dooshek/vumeter/Meter"
	dbusInterface   = "com.dooshek.vumeter.Meter"
)

// ErrAlreadyStarted is returned by Start on a running server.
var ErrAlreadyStarted = errors.New("D-Bus service already started")

// LevelSource is the part of a meter the bus service needs.
type LevelSource interface {
	Level() meter.Level
	Subscribe() (<-chan meter.Level, func())
}

// meterObject is the exported D-Bus object. Its method set is exactly the
// bus interface.
type meterObject struct {
	meter LevelSource
}

// GetLevel returns the latest level (D-Bus method)
func (o *meterObject) GetLevel() (int32, int32, float64, bool, *dbus.Error) {
	l := o.meter.Level()
	return int32(l.RMS), int32(l.Peak), l.Theta, l.Overload, nil
}

// Server publishes a meter on the session bus and forwards every processed
// level as a LevelUpdated signal.
type Server struct {
	object *meterObject

	mu      sync.Mutex
	started bool
	conn    *dbus.Conn
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewServer(m LevelSource) *Server {
	return &Server{object: &meterObject{meter: m}}
}

// Start connects to the session bus, exports the meter and starts
// forwarding level updates.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	reply, err := conn.RequestName(dbusServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return fmt.Errorf("name already taken")
	}

	if err := conn.Export(s.object, dbusObjectPath, dbusInterface); err != nil {
		conn.Close()
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: dbusObjectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: dbusInterface,
				Methods: []introspect.Method{
					{
						Name: "GetLevel",
						Args: []introspect.Arg{
							{Name: "rms", Type: "i", Direction: "out"},
							{Name: "peak", Type: "i", Direction: "out"},
							{Name: "theta", Type: "d", Direction: "out"},
							{Name: "overload", Type: "b", Direction: "out"},
						},
					},
				},
				Signals: []introspect.Signal{
					{
						Name: "LevelUpdated",
						Args: []introspect.Arg{
							{Name: "rms", Type: "i"},
							{Name: "peak", Type: "i"},
						},
					},
				},
			},
		},
	}

	err = conn.Export(introspect.NewIntrospectable(node), dbusObjectPath, "org.freedesktop.DBus.Introspectable")
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.conn = conn
	s.cancel = cancel
	s.started = true

	levels, unsubscribe := s.object.meter.Subscribe()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer unsubscribe()
		s.forward(ctx, levels)
	}()

	logger.Infof("🔌 D-Bus service started: %s", dbusServiceName)
	return nil
}

func (s *Server) forward(ctx context.Context, levels <-chan meter.Level) {
	for {
		select {
		case <-ctx.Done():
			return
		case l, ok := <-levels:
			if !ok {
				return
			}
			s.emitSignal("LevelUpdated", int32(l.RMS), int32(l.Peak))
		}
	}
}

// Stop stops forwarding and releases the bus connection
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.conn.Close()
	s.conn = nil
	s.started = false
	logger.Infof("🔌 D-Bus service stopped")
}

func (s *Server) emitSignal(name string, args ...interface{}) {
	if s.conn == nil {
		logger.Warnf("D-Bus: Cannot emit signal %s - no connection", name)
		return
	}

	err := s.conn.Emit(dbus.ObjectPath(dbusObjectPath), dbusInterface+"."+name, args...)
	if err != nil {
		logger.Errorf("D-Bus: Failed to emit signal %s", err, name)
	}
}
