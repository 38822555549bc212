package notification

import (
	"fmt"
	"runtime"

	"github.com/dooshek/vumeter/internal/logger"
)

const appTitle = "VU Meter"

// Notifier raises desktop notifications for events the user must see even
// when the meter window is hidden.
type Notifier interface {
	NotifyCaptureFault(err error) error
	NotifyReplayFinished(path string) error
	Notify(title, message string) error
}

// SilentNotifier is a no-op implementation for daemon mode
type SilentNotifier struct{}

func NewSilent() Notifier {
	return &SilentNotifier{}
}

func (s *SilentNotifier) NotifyCaptureFault(error) error     { return nil }
func (s *SilentNotifier) NotifyReplayFinished(string) error  { return nil }
func (s *SilentNotifier) Notify(title, message string) error { return nil }

type baseNotifier struct {
	platform platformNotifier
}

type platformNotifier interface {
	send(title, message string) error
}

// New creates a new platform-specific notification service
func New() Notifier {
	logger.Debug("Initializing notification system")
	var platform platformNotifier
	switch runtime.GOOS {
	case "darwin":
		logger.Debug("Using Darwin (macOS) notifier")
		platform = newDarwinNotifier()
	default:
		logger.Debug("Using Linux notifier")
		platform = newLinuxNotifier()
	}
	return &baseNotifier{platform: platform}
}

func (n *baseNotifier) NotifyCaptureFault(err error) error {
	return n.Notify(appTitle, formatFaultMessage(err))
}

func (n *baseNotifier) NotifyReplayFinished(path string) error {
	return n.Notify(appTitle, fmt.Sprintf("Finished replaying %s", path))
}

func (n *baseNotifier) Notify(title, message string) error {
	return n.platform.send(title, message)
}

func formatFaultMessage(err error) string {
	return fmt.Sprintf("Microphone capture stopped: %v", err)
}
