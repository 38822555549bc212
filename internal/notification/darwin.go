package notification

import (
	"fmt"
	"os/exec"

	"github.com/dooshek/vumeter/internal/logger"
)

type darwinNotifier struct{}

func newDarwinNotifier() platformNotifier {
	return &darwinNotifier{}
}

func (n *darwinNotifier) send(title, message string) error {
	logger.Debugf("Sending macOS notification: %s - %s", title, message)
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	if err := exec.Command("osascript", "-e", script).Run(); err != nil {
		logger.Error("Failed to send macOS notification", err)
		return err
	}
	return nil
}
