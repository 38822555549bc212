package notification

import (
	"os/exec"

	"github.com/dooshek/vumeter/internal/logger"
)

type linuxNotifier struct{}

func newLinuxNotifier() platformNotifier {
	return &linuxNotifier{}
}

func (n *linuxNotifier) send(title, message string) error {
	logger.Debugf("Sending notification: %s - %s", title, message)
	go func() {
		if err := exec.Command("notify-send", "--urgency=critical", title, message).Run(); err != nil {
			logger.Error("Failed to send notification", err)
		}
	}()
	return nil
}
