// Package render samples meter frames at display rate and hands them to
// output sinks.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dooshek/vumeter/internal/logger"
	"github.com/dooshek/vumeter/internal/meter"
)

// ErrNoSinks is returned by Loop once every sink has failed.
var ErrNoSinks = errors.New("no render sinks left")

// Sink consumes one frame per display refresh.
type Sink interface {
	Draw(frame meter.Frame) error
}

// FrameSource provides the latest frame. *meter.Meter implements it.
type FrameSource interface {
	Frame() meter.Frame
}

// Loop draws the latest frame to every sink fps times per second until ctx
// is done. A sink that fails is logged and dropped.
func Loop(ctx context.Context, src FrameSource, fps int, sinks ...Sink) error {
	if fps <= 0 {
		return fmt.Errorf("invalid frame rate %d", fps)
	}
	if len(sinks) == 0 {
		return ErrNoSinks
	}

	active := append([]Sink(nil), sinks...)
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		frame := src.Frame()
		kept := active[:0]
		for _, s := range active {
			if err := s.Draw(frame); err != nil {
				logger.Errorf("Render sink %T failed, dropping it", err, s)
				continue
			}
			kept = append(kept, s)
		}
		active = kept

		if len(active) == 0 {
			return ErrNoSinks
		}
	}
}
