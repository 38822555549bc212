package audio

import (
	"context"
	"errors"
)

const (
	// SampleRate is the capture rate the meter is calibrated for.
	SampleRate = 8000
	// Channels is fixed to mono.
	Channels = 1
	// DefaultBlockFrames is one tenth of a second of audio.
	DefaultBlockFrames = SampleRate / 10
)

var (
	// ErrNotStarted is returned by Read before Start or after Stop.
	ErrNotStarted = errors.New("audio source not started")
	// ErrAlreadyStarted is returned by Start on a running source.
	ErrAlreadyStarted = errors.New("audio source already started")
)

// Source supplies fixed-size blocks of signed 16-bit mono PCM.
//
// Read blocks until the next block is available, ctx is done, or the
// source fails. A finite source returns io.EOF once drained. Stop
// releases the device and unblocks pending reads; calling it twice is
// safe.
type Source interface {
	Start() error
	Read(ctx context.Context) ([]int16, error)
	Stop() error
}
