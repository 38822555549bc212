package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dooshek/vumeter/internal/logger"
	"github.com/gen2brain/malgo"
)

// micQueueBlocks bounds how far the meter may fall behind the device.
// When full, the oldest block is dropped.
const micQueueBlocks = 4

// ErrDeviceStopped is reported when the capture device stops on its own,
// e.g. because it was unplugged.
var ErrDeviceStopped = errors.New("capture device stopped unexpectedly")

// MicSource captures the default input device through miniaudio.
type MicSource struct {
	blockFrames int

	mu       sync.Mutex
	mctx     *malgo.AllocatedContext
	device   *malgo.Device
	blocks   chan []int16
	faults   chan error
	done     chan struct{}
	stopping atomic.Bool

	// pending is only touched from the device callback.
	pending []int16
}

// NewMicSource returns a microphone source delivering blocks of
// blockFrames samples. Non-positive values select DefaultBlockFrames.
func NewMicSource(blockFrames int) *MicSource {
	if blockFrames <= 0 {
		blockFrames = DefaultBlockFrames
	}
	return &MicSource{blockFrames: blockFrames}
}

// Start opens the capture device and begins streaming.
func (m *MicSource) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return ErrAlreadyStarted
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debugf("malgo: %s", message)
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(Channels)
	deviceConfig.SampleRate = uint32(SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	m.blocks = make(chan []int16, micQueueBlocks)
	m.faults = make(chan error, 1)
	m.done = make(chan struct{})
	m.pending = make([]int16, 0, m.blockFrames*2)
	m.stopping.Store(false)

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: m.onData,
		Stop: m.onStop,
	})
	if err != nil {
		releaseContext(mctx)
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		releaseContext(mctx)
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	m.mctx = mctx
	m.device = device
	logger.Infof("🎙️ Capturing %d Hz mono, %d frames per block", SampleRate, m.blockFrames)
	return nil
}

func (m *MicSource) onData(_, input []byte, _ uint32) {
	m.pending = append(m.pending, DecodePCM16(input)...)
	for len(m.pending) >= m.blockFrames {
		block := make([]int16, m.blockFrames)
		copy(block, m.pending)
		m.pending = append(m.pending[:0], m.pending[m.blockFrames:]...)
		OfferLatest(m.blocks, block)
	}
}

func (m *MicSource) onStop() {
	if m.stopping.Load() {
		return
	}
	select {
	case m.faults <- ErrDeviceStopped:
	default:
	}
}

// Read returns the next captured block.
func (m *MicSource) Read(ctx context.Context) ([]int16, error) {
	m.mu.Lock()
	blocks, faults, done := m.blocks, m.faults, m.done
	m.mu.Unlock()

	if blocks == nil {
		return nil, ErrNotStarted
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
		return nil, ErrNotStarted
	case err := <-faults:
		return nil, err
	case block := <-blocks:
		return block, nil
	}
}

// Stop closes the device. It is safe to call on a stopped source.
func (m *MicSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return nil
	}

	m.stopping.Store(true)
	m.device.Uninit()
	m.device = nil

	err := releaseContext(m.mctx)
	m.mctx = nil
	close(m.done)
	m.blocks = nil

	logger.Debugf("Capture device released")
	return err
}

func releaseContext(mctx *malgo.AllocatedContext) error {
	err := mctx.Uninit()
	mctx.Free()
	if err != nil {
		return fmt.Errorf("failed to release audio context: %w", err)
	}
	return nil
}

// OfferLatest enqueues v, discarding the oldest queued value when ch is
// full. It never blocks as long as ch has a single producer.
func OfferLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
