package meter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dooshek/vumeter/internal/audio"
)

// Pipeline drives a Meter from an audio source on its own goroutine, at
// whatever cadence the source delivers blocks.
type Pipeline struct {
	meter  *Meter
	source audio.Source

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

func NewPipeline(m *Meter, source audio.Source) *Pipeline {
	return &Pipeline{meter: m, source: source}
}

// Start opens the source and begins processing. The loop ends when ctx
// is cancelled, Stop is called, the source is drained (io.EOF) or the
// source fails.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return audio.ErrAlreadyStarted
	}
	if err := p.source.Start(); err != nil {
		return fmt.Errorf("failed to start audio source: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})
	p.err = nil

	go p.run(ctx, p.done)

	p.meter.log.Info().Msg("🎚️ Meter running")
	return nil
}

func (p *Pipeline) run(ctx context.Context, done chan struct{}) {
	err := p.loop(ctx)

	// The loop has exited, so nothing reads from the source any more.
	if stopErr := p.source.Stop(); stopErr != nil && err == nil {
		err = fmt.Errorf("failed to stop audio source: %w", stopErr)
	}
	if err != nil {
		p.meter.log.Error().Err(err).Msg("Meter stopped on capture fault")
	} else {
		p.meter.log.Info().Msg("Meter stopped")
	}

	p.mu.Lock()
	p.err = err
	p.running = false
	p.cancel()
	p.mu.Unlock()
	close(done)
}

func (p *Pipeline) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		block, err := p.source.Read(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, io.EOF):
				p.meter.log.Info().Msg("Audio source drained")
				return nil
			default:
				return fmt.Errorf("capture failed: %w", err)
			}
		}

		p.meter.Process(block)
	}
}

// Stop cancels the loop, releases the source, waits for the loop to exit
// and returns the pipeline's terminal error if any. Calling Stop on a
// stopped pipeline returns the previous result.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()

	// A source need not honour ctx in Read; releasing it ends the read.
	var stopErr error
	select {
	case <-done:
	default:
		if err := p.source.Stop(); err != nil {
			stopErr = fmt.Errorf("failed to stop audio source: %w", err)
		}
	}
	<-done

	if err := p.Err(); err != nil {
		return err
	}
	return stopErr
}

// Done is closed when the loop has exited and the source is released. It
// is nil before the first Start.
func (p *Pipeline) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Err returns the capture fault that ended the last run, or nil.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
