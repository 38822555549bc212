package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/dooshek/vumeter/internal/logger"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

var ErrFFmpegNotInstalled = errors.New("FFmpeg is not installed. Please install FFmpeg to replay audio files")

func checkFFmpegInstalled() error {
	cmd := exec.Command("ffmpeg", "-version")
	if err := cmd.Run(); err != nil {
		return ErrFFmpegNotInstalled
	}
	return nil
}

func init() {
	ffmpeg.LogCompiledCommand = false
}

// FileSource replays an audio file through the meter. ffmpeg decodes any
// input format to S16LE mono at SampleRate; blocks are released at the
// pace they would arrive from a live device unless Realtime is false.
type FileSource struct {
	path        string
	blockFrames int
	Realtime    bool

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	next   time.Time
}

func NewFileSource(path string, blockFrames int) *FileSource {
	if blockFrames <= 0 {
		blockFrames = DefaultBlockFrames
	}
	return &FileSource{path: path, blockFrames: blockFrames, Realtime: true}
}

func (f *FileSource) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cmd != nil {
		return ErrAlreadyStarted
	}
	if err := checkFFmpegInstalled(); err != nil {
		return err
	}

	cmd := ffmpeg.Input(f.path).
		Output("pipe:", ffmpeg.KwArgs{
			"loglevel": "quiet",
			"format":   "s16le",
			"acodec":   "pcm_s16le",
			"ac":       Channels,
			"ar":       SampleRate,
		}).
		Compile()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	f.cmd = cmd
	f.stdout = stdout
	f.next = time.Time{}
	logger.Infof("▶️ Replaying %s", f.path)
	return nil
}

// Read returns the next decoded block. The final short block is padded
// with silence; io.EOF follows it.
func (f *FileSource) Read(ctx context.Context) ([]int16, error) {
	f.mu.Lock()
	stdout := f.stdout
	f.mu.Unlock()

	if stdout == nil {
		return nil, ErrNotStarted
	}

	if err := f.pace(ctx); err != nil {
		return nil, err
	}

	// ffmpeg can stall on a live input; only killing it ends the read.
	release := context.AfterFunc(ctx, func() { f.Stop() })
	defer release()

	buf := make([]byte, f.blockFrames*2)
	n, err := io.ReadFull(stdout, buf)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		clear(buf[n:])
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	case err != nil:
		return nil, fmt.Errorf("failed to read decoded audio: %w", err)
	}
	return DecodePCM16(buf), nil
}

func (f *FileSource) pace(ctx context.Context) error {
	if !f.Realtime {
		return ctx.Err()
	}
	now := time.Now()
	if f.next.IsZero() {
		f.next = now
	}
	wait := f.next.Sub(now)
	f.next = f.next.Add(time.Duration(f.blockFrames) * time.Second / SampleRate)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Stop kills the decoder if it is still running.
func (f *FileSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cmd == nil {
		return nil
	}

	if f.cmd.ProcessState == nil {
		_ = f.cmd.Process.Kill()
	}
	_ = f.cmd.Wait()
	f.cmd = nil
	f.stdout = nil
	logger.Debugf("Decoder for %s stopped", f.path)
	return nil
}
