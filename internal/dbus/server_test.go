package dbus

import (
	"context"
	"testing"
	"time"

	"github.com/dooshek/vumeter/internal/meter"
	"github.com/stretchr/testify/assert"
)

func TestGetLevelReportsLatestLevel(t *testing.T) {
	m := meter.New(meter.DefaultConfig())
	block := make([]int16, 64)
	for i := range block {
		block[i] = 30000
	}
	want := m.Process(block)

	obj := &meterObject{meter: m}
	rms, peak, theta, overload, derr := obj.GetLevel()

	assert.Nil(t, derr)
	assert.Equal(t, int32(30000), rms)
	assert.Equal(t, int32(30000), peak)
	assert.Equal(t, want.Theta, theta)
	assert.True(t, overload)
}

func TestForwardEndsWhenSubscriptionCloses(t *testing.T) {
	s := NewServer(meter.New(meter.DefaultConfig()))
	levels := make(chan meter.Level, 1)
	levels <- meter.Level{RMS: 1}
	close(levels)

	done := make(chan struct{})
	go func() {
		s.forward(context.Background(), levels)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("forward did not return")
	}
}

func TestStopWithoutStart(t *testing.T) {
	s := NewServer(meter.New(meter.DefaultConfig()))
	assert.NotPanics(t, s.Stop)
}

func TestForwardEndsOnCancel(t *testing.T) {
	s := NewServer(meter.New(meter.DefaultConfig()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		s.forward(ctx, make(chan meter.Level))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("forward ignored cancellation")
	}
}

func TestStartTwiceIsRejected(t *testing.T) {
	s := NewServer(meter.New(meter.DefaultConfig()))
	s.started = true

	assert.ErrorIs(t, s.Start(), ErrAlreadyStarted)
	assert.Nil(t, s.conn, "no second bus connection opened")
}
