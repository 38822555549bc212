package meter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by step on every reading.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func newTestMeter() *Meter {
	m := New(DefaultConfig())
	clock := &fakeClock{now: time.Unix(1700000000, 0), step: 10 * time.Millisecond}
	m.now = clock.Now
	return m
}

func fill(n int, v int16) []int16 {
	block := make([]int16, n)
	for i := range block {
		block[i] = v
	}
	return block
}

func TestNewMeterRestsOnLeftStop(t *testing.T) {
	m := newTestMeter()
	f := m.Frame()

	assert.Equal(t, left, f.Level.Theta)
	assert.False(t, f.Overload)
	assert.Equal(t, AlwaysDrawnIndices, f.DrawCount())

	g := NewGeometry(DefaultLayout())
	g.UpdateNeedle(left)
	assert.Equal(t, g.Vertices, f.Vertices)
}

func TestSilenceSettlesOnLeftStop(t *testing.T) {
	m := newTestMeter()

	for i := 0; i < 100; i++ {
		m.Process(fill(800, 20000))
	}
	require.Less(t, m.Level().Theta, left)

	var level Level
	for i := 0; i < 1000; i++ {
		level = m.Process(make([]int16, 800))
	}
	assert.Equal(t, 0, level.RMS)
	assert.Equal(t, 0, level.Peak)
	assert.InDelta(t, left, level.Theta, 1e-9)
	assert.False(t, m.Peaked())
}

func TestFullScalePeakLightsLED(t *testing.T) {
	m := newTestMeter()

	block := make([]int16, 800)
	block[400] = 32767
	level := m.Process(block)

	assert.Equal(t, 32767, level.Peak)
	assert.True(t, level.Overload)
	assert.True(t, m.Peaked())
	assert.Equal(t, LEDIndexOffset+LEDIndexCount, m.Frame().DrawCount())

	m.Process(fill(800, 100))
	assert.False(t, m.Peaked())
}

func TestEmptyBlockKeepsLoudness(t *testing.T) {
	m := newTestMeter()
	prev := m.Process(fill(800, 5000))

	got := m.Process(nil)
	assert.Equal(t, prev.RMS, got.RMS)
	assert.Equal(t, prev.Peak, got.Peak)
	assert.Equal(t, prev.Overload, got.Overload)
}

func TestFrameMatchesPublishedTheta(t *testing.T) {
	m := newTestMeter()
	layout := DefaultLayout()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := NewGeometry(layout)
			for {
				select {
				case <-stop:
					return
				default:
				}
				f := m.Frame()
				g.UpdateNeedle(f.Level.Theta)
				if g.Vertices != f.Vertices {
					t.Errorf("torn frame at theta %v", f.Level.Theta)
					return
				}
			}
		}()
	}

	for i := 0; i < 2000; i++ {
		m.Process(fill(400, int16((i%64)*500)))
	}
	close(stop)
	wg.Wait()
}

func TestSubscribeKeepsOnlyLatestLevel(t *testing.T) {
	m := newTestMeter()
	ch, cancel := m.Subscribe()
	defer cancel()

	m.Process(fill(100, 1000))
	m.Process(fill(100, 2000))
	last := m.Process(fill(100, 3000))

	require.Len(t, ch, 1)
	got := <-ch
	assert.Equal(t, last, got)
	assert.Equal(t, 3000, got.RMS)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	m := newTestMeter()
	ch, cancel := m.Subscribe()
	other, cancelOther := m.Subscribe()
	defer cancelOther()

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	assert.NotPanics(t, func() { m.Process(fill(100, 1000)) })
	assert.Equal(t, 1000, (<-other).RMS)
}

func TestMetersAreIndependent(t *testing.T) {
	a := newTestMeter()
	b := newTestMeter()
	assert.NotEqual(t, a.ID(), b.ID())

	a.Process(fill(800, 30000))
	assert.True(t, a.Peaked())
	assert.False(t, b.Peaked())
	assert.Equal(t, left, b.Level().Theta)
}
