package meter

import (
	"sync"
	"time"

	"github.com/dooshek/vumeter/internal/audio"
	"github.com/dooshek/vumeter/internal/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config bundles everything a Meter needs at construction.
type Config struct {
	Calibration Calibration `yaml:"calibration"`
	Physics     Physics     `yaml:"physics"`
	Layout      Layout      `yaml:"layout"`
}

func DefaultConfig() Config {
	return Config{
		Calibration: DefaultCalibration(),
		Physics:     DefaultPhysics(),
		Layout:      DefaultLayout(),
	}
}

// Level is published once per processed audio block.
type Level struct {
	RMS      int
	Peak     int
	LevelDB  float64
	Theta    float64
	Overload bool
	At       time.Time
}

// Frame is a consistent copy of everything the renderer needs.
type Frame struct {
	Vertices [VertexFloats]float32
	Indices  [IndexCount]uint16
	Overload bool
	Level    Level
}

// DrawCount returns how many indices to draw from the start of Indices:
// the base plate and needle, plus the LED when overloaded.
func (f Frame) DrawCount() int {
	if f.Overload {
		return LEDIndexOffset + LEDIndexCount
	}
	return AlwaysDrawnIndices
}

// Meter owns the loudness-to-needle pipeline state. Process is called from
// the audio goroutine; Frame, Peaked and subscriptions are safe from any
// goroutine.
type Meter struct {
	id  string
	cal Calibration
	now func() time.Time
	log zerolog.Logger

	mu       sync.RWMutex
	analyzer *audio.Analyzer
	needle   *Needle
	geometry *Geometry
	level    Level

	subsMu  sync.Mutex
	subs    map[int]chan Level
	nextSub int
}

// New builds a meter with the needle at rest.
func New(cfg Config) *Meter {
	id := uuid.NewString()
	m := &Meter{
		id:       id,
		cal:      cfg.Calibration,
		now:      time.Now,
		log:      logger.With(id),
		analyzer: audio.NewAnalyzer(),
		needle:   NewNeedle(cfg.Physics, cfg.Calibration.LeftLimit, cfg.Calibration.RightLimit),
		geometry: NewGeometry(cfg.Layout),
		subs:     make(map[int]chan Level),
	}
	m.level = Level{
		LevelDB: cfg.Calibration.LevelDB(0),
		Theta:   m.needle.State().Theta,
	}
	m.geometry.UpdateNeedle(m.level.Theta)
	m.log.Debug().Msg("Meter created")
	return m
}

// ID identifies this meter instance.
func (m *Meter) ID() string {
	return m.id
}

// Process runs one audio block through the pipeline and publishes the
// resulting level to subscribers.
func (m *Meter) Process(block []int16) Level {
	m.mu.Lock()
	loudness := m.analyzer.Analyze(block)
	state := m.needle.Advance(m.cal.TargetAngle(loudness.RMS), m.now())
	m.geometry.UpdateNeedle(state.Theta)
	m.level = Level{
		RMS:      loudness.RMS,
		Peak:     loudness.Peak,
		LevelDB:  m.cal.LevelDB(loudness.RMS),
		Theta:    state.Theta,
		Overload: m.cal.Overloaded(loudness.Peak),
		At:       state.Prev,
	}
	level := m.level
	m.mu.Unlock()

	if level.Overload {
		m.log.Debug().Int("peak", level.Peak).Msg("Overload")
	}
	m.publish(level)
	return level
}

// Frame returns a copy of the current geometry and level.
func (m *Meter) Frame() Frame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Frame{
		Vertices: m.geometry.Vertices,
		Indices:  m.geometry.Indices,
		Overload: m.level.Overload,
		Level:    m.level,
	}
}

// Level returns the most recent level.
func (m *Meter) Level() Level {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

// Physics returns the needle's current motion.
func (m *Meter) Physics() PhysicsState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.needle.State()
}

// Peaked reports whether the overload LED is lit.
func (m *Meter) Peaked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level.Overload
}

// Subscribe returns a channel receiving levels as blocks are processed.
// The channel holds only the latest unread level; older ones are
// replaced, so a slow reader never stalls the audio goroutine. The
// returned func unsubscribes and closes the channel.
func (m *Meter) Subscribe() (<-chan Level, func()) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan Level, 1)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

func (m *Meter) publish(level Level) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		audio.OfferLatest(ch, level)
	}
}
