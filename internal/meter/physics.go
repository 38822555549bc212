package meter

import "time"

// InitialStep is the time step, in seconds, used for the first update
// when there is no previous timestamp to measure from.
const InitialStep = 0.01

// Physics holds the spring-damper coefficients of the needle.
//
// MaxStep bounds a single integration step in seconds; zero leaves dt
// unbounded. The integrator is explicit, so an unbounded step after a
// long stall (suspend, debugger) can overshoot badly before the stops
// catch it.
type Physics struct {
	Acceleration float64 `yaml:"acceleration" validate:"gt=0"`
	Friction     float64 `yaml:"friction" validate:"gte=0"`
	MaxStep      float64 `yaml:"max_step" validate:"gte=0"`
}

func DefaultPhysics() Physics {
	return Physics{
		Acceleration: 100,
		Friction:     10,
	}
}

// PhysicsState is the needle's motion. A zero Prev means no update has
// happened yet.
type PhysicsState struct {
	Theta        float64
	Velocity     float64
	Acceleration float64
	Prev         time.Time
}

// Needle simulates a damped spring pulling the needle towards its target
// angle, with mechanical stops at both angular limits. Not safe for
// concurrent use; Meter serializes access.
type Needle struct {
	physics Physics
	left    float64
	right   float64
	state   PhysicsState
}

// NewNeedle returns a needle at rest against the left stop.
func NewNeedle(physics Physics, left, right float64) *Needle {
	n := &Needle{physics: physics, left: left, right: right}
	n.Reset()
	return n
}

// Reset puts the needle back at rest against the left stop.
func (n *Needle) Reset() {
	n.state = PhysicsState{Theta: n.left}
}

// State returns the current motion.
func (n *Needle) State() PhysicsState {
	return n.state
}

// Advance moves the simulation to now. The elapsed time since the previous
// call is used as-is, even when it is zero or negative; callers must supply
// monotonic timestamps for physically meaningful motion.
func (n *Needle) Advance(target float64, now time.Time) PhysicsState {
	dt := InitialStep
	if !n.state.Prev.IsZero() {
		dt = now.Sub(n.state.Prev).Seconds()
	}
	n.state.Prev = now
	return n.Step(target, dt)
}

// Step integrates one explicit time step of dt seconds.
func (n *Needle) Step(target, dt float64) PhysicsState {
	if n.physics.MaxStep > 0 && dt > n.physics.MaxStep {
		dt = n.physics.MaxStep
	}

	s := &n.state
	s.Acceleration = n.physics.Acceleration*(target-s.Theta) - n.physics.Friction*s.Velocity
	s.Velocity += s.Acceleration * dt
	s.Theta += s.Velocity * dt

	// The stops absorb all kinetic energy.
	if s.Theta > n.left {
		s.Theta = n.left
		s.Velocity = 0
	}
	if s.Theta < n.right {
		s.Theta = n.right
		s.Velocity = 0
	}
	return *s
}
