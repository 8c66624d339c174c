package surface

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/marinerlabs/rovlink/store"
)

const (
	PWM_MIN = 1100
	PWM_MAX = 1900

	// UPDATE_DELAY is the cadence at which mapped values are written into
	// the store; the ramp rate turns this into the actuator slew rate.
	UPDATE_DELAY = 50 * time.Millisecond
)

// InputState is one snapshot of the operator's controls, already normalised
// by the input driver: axes and triggers in [-1, 1], buttons as booleans.
type InputState struct {
	LeftAxisX, LeftAxisY   float64
	RightAxisX, RightAxisY float64
	LeftTrigger            float64
	RightTrigger           float64
	HatX, HatY             float64

	ButtonLB, ButtonRB bool
	ButtonX, ButtonY   bool
}

// ControlFunc computes one actuator key's value from the current input
// state. Every mapping is a pure function registered in the static table
// below; there is no per-control dynamic dispatch.
type ControlFunc func(in InputState) float64

// controlTable binds each transmitted actuator key to its mapping. Built
// once; iterated every update tick.
func controlTable() map[string]ControlFunc {
	// Horizontal vectored thrusters mix surge, sway and yaw; vertical
	// thrusters mix heave, pitch and roll.
	surge := func(in InputState) float64 { return -in.LeftAxisY }
	sway := func(in InputState) float64 { return in.LeftAxisX }
	yaw := func(in InputState) float64 { return in.RightAxisX }
	heave := func(in InputState) float64 { return in.RightTrigger - in.LeftTrigger }
	pitch := func(in InputState) float64 { return -in.RightAxisY }
	roll := func(in InputState) float64 { return in.HatX }

	grip := func(open, close bool) float64 {
		switch {
		case open && !close:
			return 1
		case close && !open:
			return -1
		}
		return 0
	}

	return map[string]ControlFunc{
		"Thr_FP": func(in InputState) float64 { return pwm(surge(in) + sway(in) + yaw(in)) },
		"Thr_FS": func(in InputState) float64 { return pwm(surge(in) - sway(in) - yaw(in)) },
		"Thr_AP": func(in InputState) float64 { return pwm(surge(in) - sway(in) + yaw(in)) },
		"Thr_AS": func(in InputState) float64 { return pwm(surge(in) + sway(in) - yaw(in)) },

		"Thr_TFP": func(in InputState) float64 { return pwm(heave(in) + pitch(in) + roll(in)) },
		"Thr_TFS": func(in InputState) float64 { return pwm(heave(in) + pitch(in) - roll(in)) },
		"Thr_TAP": func(in InputState) float64 { return pwm(heave(in) - pitch(in) + roll(in)) },
		"Thr_TAS": func(in InputState) float64 { return pwm(heave(in) - pitch(in) - roll(in)) },

		"Thr_M": func(in InputState) float64 { return pwm(in.HatY) },

		"Mot_R": func(in InputState) float64 { return pwm(grip(in.ButtonX, in.ButtonY)) },
		"Mot_G": func(in InputState) float64 { return pwm(grip(in.ButtonRB, in.ButtonLB)) },
		"Mot_F": func(in InputState) float64 { return pwm(roll(in)) },
	}
}

// Normalise rescales value from [curMin, curMax] into [min, max].
func Normalise(value, curMin, curMax, min, max float64) float64 {
	return min + (value-curMin)*(max-min)/(curMax-curMin)
}

// pwm converts a mixed [-1, 1] command into a clamped pulse width. Zero
// input lands exactly on the idle value.
func pwm(v float64) float64 {
	v = mgl64.Clamp(v, -1, 1)
	return Normalise(v, -1, 1, PWM_MIN, PWM_MAX)
}

// Controller feeds the store with mapped actuator values at a fixed
// cadence. The input driver publishes snapshots through UpdateInput from
// its own thread.
type Controller struct {
	store *store.Store
	table map[string]ControlFunc

	mu    sync.Mutex
	input InputState

	stop chan struct{}
	once sync.Once
}

func NewController(st *store.Store) *Controller {
	return &Controller{
		store: st,
		table: controlTable(),
		stop:  make(chan struct{}),
	}
}

// UpdateInput replaces the current input snapshot.
func (c *Controller) UpdateInput(in InputState) {
	c.mu.Lock()
	c.input = in
	c.mu.Unlock()
}

// Input returns the current input snapshot.
func (c *Controller) Input() InputState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// Tick writes every mapped value into the store once.
func (c *Controller) Tick() {
	c.mu.Lock()
	in := c.input
	c.mu.Unlock()

	for key, fn := range c.table {
		c.store.Set(store.Surface, key, fn(in))
	}
}

// Run ticks until Close.
func (c *Controller) Run() {
	ticker := time.NewTicker(UPDATE_DELAY)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

func (c *Controller) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}
