package poller

import (
	"sync"
	"time"
)

// NominalDuration is how many units a generation is expected to take.
const NominalDuration = 210

// Phase selects the loading phrase shown during a generation.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseStarting  Phase = "starting"
	PhaseWriting   Phase = "writing"
	PhaseFinishing Phase = "finishing"
	PhaseOvertime  Phase = "overtime"
)

// Countdown is an advisory timer that starts at a nominal duration, decrements once
// per unit and keeps going below zero until it is completed or stopped. It never
// affects polling.
type Countdown struct {
	unit time.Duration
	// life serialises Start, Complete and Stop
	life sync.Mutex

	mu        sync.Mutex
	nominal   int
	remaining int
	active    bool
	stop      chan struct{}
	done      chan struct{}
	onTick    func(remaining int)
}

// NewCountdown creates an idle countdown ticking every unit.
func NewCountdown(unit time.Duration) *Countdown {
	if unit <= 0 {
		unit = time.Second
	}
	return &Countdown{unit: unit}
}

// OnTick registers fn to be called with the remaining units after every tick.
// fn runs on the ticker goroutine and must not call Start, Complete or Stop.
func (c *Countdown) OnTick(fn func(remaining int)) {
	c.mu.Lock()
	c.onTick = fn
	c.mu.Unlock()
}

// Start (re)starts the countdown at nominal units.
func (c *Countdown) Start(nominal int) {
	c.life.Lock()
	defer c.life.Unlock()
	c.halt()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nominal = nominal
	c.remaining = nominal
	c.active = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(c.stop, c.done)
}

// Complete clears the countdown to zero and deactivates it.
func (c *Countdown) Complete() {
	c.life.Lock()
	defer c.life.Unlock()
	c.halt()
	c.mu.Lock()
	c.remaining = 0
	c.active = false
	c.mu.Unlock()
}

// Stop cancels the ticker and deactivates the countdown, keeping the remaining value.
// It returns once the ticker goroutine has exited.
func (c *Countdown) Stop() {
	c.life.Lock()
	defer c.life.Unlock()
	c.halt()
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

// Remaining is the number of units left; negative in overtime.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Active reports whether the countdown is running.
func (c *Countdown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Phase is the loading phase for the remaining time.
func (c *Countdown) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return phaseFor(c.active, c.remaining, c.nominal)
}

func phaseFor(active bool, remaining, nominal int) Phase {
	switch {
	case !active:
		return PhaseIdle
	case remaining < 0:
		return PhaseOvertime
	case remaining*100 > nominal*90:
		return PhaseStarting
	case remaining*100 <= nominal*15:
		return PhaseFinishing
	default:
		return PhaseWriting
	}
}

// halt stops the ticker goroutine and waits for it.
func (c *Countdown) halt() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (c *Countdown) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.unit)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		c.remaining--
		remaining, fn := c.remaining, c.onTick
		c.mu.Unlock()

		if fn != nil {
			fn(remaining)
		}
	}
}
