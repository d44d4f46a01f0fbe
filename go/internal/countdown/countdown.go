package countdown

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Simple countdown - purely visual
//
// The server owns round timing. The client receives a deadline (or the
// start of the next round) and counts down locally once per second. Nothing
// in the match state machine reads the remaining value for decisions.

// Policy selects how the starting value of a countdown is derived
type Policy int

const (
	// PolicyDeadline counts down from deadline minus now
	PolicyDeadline Policy = iota
	// PolicyFixed always counts down from Config.FixedSeconds
	PolicyFixed
)

// Config holds countdown configuration
type Config struct {
	Policy       Policy
	FixedSeconds int
}

// DefaultConfig returns the deadline-driven policy
func DefaultConfig() Config {
	return Config{
		Policy:       PolicyDeadline,
		FixedSeconds: 30,
	}
}

// ParsePolicy maps a config string onto a Policy. Unknown values fall back
// to PolicyDeadline.
func ParsePolicy(s string) Policy {
	if s == "fixed" {
		return PolicyFixed
	}
	return PolicyDeadline
}

// Timer is a one-second resolution countdown
type Timer struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	config    Config
	remaining int
	armed     bool
	gen       uint64
	stop      chan struct{}
	onTick    func(remaining int)
}

// New creates a disarmed timer
func New(clock clockwork.Clock, config Config) *Timer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Timer{
		clock:  clock,
		config: config,
	}
}

// OnTick sets a callback invoked after every tick with the new remaining
// value. It is called without the timer's lock held.
func (t *Timer) OnTick(fn func(remaining int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTick = fn
}

// Arm (re)starts the countdown for the given deadline and returns the
// starting value. A deadline already in the past leaves the timer disarmed
// at zero.
func (t *Timer) Arm(deadline time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.remaining = t.initialLocked(deadline)
	if t.remaining <= 0 {
		t.remaining = 0
		return 0
	}

	t.armed = true
	t.gen++
	t.stop = make(chan struct{})
	ticker := t.clock.NewTicker(time.Second)
	go t.run(t.gen, ticker, t.stop)

	log.Debug().
		Int("remaining_sec", t.remaining).
		Time("deadline", deadline).
		Msg("countdown armed")

	return t.remaining
}

// Disarm stops the countdown and zeroes it
func (t *Timer) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.remaining = 0
}

// Remaining returns the seconds left on the countdown
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Armed reports whether the countdown is ticking
func (t *Timer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

func (t *Timer) initialLocked(deadline time.Time) int {
	if t.config.Policy == PolicyFixed {
		return t.config.FixedSeconds
	}
	if deadline.IsZero() {
		return 0
	}
	return int(math.Ceil(deadline.Sub(t.clock.Now()).Seconds()))
}

func (t *Timer) stopLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.armed = false
	t.gen++
}

func (t *Timer) run(gen uint64, ticker clockwork.Ticker, stop <-chan struct{}) {
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			t.mu.Lock()
			if t.gen != gen {
				t.mu.Unlock()
				return
			}
			t.remaining--
			if t.remaining <= 0 {
				t.remaining = 0
				t.armed = false
				t.stop = nil
			}
			remaining, done, fn := t.remaining, !t.armed, t.onTick
			t.mu.Unlock()

			if fn != nil {
				fn(remaining)
			}
			if done {
				return
			}
		}
	}
}
