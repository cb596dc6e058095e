package room

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Countdown calls tick once per second until tick returns false or the
// countdown is stopped. The remaining value itself lives in the room view.
type Countdown struct {
	name  string
	clock clockwork.Clock
	tick  func() bool

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewCountdown(name string, clock clockwork.Clock, tick func() bool) *Countdown {
	return &Countdown{name: name, clock: clock, tick: tick}
}

// Start (re)starts the one second cadence, cancelling any running loop first.
func (c *Countdown) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop, c.done = stop, done

	// Create the ticker before returning so a fake clock sees it immediately
	ticker := c.clock.NewTicker(time.Second)
	go c.run(ticker, stop, done)

	log.Debug().Str("countdown", c.name).Msg("countdown started")
}

// Stop cancels the countdown. No tick runs after Stop returns.
// Must not be called while holding the room state lock.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *Countdown) stopLocked() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.stop, c.done = nil, nil
}

func (c *Countdown) run(ticker clockwork.Ticker, stop, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			select {
			case <-stop:
				return
			default:
			}
			if !c.tick() {
				log.Debug().Str("countdown", c.name).Msg("countdown finished")
				return
			}
		}
	}
}
