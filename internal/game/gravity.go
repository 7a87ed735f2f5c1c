package game

import (
	"time"

	"go.uber.org/zap"
)

// gravityDriver is the recurring gravity tick for one session. Each tick
// attempts a single down-move; the session itself turns a failed tick into
// a lock. The interval is re-derived from the active player's level after
// every tick, and ticks elapsed while paused are simply dropped.
type gravityDriver struct {
	session *Session
	logger  *zap.Logger
	base    time.Duration
	stop    chan struct{}
}

func newGravityDriver(session *Session, base time.Duration, logger *zap.Logger) *gravityDriver {
	if base <= 0 {
		base = time.Second
	}
	return &gravityDriver{
		session: session,
		logger:  logger,
		base:    base,
		stop:    make(chan struct{}),
	}
}

func (d *gravityDriver) run() {
	timer := time.NewTimer(d.session.GravityInterval(d.base))
	defer timer.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-timer.C:
			if d.session.Finished() {
				d.logger.Debug("gravity stopped, game finished",
					zap.String("game_id", d.session.ID()),
				)
				return
			}
			d.session.Tick()
			timer.Reset(d.session.GravityInterval(d.base))
		}
	}
}

func (d *gravityDriver) halt() {
	select {
	case <-d.stop:
	default:
		close(d.stop)
	}
}
