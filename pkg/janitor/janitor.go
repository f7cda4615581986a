package janitor

import (
	"sync"
	"time"

	"github.com/nexusgds/pushcore/pkg/log"
	"github.com/nexusgds/pushcore/pkg/metrics"
)

// Tick is called once per interval. It performs one reclamation pass and
// reports whether it found and reclaimed anything, purely for logging -
// the janitor always keeps ticking at the configured interval regardless
// of what Tick returns.
type Tick func() (reclaimed bool)

// Janitor runs Tick on a fixed interval until Stop is called.
type Janitor struct {
	interval time.Duration
	tick     Tick

	mu      sync.Mutex
	stopCh  chan struct{}
	running bool
}

// New returns a Janitor that calls tick every interval once Start is
// called.
func New(interval time.Duration, tick Tick) *Janitor {
	return &Janitor{interval: interval, tick: tick}
}

// Start begins the background loop. Calling Start on an already-running
// Janitor is a no-op.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return
	}
	j.stopCh = make(chan struct{})
	j.running = true
	stopCh := j.stopCh

	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				j.runTick()
			case <-stopCh:
				return
			}
		}
	}()
}

func (j *Janitor) runTick() {
	metrics.JanitorTicksTotal.Inc()
	if j.tick() {
		log.Logger.Info().Msg("session janitor reclaimed expired session state")
	}
}

// Stop ends the background loop. Calling Stop on an already-stopped
// Janitor is a no-op.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	close(j.stopCh)
	j.running = false
}
