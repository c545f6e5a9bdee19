// Package connectivity watches reachability of the remote store and reports
// online/offline transitions. On the offline→online edge it offers a sync
// attempt; the reconciliation engine's single-flight guard is free to reject
// it.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/mpetrenko/homeledger/internal/logging"
)

type State string

const (
	StateUnknown State = "unknown"
	StateOnline  State = "online"
	StateOffline State = "offline"
)

// Pinger probes the remote store; a nil error means reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor polls the remote store and tracks connectivity state. OnOnline is
// invoked once per offline→online transition, best-effort: its error is
// logged and never retried by the monitor itself.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	onOnline func(ctx context.Context) error
	log      logging.Logger

	mu    sync.RWMutex
	state State
}

func NewMonitor(pinger Pinger, interval time.Duration, onOnline func(ctx context.Context) error, log logging.Logger) *Monitor {
	return &Monitor{
		pinger:   pinger,
		interval: interval,
		timeout:  3 * time.Second,
		onOnline: onOnline,
		log:      log,
		state:    StateUnknown,
	}
}

// Online reports the last observed state. Unknown counts as offline: sync
// availability must not be assumed before the first successful probe.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateOnline
}

// Run polls until ctx is done. An immediate probe precedes the ticker so
// startup does not wait a full interval for the first state.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Check performs one probe and handles the state transition.
func (m *Monitor) Check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.pinger.Ping(pingCtx)
	cancel()

	next := StateOnline
	if err != nil {
		next = StateOffline
	}

	m.mu.Lock()
	prev := m.state
	m.state = next
	m.mu.Unlock()

	if prev == next {
		return
	}
	m.log.Info(ctx, "connectivity changed", "from", string(prev), "to", string(next))

	if next == StateOnline && m.onOnline != nil {
		if err := m.onOnline(ctx); err != nil {
			// Includes the defined single-flight rejection; either way
			// the monitor only offers the attempt.
			m.log.Warn(ctx, "opportunistic sync failed", "error", err)
		}
	}
}
