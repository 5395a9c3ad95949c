package runtime

import (
	"sync"
	"time"
)

type saverState int

const (
	saverIdle saverState = iota
	saverArmed
	saverInflight
)

func (s saverState) String() string {
	switch s {
	case saverArmed:
		return "armed"
	case saverInflight:
		return "inflight"
	default:
		return "idle"
	}
}

// autosaver is a trailing-edge debouncer that never runs two saves at once.
//
//	idle     --schedule--> armed
//	armed    --schedule--> armed (timer restarted)
//	armed    --fire------> inflight
//	inflight --schedule--> inflight (rerun recorded)
//	inflight --done------> armed if a rerun was recorded, else idle
//	armed    --cancel----> idle
type autosaver struct {
	mu    sync.Mutex
	state saverState
	delay time.Duration
	timer *time.Timer
	gen   uint64
	rerun bool
	save  func()
}

func newAutosaver(delay time.Duration, save func()) *autosaver {
	return &autosaver{delay: delay, save: save}
}

// schedule records a mutation.
func (a *autosaver) schedule() {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case saverIdle, saverArmed:
		a.armLocked()
	case saverInflight:
		a.rerun = true
	}
}

func (a *autosaver) armLocked() {
	if a.timer != nil {
		a.timer.Stop()
	}
	a.gen++
	gen := a.gen
	a.state = saverArmed
	a.timer = time.AfterFunc(a.delay, func() { a.fire(gen) })
}

func (a *autosaver) fire(gen uint64) {
	a.mu.Lock()
	if a.state != saverArmed || gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.state = saverInflight
	a.timer = nil
	a.mu.Unlock()

	a.save()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != saverInflight {
		return
	}
	if a.rerun {
		a.rerun = false
		a.armLocked()
		return
	}
	a.state = saverIdle
}

// cancel drops a pending save and any recorded rerun. It reports whether a
// save was pending. A save already in flight completes.
func (a *autosaver) cancel() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rerun = false
	if a.state != saverArmed {
		return false
	}
	a.timer.Stop()
	a.timer = nil
	a.gen++
	a.state = saverIdle
	return true
}

func (a *autosaver) current() saverState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}
