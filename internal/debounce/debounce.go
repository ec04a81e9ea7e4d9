// Package debounce implements keyed trailing-edge timers on top of Bubble Tea
// commands. Each key holds at most one live timer; scheduling again
// supersedes the previous one and only the latest generation is honored
// when its message comes back.
package debounce

import (
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/oakwood-commons/facetview/internal/metrics"
)

// FiredMsg is delivered when a timer elapses. Owners pass it to Accept
// before acting on it.
type FiredMsg struct {
	Owner   string
	Key     string
	Gen     uint64
	Payload any
}

// Scheduler turns a delay and the message to deliver into a command.
type Scheduler func(d time.Duration, msg tea.Msg) tea.Cmd

// TickScheduler schedules with tea.Tick.
func TickScheduler(d time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return msg })
}

// Debouncer tracks the live generation per key for one owner.
type Debouncer struct {
	owner    string
	schedule Scheduler
	next     uint64
	live     map[string]uint64
	stopped  bool
}

// New returns a debouncer whose messages carry owner. A nil scheduler means
// TickScheduler.
func New(owner string, s Scheduler) *Debouncer {
	if s == nil {
		s = TickScheduler
	}
	return &Debouncer{owner: owner, schedule: s, live: make(map[string]uint64)}
}

// Owner is the name stamped on fired messages.
func (d *Debouncer) Owner() string { return d.owner }

// Schedule (re)arms the timer for key. Any earlier timer for the key is
// superseded.
func (d *Debouncer) Schedule(key string, delay time.Duration, payload any) tea.Cmd {
	if d.stopped {
		return nil
	}
	if _, ok := d.live[key]; ok {
		metrics.DebounceSupersededTotal.WithLabelValues(d.owner).Inc()
	}
	d.next++
	d.live[key] = d.next
	return d.schedule(delay, FiredMsg{Owner: d.owner, Key: key, Gen: d.next, Payload: payload})
}

// Cancel drops the pending timer for key and reports whether one existed.
func (d *Debouncer) Cancel(key string) bool {
	if _, ok := d.live[key]; !ok {
		return false
	}
	delete(d.live, key)
	metrics.DebounceSupersededTotal.WithLabelValues(d.owner).Inc()
	return true
}

// Accept reports whether msg is the live timer for its key and consumes it.
func (d *Debouncer) Accept(msg FiredMsg) bool {
	if d.stopped || msg.Owner != d.owner {
		return false
	}
	gen, ok := d.live[msg.Key]
	if !ok || gen != msg.Gen {
		return false
	}
	delete(d.live, msg.Key)
	return true
}

// Pending reports whether key has a live timer.
func (d *Debouncer) Pending(key string) bool {
	_, ok := d.live[key]
	return ok
}

// Stop cancels every timer. Later Schedule calls are ignored.
func (d *Debouncer) Stop() {
	d.stopped = true
	clear(d.live)
}

// ImmediateScheduler fires every timer at once. Scripted hosts use it to
// run a key sequence without waiting.
func ImmediateScheduler(_ time.Duration, msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}
