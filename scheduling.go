package mlsync

import (
	"github.com/openlistings/mlsync/pkg/schedule"
)

// Compile-time interface check to ensure proper implementation.
var _ Scheduling = (*client)(nil)

// Scheduling controls periodic background syncs.
type Scheduling interface {
	// AutoSyncOn begins periodic syncs for every enabled provider
	AutoSyncOn() error

	// AutoSyncOff stops periodic syncs
	AutoSyncOff() error

	// Scheduler returns the scheduler for per-provider control
	Scheduler() *schedule.Scheduler
}

// AutoSyncOn begins periodic syncs for every enabled provider at its
// configured interval.
func (c *client) AutoSyncOn() error {
	return c.sched.StartAll()
}

// AutoSyncOff stops periodic syncs and cancels the runs they started.
func (c *client) AutoSyncOff() error {
	c.sched.StopAll()
	return nil
}

// Scheduler returns the scheduler for per-provider control.
func (c *client) Scheduler() *schedule.Scheduler {
	return c.sched
}
