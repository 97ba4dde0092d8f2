package device

import "golang.org/x/sync/semaphore"

// Lease guards exclusive access to one device. A session must hold the
// lease for its whole lifetime; concurrent open attempts fail fast rather
// than queue, so a stuck session cannot silently block new work.
type Lease struct {
	sem *semaphore.Weighted
}

// NewLease creates an unheld lease.
func NewLease() *Lease {
	return &Lease{sem: semaphore.NewWeighted(1)}
}

// Acquire takes the lease, or returns ErrDeviceBusy if it is already held.
func (l *Lease) Acquire() error {
	if !l.sem.TryAcquire(1) {
		return ErrDeviceBusy
	}
	return nil
}

// Release returns the lease. Calling Release without holding the lease is
// a programming error and panics inside the semaphore.
func (l *Lease) Release() {
	l.sem.Release(1)
}
