package application

import "sync"

// commitGuard serializes calendar-facing commits per appointment id.
// A second commit attempt while the first is still in flight is rejected
// rather than queued, so a duplicate click can never send two invites.
type commitGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func newCommitGuard() *commitGuard {
	return &commitGuard{inFlight: make(map[string]struct{})}
}

// acquire claims the commit slot for an appointment. It reports false when
// a commit for the same id is already running.
func (g *commitGuard) acquire(appointmentID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[appointmentID]; busy {
		return false
	}
	g.inFlight[appointmentID] = struct{}{}
	return true
}

// release frees the commit slot. Safe to call for ids never acquired.
func (g *commitGuard) release(appointmentID string) {
	g.mu.Lock()
	delete(g.inFlight, appointmentID)
	g.mu.Unlock()
}
