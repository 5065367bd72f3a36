package backend

import (
	"sync"
	"time"
)

// updatesChangedBatch is the default window updates-changed
// notifications are coalesced over (spec §4.E: "with an optional
// batching timeout").
const updatesChangedBatch = 500 * time.Millisecond

// signalBus holds the two engine-facing signals a backend posts
// outside of any Job: repo-list-changed and updates-changed.
type signalBus struct {
	mu sync.Mutex

	onRepoList []func()

	onUpdates   []func()
	updatesTmr  *time.Timer
}

func newSignalBus() *signalBus {
	return &signalBus{}
}

func (s *signalBus) onRepoListChanged(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRepoList = append(s.onRepoList, fn)
}

func (s *signalBus) fireRepoListChanged() {
	s.mu.Lock()
	subs := append([]func(){}, s.onRepoList...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func (s *signalBus) onUpdatesChanged(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdates = append(s.onUpdates, fn)
}

// fireUpdatesChanged batches repeated calls within updatesChangedBatch
// into a single notification, since update scans tend to arrive in
// bursts (one per repo refreshed).
func (s *signalBus) fireUpdatesChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updatesTmr != nil {
		s.updatesTmr.Stop()
	}
	s.updatesTmr = time.AfterFunc(updatesChangedBatch, s.flushUpdatesChanged)
}

func (s *signalBus) flushUpdatesChanged() {
	s.mu.Lock()
	subs := append([]func(){}, s.onUpdates...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}
