package backend

import (
	"sync"
	"time"
)

// inhibitDebounce is the idle window installed_db_changed must sit
// quiet for before the backend is told the installed DB actually
// changed (spec §4.E: "debounced through a ≥ 3 s idle timer").
const inhibitDebounce = 3 * time.Second

// inhibitor brackets internal DB mutations so a burst of filesystem
// notifications during a transaction collapses into a single,
// debounced "installed DB changed" signal once the transaction ends.
type inhibitor struct {
	mu    sync.Mutex
	depth int
	timer *time.Timer

	onChanged func()
}

func newInhibitor() *inhibitor {
	return &inhibitor{}
}

// start brackets the beginning of an internal DB mutation.
func (i *inhibitor) start() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.depth++
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
}

// end brackets the end of an internal DB mutation.
func (i *inhibitor) end() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.depth > 0 {
		i.depth--
	}
}

// installedDBChanged is posted by a file monitor. While inhibited it
// is suppressed entirely; otherwise it (re)starts the debounce timer,
// so a burst of changes only fires onChanged once, 3s after the last
// one.
func (i *inhibitor) installedDBChanged() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.depth > 0 {
		return
	}
	if i.timer != nil {
		i.timer.Stop()
	}
	i.timer = time.AfterFunc(inhibitDebounce, i.fire)
}

func (i *inhibitor) fire() {
	i.mu.Lock()
	fn := i.onChanged
	i.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// stop cancels any pending debounce timer, for use at Unload.
func (i *inhibitor) stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
}
