package backend

import (
	"os"
	"time"
)

// filePollInterval is how often the config watch checks mtime. No
// example repo in the corpus pulls in an inotify-style watcher
// library (e.g. fsnotify), and a single config file's mtime is cheap
// enough to poll; see DESIGN.md.
const filePollInterval = 2 * time.Second

// fileWatcher polls a single file's mtime and fires onChange
// (dispatched on its own goroutine, per spec §4.E: "changes fire a
// file-changed callback on the backend's thread") whenever it moves
// forward.
type fileWatcher struct {
	path     string
	onChange func()

	stopCh chan struct{}
}

func newFileWatcher(path string, onChange func()) (*fileWatcher, error) {
	info, err := os.Stat(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	var last time.Time
	if info != nil {
		last = info.ModTime()
	}

	w := &fileWatcher{path: path, onChange: onChange, stopCh: make(chan struct{})}
	go w.run(last)
	return w, nil
}

func (w *fileWatcher) run(last time.Time) {
	ticker := time.NewTicker(filePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			info, err := os.Stat(w.path)
			if err != nil {
				continue
			}
			if info.ModTime().After(last) {
				last = info.ModTime()
				w.onChange()
			}
		}
	}
}

func (w *fileWatcher) stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
}
