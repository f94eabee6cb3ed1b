package mpd

import (
	"sync"

	"github.com/fhs/gompd/v2/mpd"
)

// Watcher delivers idle notifications from a dedicated connection.
//
// gompd blocks its idle goroutine on unbuffered sends, so events and errors
// are drained here until it exits, even after the consumer has stopped reading.
type Watcher struct {
	w      *mpd.Watcher
	events chan string
	errs   chan error
	done   chan struct{}
	once   sync.Once
}

func newWatcher(w *mpd.Watcher) *Watcher {
	watcher := &Watcher{
		w:      w,
		events: make(chan string, len(Subsystems)),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	go watcher.forward()
	return watcher
}

func (w *Watcher) forward() {
	defer close(w.events)

	events, errs := w.w.Event, w.w.Error
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			select {
			case w.events <- ev:
			case <-w.done:
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			// Only the first error matters; the session ends on it.
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

// Events returns changed subsystem names. It is closed once the watcher stops.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Errors returns idle connection failures.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Close sends noidle and closes the idle connection.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.w.Close()
	})
	return err
}
