// Package watch implements --watch PATH mode: re-render a scene file
// from scratch every time it is written, with no state carried
// between renders. Grounded on the teacher's
// internal/runtime/vfs.FSNotifyWatcher, which adapts a single
// *fsnotify.Watcher into a typed event channel; this package keeps
// that shape but narrows the event surface to "file was written" and
// drives a caller-supplied render callback directly instead of
// feeding a virtual filesystem.
package watch

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
)

// RenderFunc renders the current contents of the watched file. It is
// called once immediately, then again after every write or create
// event, and is expected to perform a complete, independent render: no
// output of one call may influence the next.
type RenderFunc func(contents []byte) error

// Run watches path and calls render once up front and again after
// every write/create event on path, until stop is closed or render
// returns an error (which Run then returns). Run blocks until one of
// those happens.
func Run(path string, stop <-chan struct{}, render RenderFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	if err := renderFile(path, render); err != nil {
		return err
	}

	for {
		select {
		case <-stop:
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if err := renderFile(path, render); err != nil {
				return err
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			return fmt.Errorf("watching %s: %w", path, err)
		}
	}
}

func renderFile(path string, render RenderFunc) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	return render(contents)
}
