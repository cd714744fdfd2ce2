// internal/schema/watch.go
//
// formlab – Schema: override directory watcher.
//
// Context
//   Operators may drop YAML overrides into `forms.dir`.  Watch re-parses a
//   file whenever it is written or created and swaps the registry entry
//   only when the new definition passes Define.  A broken edit therefore
//   leaves the previous schema serving traffic.
//
//------------------------------------------------------------------------------

package schema

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch blocks until ctx is done.  onChange (optional) runs after each
// successful reload with the new schema and its file path; onError
// (optional) receives parse failures.
func Watch(ctx context.Context, dir string, onChange func(*FormSchema, string), onError func(error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("schema watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	zap.S().Infow("schema watcher online", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !isYAML(ev.Name) {
				continue
			}
			s, err := LoadFile(ev.Name)
			if err != nil {
				zap.S().Warnw("schema reload rejected", "file", ev.Name, "err", err)
				if onError != nil {
					onError(err)
				}
				continue
			}
			Register(s)
			zap.S().Infow("schema reloaded", "id", s.ID(), "file", ev.Name)
			if onChange != nil {
				onChange(s, ev.Name)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			zap.S().Warnw("schema watcher error", "err", err)
		}
	}
}
