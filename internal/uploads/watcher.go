package uploads

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher invalidates cached uploads when their sidecars change on disk
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	logger  *zap.Logger
}

// NewWatcher starts watching the store directory
func NewWatcher(store *Store, logger *zap.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(store.Dir()); err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{store: store, watcher: w, logger: logger}, nil
}

// Run processes events until ctx is done or the watcher is closed. The
// optional callback is called with the id of each invalidated upload.
func (w *Watcher) Run(ctx context.Context, onInvalidate func(id string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			id, ok := sidecarID(event.Name)
			if !ok {
				continue
			}
			w.store.Invalidate(id)
			w.logger.Debug("Upload sidecar changed", zap.String("file_id", id), zap.String("op", event.Op.String()))
			if onInvalidate != nil {
				onInvalidate(id)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Upload watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
