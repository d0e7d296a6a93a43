package queue

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch starts an fsnotify watcher on the pending job directory and wakes
// the worker whenever a job file appears through some path other than
// Enqueue, such as an operator dropping a file in by hand or another tool
// writing one. Jobs are plain files on purpose; this keeps that door open.
// Runs until ctx is cancelled.
func Watch(ctx context.Context, q *Queue, pendingDir string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(pendingDir); err != nil {
		return err
	}
	log.Info("queue watcher: started", slog.String("dir", pendingDir))

	for {
		select {
		case <-ctx.Done():
			log.Info("queue watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".json") {
				continue
			}
			log.Debug("queue watcher: job file appeared", slog.String("path", ev.Name))
			q.kick()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("queue watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
