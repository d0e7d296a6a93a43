// Package queue implements the durable transcription job queue. Jobs are
// plain JSON files under queue/pending and queue/failed; the directory a job
// lives in is its state, and the pending→failed transition is a single
// atomic rename. Everything is built from the same document-store and
// lock-manager primitives as the resource stores, so jobs survive restarts
// by construction.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oakheim/inkwell/internal/apperr"
	"github.com/oakheim/inkwell/internal/models"
	"github.com/oakheim/inkwell/internal/storage"
	"github.com/oakheim/inkwell/internal/store"
)

// Event kinds passed to the notifier.
const (
	EventComplete = "complete"
	EventFailed   = "failed"
)

// lockKey serializes every mutation of the queue directories.
const lockKey = "queue"

// Notifier receives job lifecycle events. The event broker satisfies it.
type Notifier interface {
	PublishJobEvent(pageID, kind string, payload map[string]any)
}

// Options tunes the queue's retry and cleanup behavior.
type Options struct {
	// MaxRetries is the attempt ceiling; a job whose attempt count
	// reaches it is moved to the failed directory.
	MaxRetries int
	// BackoffUnit is the base delay; after n failed attempts the worker
	// waits BackoffUnit * 2^n before resuming.
	BackoffUnit time.Duration
	// CleanupInterval is how often failed jobs are swept.
	CleanupInterval time.Duration
	// FailedMaxAge is the age past which a failed job is swept.
	FailedMaxAge time.Duration
}

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{
		MaxRetries:      3,
		BackoffUnit:     time.Second,
		CleanupInterval: time.Hour,
		FailedMaxAge:    7 * 24 * time.Hour,
	}
}

// Queue is the transcription worker. Construct one per data root with New,
// start it with Init, stop it with Stop. Processing is strictly serial: at
// most one job is in flight at a time, draining oldest-first.
type Queue struct {
	fs          *storage.FS
	layout      storage.Layout
	locks       *storage.KeyedLock
	pages       *store.PageStore
	transcriber Transcriber
	notify      Notifier
	log         *slog.Logger
	opts        Options

	mu         sync.Mutex
	started    bool
	processing bool
	cancel     context.CancelFunc
	wake       chan struct{}
	wg         sync.WaitGroup
}

// New creates a Queue. notify may be nil.
func New(fs *storage.FS, locks *storage.KeyedLock, pages *store.PageStore, transcriber Transcriber, notify Notifier, opts Options, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultOptions().MaxRetries
	}
	if opts.BackoffUnit <= 0 {
		opts.BackoffUnit = DefaultOptions().BackoffUnit
	}
	return &Queue{
		fs:          fs,
		locks:       locks,
		pages:       pages,
		transcriber: transcriber,
		notify:      notify,
		log:         log,
		opts:        opts,
	}
}

// Init starts the worker. It is idempotent: a second call on a running
// queue is a no-op. It performs one cleanup pass, schedules periodic
// cleanup, and resumes any jobs already sitting in the pending directory
// from a prior run.
func (q *Queue) Init() error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return nil
	}
	if err := q.fs.EnsureDir(q.layout.PendingDir()); err != nil {
		q.mu.Unlock()
		return err
	}
	if err := q.fs.EnsureDir(q.layout.FailedDir()); err != nil {
		q.mu.Unlock()
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	q.started = true
	q.cancel = cancel
	q.wake = make(chan struct{}, 1)
	q.mu.Unlock()

	if q.opts.FailedMaxAge > 0 {
		if n, err := q.Cleanup(q.opts.FailedMaxAge); err != nil {
			q.log.Warn("queue: startup cleanup failed", slog.String("error", err.Error()))
		} else if n > 0 {
			q.log.Info("queue: startup cleanup", slog.Int("removed", n))
		}
	}

	q.wg.Add(1)
	go q.worker(ctx)
	if q.opts.CleanupInterval > 0 && q.opts.FailedMaxAge > 0 {
		q.wg.Add(1)
		go q.cleanupLoop(ctx)
	}
	q.kick()
	return nil
}

// Stop cancels the backoff timer and the periodic cleanup and waits for the
// worker to park. It never deletes persisted job files: stopping is a
// scheduling action, and a later Init resumes exactly where processing left
// off.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	cancel := q.cancel
	q.mu.Unlock()

	cancel()
	q.wg.Wait()

	q.mu.Lock()
	q.processing = false
	q.mu.Unlock()
}

// Enqueue creates a pending job for the page. If a pending job for the same
// page already exists and force is false, that job is returned unchanged. If
// force is true the existing job is replaced by a fresh one with zero
// attempts. The page's transcription status is always (re)written to
// pending.
func (q *Queue) Enqueue(pageID, notebookID string, force bool) (*models.Job, error) {
	var job *models.Job
	err := q.locks.WithLock(lockKey, func() error {
		name, existing, err := q.findJob(q.layout.PendingDir(), pageID)
		if err != nil {
			return err
		}
		if existing != nil && !force {
			job = existing
			return nil
		}
		if existing != nil {
			if err := q.fs.Remove(q.layout.PendingDir() + "/" + name); err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		j := &models.Job{
			PageID:     pageID,
			NotebookID: notebookID,
			CreatedAt:  now,
			Force:      force,
		}
		if err := q.fs.WriteJSON(q.layout.PendingDir()+"/"+q.layout.JobFileName(now, pageID), j); err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	q.setStatus(pageID, &models.Transcription{Status: models.TranscriptionPending})
	q.kick()
	return job, nil
}

// Retry moves a failed job back to pending with attempts and error cleared,
// and resumes processing if the worker is idle.
func (q *Queue) Retry(pageID string) (*models.Job, error) {
	var job *models.Job
	err := q.locks.WithLock(lockKey, func() error {
		name, failed, err := q.findJob(q.layout.FailedDir(), pageID)
		if err != nil {
			return err
		}
		if failed == nil {
			return fmt.Errorf("failed job for page %s: %w", pageID, apperr.ErrNotFound)
		}
		failed.Attempts = 0
		failed.LastError = ""
		if err := q.fs.Rename(q.layout.FailedDir()+"/"+name, q.layout.PendingDir()+"/"+name); err != nil {
			return err
		}
		if err := q.fs.WriteJSON(q.layout.PendingDir()+"/"+name, failed); err != nil {
			return err
		}
		job = failed
		return nil
	})
	if err != nil {
		return nil, err
	}
	q.setStatus(pageID, &models.Transcription{Status: models.TranscriptionPending})
	q.kick()
	return job, nil
}

// ListPending returns pending jobs in processing order (oldest first).
func (q *Queue) ListPending() ([]models.Job, error) {
	return q.listDir(q.layout.PendingDir())
}

// ListFailed enumerates the dead-letter directory, oldest first.
func (q *Queue) ListFailed() ([]models.Job, error) {
	return q.listDir(q.layout.FailedDir())
}

// Cleanup removes failed jobs whose file age exceeds maxAge and reports how
// many were removed.
func (q *Queue) Cleanup(maxAge time.Duration) (int, error) {
	removed := 0
	err := q.locks.WithLock(lockKey, func() error {
		names, err := q.fs.ListDir(q.layout.FailedDir())
		if err != nil {
			return err
		}
		cutoff := time.Now().Add(-maxAge)
		for _, name := range names {
			rel := q.layout.FailedDir() + "/" + name
			mod, err := q.fs.ModTime(rel)
			if err != nil {
				q.log.Warn("queue: cleanup stat failed", slog.String("job", name), slog.String("error", err.Error()))
				continue
			}
			if mod.Before(cutoff) {
				if err := q.fs.Remove(rel); err != nil {
					q.log.Warn("queue: cleanup remove failed", slog.String("job", name), slog.String("error", err.Error()))
					continue
				}
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// Stats describes the queue's current shape for inspection endpoints.
type Stats struct {
	Pending    int  `json:"pending"`
	Failed     int  `json:"failed"`
	Processing bool `json:"processing"`
}

// Stats returns pending/failed counts and whether a job is in flight.
func (q *Queue) Stats() (Stats, error) {
	pending, err := q.fs.ListDir(q.layout.PendingDir())
	if err != nil {
		return Stats{}, err
	}
	failed, err := q.fs.ListDir(q.layout.FailedDir())
	if err != nil {
		return Stats{}, err
	}
	q.mu.Lock()
	processing := q.processing
	q.mu.Unlock()
	return Stats{Pending: len(pending), Failed: len(failed), Processing: processing}, nil
}

// kick wakes the worker if it is parked. Non-blocking: a pending wake-up is
// enough, the worker drains everything it finds.
func (q *Queue) kick() {
	q.mu.Lock()
	wake := q.wake
	q.mu.Unlock()
	if wake == nil {
		return
	}
	select {
	case wake <- struct{}{}:
	default:
	}
}

func (q *Queue) setProcessing(v bool) {
	q.mu.Lock()
	q.processing = v
	q.mu.Unlock()
}

// worker drains the pending directory serially, parking on the wake channel
// when it is empty.
func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		name, job := q.nextPending()
		if job == nil {
			q.setProcessing(false)
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}
		q.setProcessing(true)
		q.process(ctx, name, job)
		select {
		case <-ctx.Done():
			q.setProcessing(false)
			return
		default:
		}
	}
}

// nextPending returns the oldest pending job. The filename's timestamp
// prefix makes lexicographic order equal creation order. A pending file that
// cannot be parsed is relocated to the failed directory so it stays
// inspectable instead of wedging the loop.
func (q *Queue) nextPending() (string, *models.Job) {
	names, err := q.fs.ListDir(q.layout.PendingDir())
	if err != nil {
		q.log.Warn("queue: list pending failed", slog.String("error", err.Error()))
		return "", nil
	}
	for _, name := range names {
		rel := q.layout.PendingDir() + "/" + name
		job, err := storage.ReadJSON[models.Job](q.fs, rel)
		if err != nil {
			q.log.Warn("queue: read job failed", slog.String("job", name), slog.String("error", err.Error()))
			continue
		}
		if job == nil {
			q.log.Warn("queue: quarantining unreadable job", slog.String("job", name))
			if err := q.fs.Rename(rel, q.layout.FailedDir()+"/"+name); err != nil {
				q.log.Warn("queue: quarantine failed", slog.String("job", name), slog.String("error", err.Error()))
			}
			continue
		}
		return name, job
	}
	return "", nil
}

// process runs one job to a terminal or retryable outcome.
func (q *Queue) process(ctx context.Context, name string, job *models.Job) {
	q.setStatus(job.PageID, &models.Transcription{Status: models.TranscriptionProcessing})

	content, err := q.transcriber.Transcribe(ctx, job.PageID)
	if err == nil {
		q.complete(name, job, content)
		return
	}
	if ctx.Err() != nil {
		// Shutdown mid-attempt: leave the job file as-is for the next Init.
		return
	}

	job.Attempts++
	job.LastError = err.Error()
	now := time.Now().UTC()

	if job.Attempts < q.opts.MaxRetries {
		q.log.Warn("queue: attempt failed, will retry",
			slog.String("page", job.PageID),
			slog.Int("attempts", job.Attempts),
			slog.String("error", err.Error()))
		if !q.rewritePending(name, job) {
			// Replaced by a forced re-enqueue mid-attempt; the fresh job
			// owns the page now, drop this attempt's state.
			return
		}
		q.setStatus(job.PageID, &models.Transcription{
			Status:      models.TranscriptionPending,
			LastAttempt: &now,
			LastError:   job.LastError,
		})
		q.backoff(ctx, job.Attempts)
		return
	}

	moved := false
	lerr := q.locks.WithLock(lockKey, func() error {
		if !q.pendingJobCurrent(name, job) {
			return nil
		}
		if werr := q.fs.WriteJSON(q.layout.PendingDir()+"/"+name, job); werr != nil {
			return werr
		}
		// The state transition is this one rename; if it fails the job
		// is still pending and will be picked up again.
		if rerr := q.fs.Rename(q.layout.PendingDir()+"/"+name, q.layout.FailedDir()+"/"+name); rerr != nil {
			return rerr
		}
		moved = true
		return nil
	})
	if lerr != nil {
		q.log.Warn("queue: dead-letter move failed", slog.String("job", name), slog.String("error", lerr.Error()))
	}
	if !moved {
		return
	}
	q.log.Error("queue: retry ceiling reached, dead-lettering",
		slog.String("page", job.PageID),
		slog.Int("attempts", job.Attempts),
		slog.String("error", err.Error()))
	q.setStatus(job.PageID, &models.Transcription{
		Status:      models.TranscriptionFailed,
		LastAttempt: &now,
		LastError:   job.LastError,
	})
	if q.notify != nil {
		q.notify.PublishJobEvent(job.PageID, EventFailed, map[string]any{"error": job.LastError})
	}
}

// pendingJobCurrent reports whether the pending file at name still holds the
// job this attempt started from, matched by page identity and creation time.
// A forced re-enqueue removes or replaces the file under the queue lock while
// an attempt is in flight; the stale worker state must not be written back
// next to (or over) the replacement. Callers hold the queue lock.
func (q *Queue) pendingJobCurrent(name string, job *models.Job) bool {
	cur, err := storage.ReadJSON[models.Job](q.fs, q.layout.PendingDir()+"/"+name)
	if err != nil || cur == nil {
		return false
	}
	return cur.PageID == job.PageID && cur.CreatedAt.Equal(job.CreatedAt)
}

// rewritePending persists the job's attempt count and error back to its
// pending file, unless the job was replaced mid-attempt. Reports whether the
// job is still current.
func (q *Queue) rewritePending(name string, job *models.Job) bool {
	current := false
	err := q.locks.WithLock(lockKey, func() error {
		if !q.pendingJobCurrent(name, job) {
			return nil
		}
		current = true
		return q.fs.WriteJSON(q.layout.PendingDir()+"/"+name, job)
	})
	if err != nil {
		q.log.Warn("queue: rewrite job failed", slog.String("job", name), slog.String("error", err.Error()))
	}
	if !current {
		q.log.Debug("queue: job replaced during attempt, dropping stale state", slog.String("job", name))
	}
	return current
}

// removeIfCurrent deletes the job file after a terminal outcome, unless it
// was replaced mid-attempt (in which case the replacement stays queued).
func (q *Queue) removeIfCurrent(name string, job *models.Job) {
	err := q.locks.WithLock(lockKey, func() error {
		if !q.pendingJobCurrent(name, job) {
			return nil
		}
		return q.fs.Remove(q.layout.PendingDir() + "/" + name)
	})
	if err != nil {
		q.log.Warn("queue: remove job failed", slog.String("job", name), slog.String("error", err.Error()))
	}
}

func (q *Queue) complete(name string, job *models.Job, content string) {
	if err := q.pages.WriteTranscriptionText(job.PageID, content); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// Page was deleted while the job was in flight; the job is
			// obsolete, drop it quietly.
			q.log.Debug("queue: page gone after transcription", slog.String("page", job.PageID))
			q.removeIfCurrent(name, job)
			return
		}
		q.log.Warn("queue: write transcription failed", slog.String("page", job.PageID), slog.String("error", err.Error()))
	}
	q.setStatus(job.PageID, &models.Transcription{Status: models.TranscriptionComplete})
	q.removeIfCurrent(name, job)
	q.log.Info("queue: transcription complete", slog.String("page", job.PageID))
	if q.notify != nil {
		q.notify.PublishJobEvent(job.PageID, EventComplete, map[string]any{"content": content})
	}
}

// backoff waits BackoffUnit * 2^attempts, or until shutdown. The delay is an
// in-memory timer, not a persisted next-attempt timestamp: a restart during
// the window retries immediately, favoring availability after restart.
func (q *Queue) backoff(ctx context.Context, attempts int) {
	delay := q.opts.BackoffUnit * (1 << attempts)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// setStatus is the best-effort status write. A page that no longer exists
// is ignorable (it may have been deleted concurrently); anything else is at
// least logged.
func (q *Queue) setStatus(pageID string, t *models.Transcription) {
	if err := q.pages.SetTranscription(pageID, t); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			q.log.Debug("queue: page gone, skipping status update", slog.String("page", pageID))
			return
		}
		q.log.Warn("queue: status update failed", slog.String("page", pageID), slog.String("error", err.Error()))
	}
}

// findJob scans dir for the job owned by pageID. Job identity is the page
// identifier, not the filename.
func (q *Queue) findJob(dir, pageID string) (string, *models.Job, error) {
	names, err := q.fs.ListDir(dir)
	if err != nil {
		return "", nil, err
	}
	for _, name := range names {
		if q.layout.JobPageID(name) != pageID {
			continue
		}
		job, err := storage.ReadJSON[models.Job](q.fs, dir+"/"+name)
		if err != nil {
			return "", nil, err
		}
		if job == nil {
			continue
		}
		return name, job, nil
	}
	return "", nil, nil
}

func (q *Queue) listDir(dir string) ([]models.Job, error) {
	names, err := q.fs.ListDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]models.Job, 0, len(names))
	for _, name := range names {
		job, err := storage.ReadJSON[models.Job](q.fs, dir+"/"+name)
		if err != nil {
			return nil, err
		}
		if job == nil {
			q.log.Warn("queue: skipping unreadable job in listing", slog.String("job", name))
			continue
		}
		out = append(out, *job)
	}
	return out, nil
}

// cleanupLoop sweeps the dead-letter directory on a fixed interval.
func (q *Queue) cleanupLoop(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.opts.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := q.Cleanup(q.opts.FailedMaxAge); err != nil {
				q.log.Warn("queue: periodic cleanup failed", slog.String("error", err.Error()))
			} else if n > 0 {
				q.log.Info("queue: periodic cleanup", slog.Int("removed", n))
			}
		}
	}
}
