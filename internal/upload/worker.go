package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayusman/smilecast/internal/queue"
)

// Default worker timings.
const (
	DefaultPollTimeout = time.Second
	DefaultFileTimeout = 60 * time.Second
	DefaultStopTimeout = 5 * time.Second
	DefaultBackoff     = time.Second
)

var (
	// ErrStopTimeout is returned by Stop when the worker did not exit in time.
	ErrStopTimeout = errors.New("upload worker did not stop in time")
	// ErrStillStopping is returned by Start while a previous run is still
	// finishing its task.
	ErrStillStopping = errors.New("upload worker is still stopping")
)

// WorkerConfig configures a Worker. Zero values select the defaults.
type WorkerConfig struct {
	PollTimeout time.Duration
	FileTimeout time.Duration
	StopTimeout time.Duration
	Backoff     time.Duration
}

func (c *WorkerConfig) setDefaults() {
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.FileTimeout <= 0 {
		c.FileTimeout = DefaultFileTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
}

// Option customizes a Worker.
type Option func(*Worker)

// WithLedger makes the worker skip files whose contents were already
// uploaded and record every new upload.
func WithLedger(l Ledger) Option {
	return func(w *Worker) { w.ledger = l }
}

// Worker uploads submitted tasks one at a time on a background goroutine.
type Worker struct {
	cfg      WorkerConfig
	uploader Uploader
	ledger   Ledger
	queue    *queue.Queue[Task]
	log      zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	completed atomic.Int64
	failed    atomic.Int64
}

// NewWorker creates a stopped Worker.
func NewWorker(cfg WorkerConfig, uploader Uploader, logger zerolog.Logger, opts ...Option) *Worker {
	cfg.setDefaults()
	w := &Worker{
		cfg:      cfg,
		uploader: uploader,
		queue:    queue.New[Task](),
		log:      logger.With().Str("component", "upload").Logger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Submit queues a task without blocking.
func (w *Worker) Submit(t Task) {
	w.queue.Put(t)
}

// Pending returns the number of submitted tasks not yet completed.
func (w *Worker) Pending() int {
	return w.queue.Unfinished()
}

// Completed returns the number of tasks that uploaded every file.
func (w *Worker) Completed() int64 { return w.completed.Load() }

// Failed returns the number of tasks that ended with an error.
func (w *Worker) Failed() int64 { return w.failed.Load() }

// Start launches the worker goroutine. It is a no-op while running and
// returns ErrStillStopping if a goroutine left behind by a timed-out Stop
// has not exited yet.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	if w.done != nil {
		select {
		case <-w.done:
		default:
			return ErrStillStopping
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done
	w.running = true

	go w.run(ctx, done)
	return nil
}

// Stop asks the worker to exit after the task in progress and waits up to
// the stop timeout. Tasks still queued are left unprocessed.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-time.After(w.cfg.StopTimeout):
		w.log.Warn().Dur("timeout", w.cfg.StopTimeout).Msg("upload worker still busy, leaving it behind")
		return ErrStopTimeout
	}
}

// WaitForCompletion blocks until every submitted task has been processed
// or ctx ends.
func (w *Worker) WaitForCompletion(ctx context.Context) error {
	return w.queue.Join(ctx)
}

func (w *Worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		task, ok := w.queue.Get(ctx, w.cfg.PollTimeout)
		if !ok {
			continue
		}
		if err := w.handle(task); err != nil {
			w.log.Error().Err(err).Msg("upload worker error")
			sleep(ctx, w.cfg.Backoff)
		}
	}
}

// handle runs one task and guarantees the callback fires once and the task
// is acknowledged afterwards.
func (w *Worker) handle(task Task) (err error) {
	called := false
	finish := func(results []Result, err error) {
		if called {
			return
		}
		called = true
		if err != nil {
			w.failed.Add(1)
		} else {
			w.completed.Add(1)
		}
		if task.Callback != nil {
			task.Callback(results, err)
		}
	}

	defer w.queue.TaskDone()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered: %v", r)
			finish(nil, err)
		}
	}()

	results, uerr := w.process(task)
	finish(results, uerr)
	return nil
}

func (w *Worker) process(task Task) ([]Result, error) {
	if len(task.FilePaths) == 0 {
		return nil, ErrEmptyTask
	}

	authCtx, cancel := context.WithTimeout(context.Background(), w.cfg.FileTimeout)
	session, err := w.uploader.Authenticate(authCtx)
	cancel()
	if err != nil {
		w.log.Error().Err(err).Msg("authentication failed")
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	batchID := uuid.NewString()
	results := make([]Result, 0, len(task.FilePaths))
	for _, path := range task.FilePaths {
		r, err := w.uploadFile(session, batchID, path, task.FolderID)
		if err != nil {
			w.log.Error().Err(err).Str("file", path).Msg("upload failed")
			return nil, err
		}
		w.log.Info().Str("file", path).Str("id", r.ID).Str("link", r.Link).Msg("uploaded")
		results = append(results, r)
	}
	return results, nil
}

func (w *Worker) uploadFile(session Session, batchID, path, folderID string) (Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.FileTimeout)
	defer cancel()

	var checksum string
	if w.ledger != nil {
		sum, err := Checksum(path)
		if err != nil {
			return Result{}, fmt.Errorf("upload %s: %w", filepath.Base(path), err)
		}
		checksum = sum

		prev, ok, err := w.ledger.Lookup(ctx, checksum)
		if err != nil {
			w.log.Warn().Err(err).Str("file", path).Msg("ledger lookup failed")
		} else if ok {
			prev.FilePath = path
			w.log.Debug().Str("file", path).Str("id", prev.ID).Msg("already uploaded, skipping")
			return prev, nil
		}
	}

	f, err := session.Upload(ctx, path, folderID, ContentType(path))
	if err != nil {
		return Result{}, fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}
	r := Result{ID: f.ID, Name: f.Name, Link: f.Link, FilePath: path}

	if w.ledger != nil {
		if err := w.ledger.Record(ctx, checksum, batchID, r); err != nil {
			w.log.Warn().Err(err).Str("file", path).Msg("ledger record failed")
		}
	}
	return r, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Checksum returns the hex SHA-256 of a file's contents.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
