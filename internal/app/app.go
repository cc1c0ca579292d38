// Package app runs the smile capture loop and owns every component it feeds.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/smilecast/internal/capture"
	"github.com/ayusman/smilecast/internal/config"
	"github.com/ayusman/smilecast/internal/detector"
	"github.com/ayusman/smilecast/internal/notify"
	"github.com/ayusman/smilecast/internal/smile"
	"github.com/ayusman/smilecast/internal/store"
	"github.com/ayusman/smilecast/internal/upload"
)

// NotifyDrainTimeout bounds how long shutdown waits for queued notifications.
const NotifyDrainTimeout = 2 * time.Second

// ErrAlreadyRunning is returned when Start or Run is called on a running App.
var ErrAlreadyRunning = errors.New("capture loop already running")

// Deps are the collaborators an App drives. Camera, Detector and Uploader
// are required.
type Deps struct {
	Camera   capture.Camera
	Detector detector.Detector
	Uploader upload.Uploader
	// Display defaults to capture.Headless.
	Display capture.Display
	// Store records events and the upload ledger when set.
	Store *store.Store
	// Clock returns monotonic time since the session started.
	Clock  func() time.Duration
	Logger zerolog.Logger
}

// App is the capture loop. It reads frames, decides smile transitions and
// hands captures to the notification sender and the upload worker.
type App struct {
	cfg       *config.Config
	camera    capture.Camera
	detector  detector.Detector
	display   capture.Display
	store     *store.Store
	clock     func() time.Duration
	log       zerolog.Logger
	artifacts *capture.Artifacts

	tracker *smile.Tracker
	batcher *upload.Batcher
	queue   *notify.Queue
	sender  *notify.Sender
	worker  *upload.Worker

	mu        sync.RWMutex
	enabled   bool
	running   bool
	status    Status
	observers []func(Status)
	cancel    context.CancelFunc
	doneCh    chan struct{}
	runErr    error
}

// New builds an App from cfg and deps. It creates the output directory.
func New(cfg *config.Config, deps Deps) (*App, error) {
	if deps.Camera == nil || deps.Detector == nil || deps.Uploader == nil {
		return nil, errors.New("app: camera, detector and uploader are required")
	}

	artifacts, err := capture.NewArtifacts(cfg.Output.Dir)
	if err != nil {
		return nil, err
	}

	clock := deps.Clock
	if clock == nil {
		start := time.Now()
		clock = func() time.Duration { return time.Since(start) }
	}
	display := deps.Display
	if display == nil {
		display = capture.Headless{}
	}

	log := deps.Logger.With().Str("component", "capture").Logger()

	var opts []upload.Option
	if deps.Store != nil {
		opts = append(opts, upload.WithLedger(deps.Store.Uploads()))
	}

	q := notify.NewQueue()
	a := &App{
		cfg:       cfg,
		camera:    deps.Camera,
		detector:  deps.Detector,
		display:   display,
		store:     deps.Store,
		clock:     clock,
		log:       log,
		artifacts: artifacts,
		tracker:   smile.NewTracker(cfg.Smile.Debounce()),
		batcher:   upload.NewBatcher(cfg.Upload.BatchSize),
		queue:     q,
		sender: notify.NewSender(notify.SenderConfig{
			URI:        cfg.Notify.URI,
			Persistent: cfg.Notify.Persistent,
		}, q, deps.Logger),
		worker: upload.NewWorker(upload.WorkerConfig{
			FileTimeout: cfg.Upload.Timeout,
			StopTimeout: cfg.Upload.StopTimeout,
		}, deps.Uploader, deps.Logger, opts...),
		enabled: true,
	}
	a.status = Status{
		Enabled:     true,
		BatchSize:   a.batcher.Size(),
		LatestImage: artifacts.LatestPath(),
	}
	return a, nil
}

// SetEnabled pauses or resumes detection. Frames are still displayed
// while paused.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.status.Enabled = enabled
	a.mu.Unlock()

	a.log.Info().Bool("enabled", enabled).Msg("detection toggled")
}

// IsEnabled reports whether detection is running.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// OnTransition registers fn to be called with the status after every
// accepted transition and upload outcome. fn runs on the goroutine that
// caused the change and must not block.
func (a *App) OnTransition(fn func(Status)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
}

// LatestPath returns the path of the overwritten latest capture.
func (a *App) LatestPath() string {
	return a.artifacts.LatestPath()
}

// Run opens the camera and processes frames on the calling goroutine
// until ctx is done, the display asks to quit, or the camera fails. It
// always shuts the background workers down before returning.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	a.running = true
	a.status.Running = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.status.Running = false
		a.mu.Unlock()
	}()

	if err := a.worker.Start(); err != nil {
		a.closeDevices()
		return fmt.Errorf("start upload worker: %w", err)
	}
	if err := a.camera.Open(); err != nil {
		_ = a.worker.Stop()
		a.closeDevices()
		return fmt.Errorf("open camera: %w", err)
	}

	a.sender.Start()
	a.log.Info().
		Str("output", a.artifacts.Dir()).
		Int("batch_size", a.batcher.Size()).
		Dur("debounce", a.tracker.Debounce()).
		Msg("capture loop started")

	err := a.loop(ctx)

	a.shutdown()
	return err
}

func (a *App) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		quit := a.processFrame(frame)
		frame.Close()
		if quit {
			a.log.Info().Msg("quit requested")
			return nil
		}
	}
}

// shutdown flushes the partial batch and stops the workers in order.
func (a *App) shutdown() {
	if a.batcher.Len() > 0 {
		a.submitBatch()
	}

	if d := a.cfg.Upload.DrainTimeout; d > 0 && a.worker.Pending() > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), d)
		if err := a.worker.WaitForCompletion(ctx); err != nil {
			a.log.Warn().Int("pending", a.worker.Pending()).Msg("uploads still pending at shutdown")
		}
		cancel()
	}
	if err := a.worker.Stop(); err != nil {
		a.log.Warn().Err(err).Msg("stopping upload worker")
	}

	ctx, cancel := context.WithTimeout(context.Background(), NotifyDrainTimeout)
	if err := a.queue.Wait(ctx); err != nil {
		a.log.Warn().Int("queued", a.queue.Len()).Msg("notifications still queued at shutdown")
	}
	cancel()
	a.sender.Stop()

	a.closeDevices()
	a.log.Info().Msg("capture loop stopped")
}

func (a *App) closeDevices() {
	if err := a.camera.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing camera")
	}
	if err := a.display.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing display")
	}
	if err := a.detector.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing detector")
	}
}

// Start runs the capture loop on a new goroutine. Use it only with a
// display that does not need the main thread.
func (a *App) Start() error {
	a.mu.Lock()
	if a.running || a.cancel != nil {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.doneCh = make(chan struct{})
	done := a.doneCh
	a.mu.Unlock()

	go func() {
		defer close(done)
		err := a.Run(ctx)
		a.mu.Lock()
		a.runErr = err
		a.mu.Unlock()
	}()
	return nil
}

// Stop ends a loop started with Start and returns its error.
func (a *App) Stop() error {
	a.mu.Lock()
	cancel, done := a.cancel, a.doneCh
	a.cancel = nil
	a.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.runErr
}

// Done is closed when a loop started with Start exits.
func (a *App) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.doneCh
}
