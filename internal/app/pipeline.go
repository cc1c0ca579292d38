package app

import (
	"os"

	"gocv.io/x/gocv"

	"github.com/ayusman/smilecast/internal/capture"
	"github.com/ayusman/smilecast/internal/detector"
	"github.com/ayusman/smilecast/internal/notify"
	"github.com/ayusman/smilecast/internal/smile"
	"github.com/ayusman/smilecast/internal/store"
	"github.com/ayusman/smilecast/internal/upload"
)

// processFrame runs one frame through detection and display. It returns
// true when the display asks to quit.
//
// Per frame:
//  1. detect faces and smiles (skipped while paused)
//  2. let the tracker decide whether the smile state changed
//  3. on a transition, capture the frame, notify and batch the upload
//  4. draw the overlay and show the frame
func (a *App) processFrame(frame *gocv.Mat) bool {
	var result detector.Result
	enabled := a.IsEnabled()

	if enabled {
		r, err := a.detector.Detect(frame)
		if err != nil {
			a.log.Warn().Err(err).Msg("detection failed")
		} else {
			result = r
			d := a.tracker.Decide(r.Smile, a.clock())
			if d.Accepted {
				a.onTransition(frame, d)
			}
		}

		a.mu.Lock()
		a.status.Frames++
		a.status.Faces = len(result.Faces)
		a.mu.Unlock()
	}

	overlay := capture.Overlay{
		Detected:  result.Smile,
		Smiling:   a.tracker.Smiling(),
		Paused:    !enabled,
		Faces:     result.Faces,
		Pending:   a.batcher.Len(),
		BatchSize: a.batcher.Size(),
	}
	overlay.Draw(frame)

	return a.display.Show(frame)
}

// onTransition captures the frame, queues the notification and hands the
// batch to the upload worker when it is full.
func (a *App) onTransition(frame *gocv.Mat, d smile.Decision) {
	a.log.Info().
		Bool("smiling", d.Smiling).
		Float64("at", d.At.Seconds()).
		Msg("smile state changed")

	jpeg, err := capture.EncodeJPEG(frame)
	if err != nil {
		a.log.Error().Err(err).Msg("encoding capture")
	}

	var path string
	if jpeg != nil {
		path, err = a.artifacts.Save(jpeg)
		if err != nil {
			a.log.Error().Err(err).Msg("saving capture")
			path = ""
		} else {
			a.batcher.Append(path)
		}
	}

	if a.store != nil {
		e := &store.Event{Detected: d.Smiling, Monotonic: d.At.Seconds(), ImagePath: path}
		if err := a.store.Events().Create(e); err != nil {
			a.log.Warn().Err(err).Msg("recording event")
		}
	}

	switch {
	case d.Smiling:
		a.queue.Notify(notify.NewSmileStatus(true, d.At, jpeg))
	case a.cfg.Notify.OnEveryTransition:
		a.queue.Notify(notify.NewSmileStatus(false, d.At, nil))
	}

	if a.batcher.ShouldFlush() {
		a.submitBatch()
	}

	a.mu.Lock()
	a.status.Smiling = d.Smiling
	a.status.LastTransition = d.At.Seconds()
	a.status.Transitions++
	a.status.PendingCaptures = a.batcher.Len()
	if path != "" {
		a.status.LastCapture = path
	}
	a.mu.Unlock()
	a.notifyObservers()
}

func (a *App) submitBatch() {
	paths := a.batcher.Flush()
	if len(paths) == 0 {
		return
	}

	a.mu.Lock()
	a.status.PendingCaptures = 0
	a.mu.Unlock()

	a.log.Info().Int("files", len(paths)).Msg("submitting upload batch")
	a.worker.Submit(upload.Task{
		FilePaths: paths,
		FolderID:  a.cfg.Upload.FolderID,
		Callback:  a.uploadDone,
	})
}

// uploadDone runs on the upload worker goroutine. Local files are removed
// only when the whole batch reached the drive.
func (a *App) uploadDone(results []upload.Result, err error) {
	if err != nil {
		a.log.Error().Err(err).Msg("upload batch failed, keeping local files")
		a.notifyObservers()
		return
	}

	for _, r := range results {
		if err := os.Remove(r.FilePath); err != nil && !os.IsNotExist(err) {
			a.log.Warn().Err(err).Str("file", r.FilePath).Msg("removing uploaded file")
			continue
		}
		a.log.Debug().Str("file", r.FilePath).Str("link", r.Link).Msg("removed uploaded file")
	}
	a.notifyObservers()
}

func (a *App) notifyObservers() {
	a.mu.RLock()
	observers := a.observers
	a.mu.RUnlock()
	if len(observers) == 0 {
		return
	}

	s := a.Status()
	for _, fn := range observers {
		fn(s)
	}
}
