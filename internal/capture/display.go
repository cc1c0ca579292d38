package capture

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Display shows processed frames and reports when the user asks to quit.
type Display interface {
	// Show renders the frame and returns true when the quit key was pressed.
	Show(frame *gocv.Mat) bool
	Close() error
}

// Window is a Display backed by an OpenCV HighGUI window.
// All calls must come from the goroutine that created it.
type Window struct {
	window  *gocv.Window
	quitKey int
}

// NewWindow opens a named window; pressing quitKey in it ends the session.
func NewWindow(name string, quitKey rune) *Window {
	return &Window{window: gocv.NewWindow(name), quitKey: int(quitKey)}
}

// Show displays the frame and polls the keyboard for one millisecond.
func (w *Window) Show(frame *gocv.Mat) bool {
	w.window.IMShow(*frame)
	key := w.window.WaitKey(1)
	return key >= 0 && key&0xFF == w.quitKey
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.window.Close()
}

// Headless is a Display that renders nothing and never asks to quit.
type Headless struct{}

func (Headless) Show(*gocv.Mat) bool { return false }
func (Headless) Close() error        { return nil }

var (
	smileColor   = color.RGBA{R: 255, A: 255}
	noSmileColor = color.RGBA{B: 255, A: 255}
	faceColor    = color.RGBA{G: 255, A: 255}
	infoColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Overlay is the status drawn over each displayed frame.
type Overlay struct {
	// Detected is this frame's raw smile reading and drives the status text.
	Detected bool
	// Smiling is the debounced state the capture loop acts on.
	Smiling   bool
	Paused    bool
	Faces     []image.Rectangle
	Pending   int
	BatchSize int
}

// Draw renders the overlay onto frame in place.
func (o Overlay) Draw(frame *gocv.Mat) {
	for _, f := range o.Faces {
		gocv.Rectangle(frame, f, faceColor, 2)
	}

	status, c := o.Status()
	gocv.PutText(frame, status, image.Pt(10, 30), gocv.FontHersheySimplex, 0.7, c, 2)

	if o.BatchSize > 0 {
		gocv.PutText(frame, o.BatchLine(), image.Pt(10, 60), gocv.FontHersheySimplex, 0.6, infoColor, 1)
	}
}

// Status returns the headline text and its color.
func (o Overlay) Status() (string, color.RGBA) {
	switch {
	case o.Paused:
		return "Paused", infoColor
	case o.Detected:
		return "Smile Detected!", smileColor
	default:
		return "No Smile", noSmileColor
	}
}

// BatchLine describes the pending batch and the debounced state.
func (o Overlay) BatchLine() string {
	state := "idle"
	if o.Smiling {
		state = "smiling"
	}
	return fmt.Sprintf("Batch: %d/%d (%s)", o.Pending, o.BatchSize, state)
}
