// Package detector finds faces and smiles in video frames.
package detector

import (
	"image"

	"gocv.io/x/gocv"
)

// Result is what a Detector reports for a single frame.
type Result struct {
	// Faces holds the detected face regions, possibly none.
	Faces []image.Rectangle `json:"faces"`

	// Smile is true when at least one smile was found inside at least one face.
	Smile bool `json:"smile"`
}

// Detector defines the interface for face/smile detection implementations.
type Detector interface {
	// Detect analyzes a video frame.
	Detect(frame *gocv.Mat) (Result, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds the cascade files and scan parameters.
type Config struct {
	FaceCascade  string
	SmileCascade string

	FaceScale     float64
	FaceNeighbors int
	FaceMinSize   int

	SmileScale     float64
	SmileNeighbors int
	SmileMinSize   int
}

// DefaultConfig returns parameters tuned for a webcam at 640x480.
func DefaultConfig() Config {
	return Config{
		FaceCascade:    "haarcascade_frontalface_default.xml",
		SmileCascade:   "haarcascade_smile.xml",
		FaceScale:      1.1,
		FaceNeighbors:  5,
		FaceMinSize:    50,
		SmileScale:     1.7,
		SmileNeighbors: 22,
		SmileMinSize:   25,
	}
}
