package detector

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// ErrDetectorClosed is returned by Detect after Close.
var ErrDetectorClosed = errors.New("detector is closed")

// CascadeDetector implements Detector with two Haar cascades: one for faces
// on the whole frame and one for smiles inside each face.
type CascadeDetector struct {
	config Config
	faces  gocv.CascadeClassifier
	smiles gocv.CascadeClassifier
	mu     sync.Mutex
	closed bool
}

// NewCascadeDetector loads both cascade files.
func NewCascadeDetector(config Config) (*CascadeDetector, error) {
	for _, path := range []string{config.FaceCascade, config.SmileCascade} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("cascade file %s: %w", path, err)
		}
	}

	faces := gocv.NewCascadeClassifier()
	if !faces.Load(config.FaceCascade) {
		faces.Close()
		return nil, fmt.Errorf("failed to load face cascade %s", config.FaceCascade)
	}

	smiles := gocv.NewCascadeClassifier()
	if !smiles.Load(config.SmileCascade) {
		faces.Close()
		smiles.Close()
		return nil, fmt.Errorf("failed to load smile cascade %s", config.SmileCascade)
	}

	return &CascadeDetector{
		config: config,
		faces:  faces,
		smiles: smiles,
	}, nil
}

// Detect converts the frame to grayscale, finds faces, then looks for a
// smile inside each face region.
func (d *CascadeDetector) Detect(frame *gocv.Mat) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return Result{}, ErrDetectorClosed
	}
	if frame == nil || frame.Empty() {
		return Result{}, errors.New("empty frame")
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	faces := d.faces.DetectMultiScaleWithParams(
		gray,
		d.config.FaceScale,
		d.config.FaceNeighbors,
		0,
		image.Pt(d.config.FaceMinSize, d.config.FaceMinSize),
		image.Pt(0, 0),
	)

	result := Result{Faces: faces}
	for _, face := range faces {
		roi := gray.Region(face)
		smiles := d.smiles.DetectMultiScaleWithParams(
			roi,
			d.config.SmileScale,
			d.config.SmileNeighbors,
			0,
			image.Pt(d.config.SmileMinSize, d.config.SmileMinSize),
			image.Pt(0, 0),
		)
		roi.Close()

		if len(smiles) > 0 {
			result.Smile = true
			break
		}
	}

	return result, nil
}

// Close releases both classifiers.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	d.faces.Close()
	d.smiles.Close()
	return nil
}
