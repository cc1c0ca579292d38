package detector

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It returns scripted results in order, repeating the last one once the
// script is exhausted.
type MockDetector struct {
	mu      sync.Mutex
	results []Result
	index   int
	err     error
	calls   int
}

// NewMockDetector creates a new MockDetector that reports no faces.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetResults replaces the scripted results and restarts from the first one.
func (m *MockDetector) SetResults(results ...Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = results
	m.index = 0
}

// SetSmiles scripts one result per value, with a single face on each smiling frame.
func (m *MockDetector) SetSmiles(smiles ...bool) {
	results := make([]Result, len(smiles))
	for i, s := range smiles {
		if s {
			results[i] = SmilingFace()
		}
	}
	m.SetResults(results...)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the next scripted result or the configured error.
func (m *MockDetector) Detect(frame *gocv.Mat) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return Result{}, m.err
	}
	if len(m.results) == 0 {
		return Result{}, nil
	}

	r := m.results[m.index]
	if m.index < len(m.results)-1 {
		m.index++
	}
	return r, nil
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// SmilingFace returns a result with one centered face and a smile.
func SmilingFace() Result {
	return Result{
		Faces: []image.Rectangle{image.Rect(220, 140, 420, 340)},
		Smile: true,
	}
}
