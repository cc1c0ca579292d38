package capture

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// EncodeJPEG re-encodes a frame as JPEG bytes. The same bytes are written
// to disk and embedded in notifications.
func EncodeJPEG(frame *gocv.Mat) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	// GetBytes points into C memory that Close frees.
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}
