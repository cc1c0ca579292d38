// Command smilecast watches a webcam for smiles, pushes notifications over a
// websocket and uploads the captures to Google Drive.
package main

import (
	"os"
	"path/filepath"
)

func main() {
	Execute()
}

// dataDir returns ~/.smilecast, creating it if needed. It falls back to the
// working directory when the home directory is unknown.
func dataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	dir := filepath.Join(homeDir, ".smilecast")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "."
	}
	return dir
}

// findCascade resolves a cascade file. A path that exists is returned
// unchanged; otherwise the base name is searched in "data", "../data",
// ~/.smilecast/data and the OpenCV install locations. The original path is
// returned when nothing matches so the error names what was configured.
func findCascade(path string) string {
	if _, err := os.Stat(path); err == nil {
		return path
	}

	name := filepath.Base(path)
	candidates := []string{
		filepath.Join("data", name),
		filepath.Join("..", "data", name),
		filepath.Join(dataDir(), "data", name),
		filepath.Join("/usr/share/opencv4/haarcascades", name),
		filepath.Join("/usr/local/share/opencv4/haarcascades", name),
		filepath.Join("/opt/homebrew/share/opencv4/haarcascades", name),
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return path
}
