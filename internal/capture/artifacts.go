package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Default artifact names.
const (
	DefaultLatestName = "smile_detected.jpg"
	DefaultPrefix     = "smile_detected"
)

// Artifacts writes captured JPEGs to an output directory: a fixed "latest"
// file that is overwritten every time, and a numbered copy per capture
// that is kept until it has been uploaded.
type Artifacts struct {
	dir    string
	latest string
	prefix string
	mu     sync.Mutex
	next   int
}

// NewArtifacts creates the output directory if needed and resumes numbering
// after the highest numbered file already present.
func NewArtifacts(dir string) (*Artifacts, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	a := &Artifacts{
		dir:    dir,
		latest: DefaultLatestName,
		prefix: DefaultPrefix,
	}

	existing, err := a.Numbered()
	if err != nil {
		return nil, err
	}
	a.next = 1
	for _, p := range existing {
		if n, ok := a.number(filepath.Base(p)); ok && n >= a.next {
			a.next = n + 1
		}
	}

	return a, nil
}

// Save writes data to the latest file and to the next numbered file.
// It returns the numbered path.
func (a *Artifacts) Save(data []byte) (string, error) {
	a.mu.Lock()
	n := a.next
	a.next++
	a.mu.Unlock()

	if err := os.WriteFile(a.LatestPath(), data, 0644); err != nil {
		return "", fmt.Errorf("write latest image: %w", err)
	}

	numbered := filepath.Join(a.dir, fmt.Sprintf("%s%d.jpg", a.prefix, n))
	if err := os.WriteFile(numbered, data, 0644); err != nil {
		return "", fmt.Errorf("write numbered image: %w", err)
	}

	return numbered, nil
}

// LatestPath returns the path of the overwritten latest image.
func (a *Artifacts) LatestPath() string {
	return filepath.Join(a.dir, a.latest)
}

// Dir returns the output directory.
func (a *Artifacts) Dir() string {
	return a.dir
}

// Numbered lists numbered images in the output directory in capture order.
func (a *Artifacts) Numbered() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("read output directory: %w", err)
	}

	type numberedFile struct {
		n    int
		path string
	}
	var files []numberedFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, ok := a.number(e.Name()); ok {
			files = append(files, numberedFile{n: n, path: filepath.Join(a.dir, e.Name())})
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

// number parses "<prefix><N>.jpg".
func (a *Artifacts) number(name string) (int, bool) {
	if !strings.HasPrefix(name, a.prefix) || !strings.HasSuffix(name, ".jpg") {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, a.prefix), ".jpg")
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
