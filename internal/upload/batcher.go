package upload

// Batcher accumulates captured file paths until a batch is full.
// It is owned by the capture loop and is not safe for concurrent use.
type Batcher struct {
	size    int
	pending []string
}

// NewBatcher creates a Batcher that is ready to flush at size paths.
// Sizes below one are treated as one.
func NewBatcher(size int) *Batcher {
	if size < 1 {
		size = 1
	}
	return &Batcher{size: size}
}

// Append adds a path to the pending batch.
func (b *Batcher) Append(path string) {
	b.pending = append(b.pending, path)
}

// ShouldFlush reports whether the pending batch has reached the batch size.
func (b *Batcher) ShouldFlush() bool {
	return len(b.pending) >= b.size
}

// Flush returns the pending paths in append order and empties the batch.
func (b *Batcher) Flush() []string {
	if len(b.pending) == 0 {
		return nil
	}
	out := b.pending
	b.pending = nil
	return out
}

// Len returns the number of pending paths.
func (b *Batcher) Len() int { return len(b.pending) }

// Size returns the configured batch size.
func (b *Batcher) Size() int { return b.size }
