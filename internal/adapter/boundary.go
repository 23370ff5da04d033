package adapter

// DefaultOlderSeenLimit is the soft-stop threshold used when a platform does
// not configure its own.
const DefaultOlderSeenLimit = 1000

// BoundaryTracker counts records older than the incremental start boundary.
// Streams are newest-first but not strictly ordered, so a single older record
// is not proof of exhaustion; crossing the limit is.
type BoundaryTracker struct {
	limit int
	seen  int
}

// NewBoundaryTracker builds a tracker with the given limit (values < 1 fall
// back to DefaultOlderSeenLimit).
func NewBoundaryTracker(limit int) *BoundaryTracker {
	if limit < 1 {
		limit = DefaultOlderSeenLimit
	}
	return &BoundaryTracker{limit: limit}
}

// ResumeBoundaryTracker continues counting from a previous page's cumulative
// count, so the limit applies to the whole run rather than a single page.
func ResumeBoundaryTracker(limit, seen int) *BoundaryTracker {
	tracker := NewBoundaryTracker(limit)
	if seen > 0 {
		tracker.seen = seen
	}
	return tracker
}

// Observe records one older-than-boundary item and reports whether the
// soft-stop threshold has been crossed.
func (b *BoundaryTracker) Observe() bool {
	b.seen++
	return b.seen > b.limit
}

// Seen returns how many older items were observed so far.
func (b *BoundaryTracker) Seen() int {
	return b.seen
}
