package adapter

import "testing"

func TestBoundaryTrackerCrossesLimit(t *testing.T) {
	t.Parallel()

	tracker := NewBoundaryTracker(3)
	for i := 0; i < 3; i++ {
		if tracker.Observe() {
			t.Fatalf("crossed limit after %d observations", i+1)
		}
	}
	if !tracker.Observe() {
		t.Fatal("expected limit crossed on 4th observation")
	}
	if tracker.Seen() != 4 {
		t.Fatalf("expected 4 seen, got %d", tracker.Seen())
	}
}

func TestResumeBoundaryTrackerContinuesCount(t *testing.T) {
	t.Parallel()

	tracker := ResumeBoundaryTracker(5, 4)
	if tracker.Observe() {
		t.Fatal("5th observation must not cross a limit of 5")
	}
	if !tracker.Observe() {
		t.Fatal("expected resumed count to cross the limit on the 6th observation")
	}
	if tracker.Seen() != 6 {
		t.Fatalf("expected 6 seen, got %d", tracker.Seen())
	}
}

func TestBoundaryTrackerDefaultLimit(t *testing.T) {
	t.Parallel()

	tracker := NewBoundaryTracker(0)
	for i := 0; i < DefaultOlderSeenLimit; i++ {
		if tracker.Observe() {
			t.Fatalf("default limit crossed too early at %d", i+1)
		}
	}
	if !tracker.Observe() {
		t.Fatal("expected default limit to be crossed")
	}
}
