package store

import (
	"testing"

	"feedwire/pkg/feed"
)

func snap(pairs ...string) feed.Snapshot {
	var s feed.Snapshot
	for i := 0; i+1 < len(pairs); i += 2 {
		s = append(s, feed.Message{
			ID:         pairs[i],
			SenderName: "alice",
			Content:    pairs[i+1],
			Kind:       feed.KindText,
			CreatedAt:  int64(i),
		})
	}
	return s
}

func TestStore_ApplyPropagatesChange(t *testing.T) {
	t.Parallel()
	s := New()

	var notified []feed.Snapshot
	s.Subscribe(func(sn feed.Snapshot) { notified = append(notified, sn) })

	if !s.Apply(snap("m1", "hi")) {
		t.Fatal("Apply() = false, want true for first snapshot")
	}
	if len(notified) != 1 {
		t.Fatalf("subscribers notified %d times, want 1", len(notified))
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_ApplySuppressesIdenticalSnapshot(t *testing.T) {
	t.Parallel()
	s := New()

	var notifications int
	s.Subscribe(func(feed.Snapshot) { notifications++ })

	s.Apply(snap("m1", "hi", "m2", "yo"))

	// A structurally identical poll result must not propagate.
	if s.Apply(snap("m1", "hi", "m2", "yo")) {
		t.Error("Apply() = true for identical snapshot, want false")
	}
	if notifications != 1 {
		t.Errorf("subscribers notified %d times, want 1", notifications)
	}
}

func TestStore_ApplyDetectsMutation(t *testing.T) {
	t.Parallel()
	s := New()

	s.Apply(snap("m1", "hi"))
	if !s.Apply(snap("m1", "edited")) {
		t.Error("Apply() = false for mutated content, want true")
	}
	if got := s.Snapshot()[0].Content; got != "edited" {
		t.Errorf("canonical content = %q, want %q", got, "edited")
	}
}

func TestStore_ApplyDetectsDeletion(t *testing.T) {
	t.Parallel()
	s := New()

	s.Apply(snap("m1", "a", "m2", "b"))
	if !s.Apply(snap("m1", "a")) {
		t.Error("Apply() = false for deletion, want true")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_EmptyToEmptyIsUnchanged(t *testing.T) {
	t.Parallel()
	s := New()

	if s.Apply(feed.Snapshot{}) {
		t.Error("Apply(empty) on empty store = true, want false")
	}
}

func TestStore_SnapshotReturnsCopy(t *testing.T) {
	t.Parallel()
	s := New()
	s.Apply(snap("m1", "hi"))

	cp := s.Snapshot()
	cp[0].Content = "mutated"

	if s.Snapshot()[0].Content != "hi" {
		t.Error("mutating the returned snapshot leaked into the store")
	}
}
