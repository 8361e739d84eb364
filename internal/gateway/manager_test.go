package gateway

import (
	"errors"
	"fmt"
	"testing"
)

func TestManager_CreateAndGet(t *testing.T) {
	m := NewManager(5)
	if err := m.Create(&Session{StreamID: "s1", ConnID: "c1", SampleRate: 16000}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.ActiveCount() != 1 {
		t.Errorf("active: got %d, want 1", m.ActiveCount())
	}
	s, ok := m.Get("s1")
	if !ok {
		t.Fatal("Get should find the session")
	}
	if s.ConnID != "c1" || s.CreatedAt.IsZero() {
		t.Errorf("got %+v", s)
	}
}

func TestManager_CapacityRejection(t *testing.T) {
	m := NewManager(2)
	for i := 0; i < 2; i++ {
		if err := m.Create(&Session{StreamID: fmt.Sprintf("s%d", i)}); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	err := m.Create(&Session{StreamID: "overflow"})
	if !errors.Is(err, ErrMaxSessions) {
		t.Errorf("got %v, want ErrMaxSessions", err)
	}
	if m.ActiveCount() != 2 {
		t.Errorf("rejection must not mutate the registry, active=%d", m.ActiveCount())
	}
	if _, ok := m.Get("overflow"); ok {
		t.Error("rejected session must not be registered")
	}
}

func TestManager_DuplicateRejection(t *testing.T) {
	m := NewManager(5)
	if err := m.Create(&Session{StreamID: "s1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := m.Create(&Session{StreamID: "s1"})
	if !errors.Is(err, ErrDuplicateSession) {
		t.Errorf("got %v, want ErrDuplicateSession", err)
	}
	if m.ActiveCount() != 1 {
		t.Errorf("active: got %d, want 1", m.ActiveCount())
	}
}

func TestManager_RemoveFreesSlot(t *testing.T) {
	m := NewManager(1)
	if err := m.Create(&Session{StreamID: "s1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	m.Remove("s1")
	if m.ActiveCount() != 0 {
		t.Errorf("active: got %d, want 0", m.ActiveCount())
	}
	// The freed slot and the freed stream id are both reusable.
	if err := m.Create(&Session{StreamID: "s1"}); err != nil {
		t.Errorf("Create after Remove: %v", err)
	}
}

func TestManager_RemoveIdempotent(t *testing.T) {
	m := NewManager(1)
	m.Remove("never-created")
	if err := m.Create(&Session{StreamID: "s1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	m.Remove("s1")
	m.Remove("s1")
	if m.ActiveCount() != 0 {
		t.Errorf("active: got %d, want 0", m.ActiveCount())
	}
}
