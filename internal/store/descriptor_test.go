package store

import (
	"errors"
	"testing"

	"github.com/ayusman/facegate/internal/identity"
)

func TestDescriptorRepository_ReplaceAndGet(t *testing.T) {
	s := newTestStore(t)
	createEnrollment(t, s, "enr-1", "alice")

	set := []identity.Descriptor{
		{0.1, 0.2, 0.3},
		{0.4, 0.5, 0.6},
		{0.7, 0.8, 0.9},
	}
	if err := s.Descriptors().Replace("enr-1", set); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	got, err := s.Descriptors().Get("enr-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Get() returned %d descriptors, want 3", len(got))
	}
	for i := range set {
		for j := range set[i] {
			if got[i][j] != set[i][j] {
				t.Errorf("descriptor %d[%d] = %v, want %v", i, j, got[i][j], set[i][j])
			}
		}
	}

	e, err := s.Enrollments().GetByID("enr-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if e.Captures != 3 {
		t.Errorf("Captures = %d, want 3", e.Captures)
	}
}

func TestDescriptorRepository_ReplaceOverwrites(t *testing.T) {
	s := newTestStore(t)
	createEnrollment(t, s, "enr-1", "alice")

	if err := s.Descriptors().Replace("enr-1", []identity.Descriptor{{1}, {2}}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if err := s.Descriptors().Replace("enr-1", []identity.Descriptor{{3}}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	got, err := s.Descriptors().Get("enr-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 1 || got[0][0] != 3 {
		t.Errorf("Get() = %v, want [[3]]", got)
	}
}

func TestDescriptorRepository_ReplaceUnknownEnrollment(t *testing.T) {
	s := newTestStore(t)

	err := s.Descriptors().Replace("missing", []identity.Descriptor{{1}})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Replace() error = %v, want ErrNotFound", err)
	}
}

func TestDescriptorRepository_GetEmpty(t *testing.T) {
	s := newTestStore(t)
	createEnrollment(t, s, "enr-1", "alice")

	got, err := s.Descriptors().Get("enr-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Get() = %v, want empty", got)
	}
}
