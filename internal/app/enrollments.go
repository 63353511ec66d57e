package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ayusman/facegate/internal/cache"
	"github.com/ayusman/facegate/internal/identity"
	"github.com/ayusman/facegate/internal/store"
)

// ExportFilename is the attachment name used for downloaded descriptor documents.
const ExportFilename = "faceapi_get_face_id_descriptors.json"

// Enrollments manages stored enrollments and their reference sets, keeping
// the descriptor cache and the export directory in step with the database.
type Enrollments struct {
	store     *store.Store
	cache     *cache.DescriptorCache // optional
	exportDir string
}

// NewEnrollments creates an enrollment service. cache may be nil and an
// empty exportDir disables export files.
func NewEnrollments(s *store.Store, c *cache.DescriptorCache, exportDir string) *Enrollments {
	return &Enrollments{
		store:     s,
		cache:     c,
		exportDir: exportDir,
	}
}

// List returns all enrollments.
func (e *Enrollments) List() ([]*store.Enrollment, error) {
	return e.store.Enrollments().List()
}

// Get returns an enrollment by ID.
func (e *Enrollments) Get(id string) (*store.Enrollment, error) {
	return e.store.Enrollments().GetByID(id)
}

// Latest returns the most recently updated enrollment with descriptors.
func (e *Enrollments) Latest() (*store.Enrollment, error) {
	return e.store.Enrollments().Latest()
}

// Save stores set under name, creating the enrollment if needed. An existing
// enrollment with the same name has its reference set replaced.
func (e *Enrollments) Save(ctx context.Context, name string, set []identity.Descriptor) (*store.Enrollment, error) {
	if name == "" {
		return nil, fmt.Errorf("enrollment name is required")
	}

	enr, err := e.store.Enrollments().Save(uuid.New().String(), name, set)
	if err != nil {
		return nil, fmt.Errorf("save enrollment: %w", err)
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, enr.ID, set); err != nil {
			log.Printf("cache descriptors for %s: %v", enr.ID, err)
		}
	}
	return enr, nil
}

// References returns the reference set of an enrollment, preferring the cache.
func (e *Enrollments) References(ctx context.Context, id string) ([]identity.Descriptor, error) {
	if _, err := e.store.Enrollments().GetByID(id); err != nil {
		return nil, err
	}

	if e.cache != nil {
		set, err := e.cache.Get(ctx, id)
		if err != nil {
			log.Printf("descriptor cache: %v", err)
		} else if len(set) > 0 {
			return set, nil
		}
	}

	set, err := e.store.Descriptors().Get(id)
	if err != nil {
		return nil, err
	}

	if e.cache != nil && len(set) > 0 {
		if err := e.cache.Set(ctx, id, set); err != nil {
			log.Printf("cache descriptors for %s: %v", id, err)
		}
	}
	return set, nil
}

// Export returns the descriptor document of an enrollment.
func (e *Enrollments) Export(ctx context.Context, id string) ([]byte, error) {
	set, err := e.References(ctx, id)
	if err != nil {
		return nil, err
	}
	return identity.Export(set)
}

// WriteExport writes the enrollment's descriptor document to the export
// directory and returns its path.
func (e *Enrollments) WriteExport(ctx context.Context, id string) (string, error) {
	if e.exportDir == "" {
		return "", nil
	}

	data, err := e.Export(ctx, id)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(e.exportDir, 0755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(e.exportDir, id+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// Import parses a descriptor document and stores it under name. Malformed
// entries are skipped; the number of imported descriptors is returned.
func (e *Enrollments) Import(ctx context.Context, name string, data []byte) (*store.Enrollment, int, error) {
	set, err := identity.Import(data)
	if err != nil {
		return nil, 0, err
	}
	if len(set) == 0 {
		return nil, 0, fmt.Errorf("%w: no usable descriptors", identity.ErrInvalidDocument)
	}

	enr, err := e.Save(ctx, name, set)
	if err != nil {
		return nil, 0, err
	}
	return enr, len(set), nil
}

// Rename changes the name of an enrollment.
func (e *Enrollments) Rename(id, name string) (*store.Enrollment, error) {
	if name == "" {
		return nil, fmt.Errorf("enrollment name is required")
	}
	if err := e.store.Enrollments().Rename(id, name); err != nil {
		return nil, err
	}
	return e.store.Enrollments().GetByID(id)
}

// Delete removes an enrollment, its cached set and its export file.
func (e *Enrollments) Delete(ctx context.Context, id string) error {
	if err := e.store.Enrollments().Delete(id); err != nil {
		return err
	}

	if e.cache != nil {
		if err := e.cache.Invalidate(ctx, id); err != nil {
			log.Printf("invalidate descriptors for %s: %v", id, err)
		}
	}

	if e.exportDir != "" {
		path := filepath.Join(e.exportDir, id+".json")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("remove export %s: %v", path, err)
		}
	}
	return nil
}

// RecordVerification stores the outcome of a verification session.
func (e *Enrollments) RecordVerification(enrollmentID string, distance float64, matched bool) error {
	return e.store.Verifications().Create(&store.Verification{
		ID:           uuid.New().String(),
		EnrollmentID: enrollmentID,
		Distance:     distance,
		Matched:      matched,
	})
}

// Verifications returns the verification history of an enrollment.
func (e *Enrollments) Verifications(id string) ([]*store.Verification, error) {
	return e.store.Verifications().ListByEnrollment(id)
}
