package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/ayusman/facegate/internal/identity"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Enrollment is a registered subject.
type Enrollment struct {
	ID        string
	Name      string
	Captures  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EnrollmentRepository provides CRUD operations for enrollments.
type EnrollmentRepository struct {
	db *sql.DB
}

// Enrollments returns the enrollment repository for this store.
func (s *Store) Enrollments() *EnrollmentRepository {
	return &EnrollmentRepository{db: s.db}
}

// Create inserts a new enrollment into the database.
func (r *EnrollmentRepository) Create(e *Enrollment) error {
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO enrollments (id, name, captures, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Captures, e.CreatedAt, e.UpdatedAt,
	)
	return err
}

// Save stores set as the reference set of the enrollment called name in one
// transaction. A missing enrollment is created with id newID; an existing one
// keeps its ID. Nothing is written if any step fails.
func (r *EnrollmentRepository) Save(newID, name string, set []identity.Descriptor) (*Enrollment, error) {
	var id string
	err := withTx(r.db, func(tx *sql.Tx) error {
		err := tx.QueryRow(`SELECT id FROM enrollments WHERE name = ?`, name).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			id = newID
			now := time.Now()
			_, err = tx.Exec(
				`INSERT INTO enrollments (id, name, captures, created_at, updated_at)
				 VALUES (?, ?, 0, ?, ?)`,
				id, name, now, now,
			)
		}
		if err != nil {
			return err
		}
		return replaceDescriptors(tx, id, set)
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(id)
}

// GetByID retrieves an enrollment by its ID.
func (r *EnrollmentRepository) GetByID(id string) (*Enrollment, error) {
	return r.getOne(`SELECT id, name, captures, created_at, updated_at FROM enrollments WHERE id = ?`, id)
}

// GetByName retrieves an enrollment by its name.
func (r *EnrollmentRepository) GetByName(name string) (*Enrollment, error) {
	return r.getOne(`SELECT id, name, captures, created_at, updated_at FROM enrollments WHERE name = ?`, name)
}

func (r *EnrollmentRepository) getOne(query string, arg any) (*Enrollment, error) {
	e := &Enrollment{}
	err := r.db.QueryRow(query, arg).Scan(&e.ID, &e.Name, &e.Captures, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// Latest returns the most recently updated enrollment.
func (r *EnrollmentRepository) Latest() (*Enrollment, error) {
	return r.getOne(`SELECT id, name, captures, created_at, updated_at
		 FROM enrollments WHERE captures > ? ORDER BY updated_at DESC LIMIT 1`, 0)
}

// List retrieves all enrollments, newest first.
func (r *EnrollmentRepository) List() ([]*Enrollment, error) {
	rows, err := r.db.Query(
		`SELECT id, name, captures, created_at, updated_at
		 FROM enrollments ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enrollments []*Enrollment
	for rows.Next() {
		e := &Enrollment{}
		if err := rows.Scan(&e.ID, &e.Name, &e.Captures, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return enrollments, nil
}

// Rename changes the name of an enrollment.
func (r *EnrollmentRepository) Rename(id, name string) error {
	result, err := r.db.Exec(
		`UPDATE enrollments SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now(), id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes an enrollment and, by cascade, its descriptors and verifications.
func (r *EnrollmentRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM enrollments WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
