package store

import (
	"database/sql"
	"time"
)

// Verification records the outcome of a verification session.
type Verification struct {
	ID           string
	EnrollmentID string
	Distance     float64
	Matched      bool
	CreatedAt    time.Time
}

// VerificationRepository stores verification history.
type VerificationRepository struct {
	db *sql.DB
}

// Verifications returns the verification repository for this store.
func (s *Store) Verifications() *VerificationRepository {
	return &VerificationRepository{db: s.db}
}

// Create inserts a verification record.
func (r *VerificationRepository) Create(v *Verification) error {
	v.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO verifications (id, enrollment_id, distance, matched, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		v.ID, v.EnrollmentID, v.Distance, v.Matched, v.CreatedAt,
	)
	return err
}

// ListByEnrollment returns an enrollment's verifications, newest first.
func (r *VerificationRepository) ListByEnrollment(enrollmentID string) ([]*Verification, error) {
	rows, err := r.db.Query(
		`SELECT id, enrollment_id, distance, matched, created_at
		 FROM verifications WHERE enrollment_id = ?
		 ORDER BY created_at DESC`,
		enrollmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*Verification
	for rows.Next() {
		v := &Verification{}
		var matched int
		if err := rows.Scan(&v.ID, &v.EnrollmentID, &v.Distance, &matched, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.Matched = matched == 1
		list = append(list, v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
