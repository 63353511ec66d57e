package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayusman/facegate/internal/identity"
)

// DescriptorRepository stores the reference descriptor set of each enrollment.
type DescriptorRepository struct {
	db *sql.DB
}

// Descriptors returns the descriptor repository for this store.
func (s *Store) Descriptors() *DescriptorRepository {
	return &DescriptorRepository{db: s.db}
}

// Replace stores set as the enrollment's reference descriptors in a single
// transaction and updates its capture count.
func (r *DescriptorRepository) Replace(enrollmentID string, set []identity.Descriptor) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		return replaceDescriptors(tx, enrollmentID, set)
	})
}

func replaceDescriptors(tx *sql.Tx, enrollmentID string, set []identity.Descriptor) error {
	result, err := tx.Exec(`UPDATE enrollments SET captures = ?, updated_at = ? WHERE id = ?`,
		len(set), time.Now(), enrollmentID)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM enrollment_descriptors WHERE enrollment_id = ?`, enrollmentID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO enrollment_descriptors (enrollment_id, position, vector) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, d := range set {
		vector, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode descriptor %d: %w", i, err)
		}
		if _, err := stmt.Exec(enrollmentID, i, string(vector)); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the enrollment's reference descriptors in capture order.
func (r *DescriptorRepository) Get(enrollmentID string) ([]identity.Descriptor, error) {
	rows, err := r.db.Query(
		`SELECT vector FROM enrollment_descriptors
		 WHERE enrollment_id = ?
		 ORDER BY position`,
		enrollmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var set []identity.Descriptor
	for rows.Next() {
		var vector string
		if err := rows.Scan(&vector); err != nil {
			return nil, err
		}
		var d identity.Descriptor
		if err := json.Unmarshal([]byte(vector), &d); err != nil {
			return nil, fmt.Errorf("decode descriptor: %w", err)
		}
		set = append(set, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return set, nil
}
