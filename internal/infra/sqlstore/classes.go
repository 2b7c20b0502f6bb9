package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

// ClassRegistry implements app.ClassRegistry over the class_enrollments table.
type ClassRegistry struct {
	db *sql.DB
}

// EnrollStudents adds studentIDs to classID; existing enrollments are kept.
func (r *ClassRegistry) EnrollStudents(ctx context.Context, classID string, studentIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range studentIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO class_enrollments (class_id, student_id)
			VALUES ($1,$2) ON CONFLICT (class_id, student_id) DO NOTHING`, classID, id); err != nil {
			return fmt.Errorf("enroll %s in %s: %w", id, classID, err)
		}
	}
	return tx.Commit()
}

func (r *ClassRegistry) ClassesOf(ctx context.Context, studentID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT class_id FROM class_enrollments
		WHERE student_id=$1 ORDER BY class_id`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
