package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"exam-submission-service/internal/app"
	"exam-submission-service/internal/domain"
)

// SubmissionStore implements app.SubmissionRepository. The UNIQUE (exam_id, student_id)
// constraint is what makes concurrent first submissions race-free.
type SubmissionStore struct {
	db *sql.DB
}

const submissionColumns = `id,user_id,student_id,exam_id,answers_json,submitted_at,score,status,is_graded,
	graded_by,graded_at,reviewed_by,reviewed_at,created_at,updated_at`

func (s *SubmissionStore) CreateSubmission(ctx context.Context, sub domain.Submission) error {
	answers, err := json.Marshal(answersOrEmpty(sub.Answers))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO submissions (`+submissionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		sub.ID, sub.UserID, sub.StudentID, sub.ExamID, string(answers), toMillis(sub.SubmittedAt), sub.Score,
		string(sub.Status), boolInt(sub.IsGraded), sub.GradedBy, nullMillis(sub.GradedAt), sub.ReviewedBy,
		nullMillis(sub.ReviewedAt), toMillis(sub.CreatedAt), toMillis(sub.UpdatedAt))
	if isUniqueViolation(err) {
		return domain.ErrDuplicateSubmission
	}
	return err
}

func (s *SubmissionStore) GetSubmission(ctx context.Context, id string) (domain.Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id=$1`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Submission{}, notFound("submission", id)
	}
	return sub, err
}

func (s *SubmissionStore) FindSubmission(ctx context.Context, examID, studentID string) (domain.Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions
		WHERE exam_id=$1 AND student_id=$2`, examID, studentID)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Submission{}, notFound("submission", examID+"/"+studentID)
	}
	return sub, err
}

// UpdateSubmission rewrites the mutable fields; the (exam, student) identity never changes.
func (s *SubmissionStore) UpdateSubmission(ctx context.Context, sub domain.Submission) error {
	answers, err := json.Marshal(answersOrEmpty(sub.Answers))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE submissions
		SET answers_json=$1, score=$2, status=$3, is_graded=$4, graded_by=$5, graded_at=$6,
		    reviewed_by=$7, reviewed_at=$8, updated_at=$9
		WHERE id=$10`,
		string(answers), sub.Score, string(sub.Status), boolInt(sub.IsGraded), sub.GradedBy, nullMillis(sub.GradedAt),
		sub.ReviewedBy, nullMillis(sub.ReviewedAt), toMillis(sub.UpdatedAt), sub.ID)
	if err != nil {
		return err
	}
	return checkAffected(res, "submission", sub.ID)
}

// ListSubmissions returns matching submissions in submission order.
func (s *SubmissionStore) ListSubmissions(ctx context.Context, filter app.SubmissionFilter) ([]domain.Submission, error) {
	var (
		where []string
		args  []any
	)
	if filter.ExamID != "" {
		args = append(args, filter.ExamID)
		where = append(where, "exam_id=$"+strconv.Itoa(len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		where = append(where, "student_id=$"+strconv.Itoa(len(args)))
	}
	query := `SELECT ` + submissionColumns + ` FROM submissions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY submitted_at, created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func scanSubmission(row scanner) (domain.Submission, error) {
	var (
		sub                         domain.Submission
		answersJSON, status         string
		submitted, created, updated int64
		graded                      int
		gradedAt, reviewedAt        sql.NullInt64
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.StudentID, &sub.ExamID, &answersJSON, &submitted, &sub.Score,
		&status, &graded, &sub.GradedBy, &gradedAt, &sub.ReviewedBy, &reviewedAt, &created, &updated); err != nil {
		return domain.Submission{}, err
	}
	if err := json.Unmarshal([]byte(answersJSON), &sub.Answers); err != nil {
		return domain.Submission{}, fmt.Errorf("submission %s answers: %w", sub.ID, err)
	}
	sub.Status = domain.SubmissionStatus(status)
	sub.IsGraded = graded != 0
	sub.SubmittedAt = fromMillis(submitted)
	sub.GradedAt, sub.ReviewedAt = timePtr(gradedAt), timePtr(reviewedAt)
	sub.CreatedAt, sub.UpdatedAt = fromMillis(created), fromMillis(updated)
	return sub, nil
}

func answersOrEmpty(a []domain.Answer) []domain.Answer {
	if a == nil {
		return []domain.Answer{}
	}
	return a
}
