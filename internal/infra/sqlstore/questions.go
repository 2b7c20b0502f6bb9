package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"exam-submission-service/internal/domain"
)

// QuestionStore implements app.QuestionRepository. Options are kept as a JSON array.
type QuestionStore struct {
	db *sql.DB
}

const questionColumns = `id,course_id,type,content,options_json,correct_answer,score,difficulty,created_at,updated_at`

func (s *QuestionStore) CreateQuestion(ctx context.Context, q domain.Question) error {
	opts, err := marshalOptions(q.Options)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO questions (`+questionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		q.ID, q.CourseID, string(q.Type), q.Content, opts, q.CorrectAnswer, q.Score, string(q.Difficulty),
		toMillis(q.CreatedAt), toMillis(q.UpdatedAt))
	return err
}

func (s *QuestionStore) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id=$1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, notFound("question", id)
	}
	return q, err
}

func (s *QuestionStore) UpdateQuestion(ctx context.Context, q domain.Question) error {
	opts, err := marshalOptions(q.Options)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE questions
		SET course_id=$1, type=$2, content=$3, options_json=$4, correct_answer=$5, score=$6, difficulty=$7, updated_at=$8
		WHERE id=$9`,
		q.CourseID, string(q.Type), q.Content, opts, q.CorrectAnswer, q.Score, string(q.Difficulty),
		toMillis(q.UpdatedAt), q.ID)
	if err != nil {
		return err
	}
	return checkAffected(res, "question", q.ID)
}

func (s *QuestionStore) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return checkAffected(res, "question", id)
}

// ListQuestions returns the questions of courseID, or all questions when it is empty.
func (s *QuestionStore) ListQuestions(ctx context.Context, courseID string) ([]domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions`
	var args []any
	if courseID != "" {
		query += ` WHERE course_id=$1`
		args = append(args, courseID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func scanQuestion(row scanner) (domain.Question, error) {
	var (
		q                domain.Question
		typ, difficulty  string
		optsJSON         string
		created, updated int64
	)
	if err := row.Scan(&q.ID, &q.CourseID, &typ, &q.Content, &optsJSON, &q.CorrectAnswer, &q.Score, &difficulty, &created, &updated); err != nil {
		return domain.Question{}, err
	}
	if err := json.Unmarshal([]byte(optsJSON), &q.Options); err != nil {
		return domain.Question{}, fmt.Errorf("question %s options: %w", q.ID, err)
	}
	q.Type = domain.QuestionType(typ)
	q.Difficulty = domain.Difficulty(difficulty)
	q.CreatedAt, q.UpdatedAt = fromMillis(created), fromMillis(updated)
	return q, nil
}

func marshalOptions(opts []string) (string, error) {
	if opts == nil {
		return "null", nil
	}
	buf, err := json.Marshal(opts)
	return string(buf), err
}
