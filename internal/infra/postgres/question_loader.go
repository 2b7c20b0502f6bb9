package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"exam-submission-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader reads questions straight from Postgres over a pgx pool.
// It backs the grading cache so cache misses skip the database/sql layer.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	var (
		q               domain.Question
		typ, difficulty string
		optsJSON        string
	)
	err := l.pool.QueryRow(ctx, `SELECT id, course_id, type, content, options_json, correct_answer, score, difficulty
		FROM questions WHERE id=$1`, id).
		Scan(&q.ID, &q.CourseID, &typ, &q.Content, &optsJSON, &q.CorrectAnswer, &q.Score, &difficulty)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.NotFound("question", id)
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	if err := json.Unmarshal([]byte(optsJSON), &q.Options); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal question options: %w", err)
	}
	q.Type = domain.QuestionType(typ)
	q.Difficulty = domain.Difficulty(difficulty)
	return q, nil
}
