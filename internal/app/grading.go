package app

import (
	"context"
	"errors"
	"strings"

	"exam-submission-service/internal/domain"
)

// AnswerInput is one answer as sent by a student.
type AnswerInput struct {
	QuestionID     string `json:"questionId" validate:"required"`
	SelectedOption string `json:"selectedOption" validate:"omitempty,oneof=A B C D"`
}

type answerSet struct {
	Answers []AnswerInput `json:"answers" validate:"dive"`
}

// normalizeAnswers validates raw answers and returns them unscored, in order.
func normalizeAnswers(in []AnswerInput) ([]domain.Answer, error) {
	set := answerSet{Answers: make([]AnswerInput, len(in))}
	for i, a := range in {
		set.Answers[i] = AnswerInput{
			QuestionID:     strings.TrimSpace(a.QuestionID),
			SelectedOption: strings.ToUpper(strings.TrimSpace(a.SelectedOption)),
		}
	}
	if err := checkStruct(set); err != nil {
		return nil, err
	}
	out := make([]domain.Answer, len(set.Answers))
	for i, a := range set.Answers {
		out[i] = domain.Answer{QuestionID: a.QuestionID, SelectedOption: a.SelectedOption}
	}
	return out, nil
}

// ScoreAnswer awards the question's weight when the selected option matches its key.
// Essay questions and blank selections score zero.
func ScoreAnswer(q domain.Question, selected string) float64 {
	if q.Type == domain.QuestionEssay || selected == "" || q.CorrectAnswer == "" {
		return 0
	}
	if selected != q.CorrectAnswer {
		return 0
	}
	if q.Score < 0 {
		return 0
	}
	return q.Score
}

// scoreAnswers grades every answer against the question bank.
// A referenced question that no longer exists is a data integrity failure, never a silent zero.
func scoreAnswers(ctx context.Context, questions QuestionReader, answers []domain.Answer) ([]domain.Answer, float64, error) {
	out := make([]domain.Answer, len(answers))
	for i, a := range answers {
		q, err := questions.GetQuestion(ctx, a.QuestionID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, 0, domain.Errorf(domain.KindDataIntegrity, "submission references missing question %q", a.QuestionID)
			}
			return nil, 0, err
		}
		a.Score = ScoreAnswer(q, a.SelectedOption)
		out[i] = a
	}
	return out, domain.TotalScore(out), nil
}
