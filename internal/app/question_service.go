package app

import (
	"context"
	"log"
	"strings"

	"exam-submission-service/internal/domain"
)

// QuestionInput is the create payload. Option slots are flat fields (answerA..answerD).
type QuestionInput struct {
	Content       string              `json:"content" validate:"required"`
	AnswerA       string              `json:"answerA" validate:"required_unless=Type essay"`
	AnswerB       string              `json:"answerB" validate:"required_unless=Type essay"`
	AnswerC       string              `json:"answerC" validate:"required_if=Type multiple-choice"`
	AnswerD       string              `json:"answerD" validate:"required_if=Type multiple-choice"`
	CorrectAnswer string              `json:"correctAnswer" validate:"required_unless=Type essay"`
	Type          domain.QuestionType `json:"type" validate:"oneof=multiple-choice essay true-false"`
	Score         *float64            `json:"score" validate:"omitempty,gte=0"`
	Difficulty    domain.Difficulty   `json:"difficulty" validate:"oneof=easy medium hard"`
	CourseID      string              `json:"courseId"`
}

// QuestionPatch carries the fields to change; nil means unchanged.
// Supplying any option slot replaces every slot the question type uses.
type QuestionPatch struct {
	Content       *string              `json:"content"`
	AnswerA       *string              `json:"answerA"`
	AnswerB       *string              `json:"answerB"`
	AnswerC       *string              `json:"answerC"`
	AnswerD       *string              `json:"answerD"`
	CorrectAnswer *string              `json:"correctAnswer"`
	Type          *domain.QuestionType `json:"type"`
	Score         *float64             `json:"score"`
	Difficulty    *domain.Difficulty   `json:"difficulty"`
	CourseID      *string              `json:"courseId"`
}

func (p QuestionPatch) touchesOptions() bool {
	return p.AnswerA != nil || p.AnswerB != nil || p.AnswerC != nil || p.AnswerD != nil
}

// QuestionService manages the question bank.
type QuestionService struct {
	repo  QuestionRepository
	cache QuestionInvalidator
	opts  options
}

// NewQuestionService builds the service; cache may be nil when grading reads the repository directly.
func NewQuestionService(repo QuestionRepository, cache QuestionInvalidator, opts ...Option) *QuestionService {
	return &QuestionService{repo: repo, cache: cache, opts: defaultOptions(opts)}
}

// Create validates in and stores a new question.
func (s *QuestionService) Create(ctx context.Context, in QuestionInput) (domain.Question, error) {
	in = normalizeInput(in)
	if err := checkStruct(in); err != nil {
		return domain.Question{}, err
	}

	q := domain.Question{
		ID:            s.opts.newID(),
		CourseID:      in.CourseID,
		Type:          in.Type,
		Content:       in.Content,
		CorrectAnswer: in.CorrectAnswer,
		Score:         1,
		Difficulty:    in.Difficulty,
	}
	if in.Score != nil {
		q.Score = *in.Score
	}
	switch in.Type {
	case domain.QuestionMultipleChoice:
		q.Options = []string{in.AnswerA, in.AnswerB, in.AnswerC, in.AnswerD}
	case domain.QuestionTrueFalse:
		q.Options = []string{in.AnswerA, in.AnswerB}
	case domain.QuestionEssay:
		q.CorrectAnswer = ""
	}
	if err := checkQuestion(q); err != nil {
		return domain.Question{}, err
	}

	now := s.opts.now()
	q.CreatedAt, q.UpdatedAt = now, now
	if err := s.repo.CreateQuestion(ctx, q); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

// Update applies patch. Scalars patch individually; options are rebuilt from the
// slots of the question type whenever any slot is present, with absent slots left empty.
func (s *QuestionService) Update(ctx context.Context, id string, patch QuestionPatch) (domain.Question, error) {
	q, err := s.repo.GetQuestion(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}

	if patch.Content != nil {
		q.Content = strings.TrimSpace(*patch.Content)
	}
	if patch.Type != nil {
		q.Type = *patch.Type
	}
	if patch.CorrectAnswer != nil {
		q.CorrectAnswer = strings.ToUpper(strings.TrimSpace(*patch.CorrectAnswer))
	}
	if patch.Score != nil {
		q.Score = *patch.Score
	}
	if patch.Difficulty != nil {
		q.Difficulty = *patch.Difficulty
	}
	if patch.CourseID != nil {
		q.CourseID = strings.TrimSpace(*patch.CourseID)
	}
	if patch.touchesOptions() && q.Type != domain.QuestionEssay {
		if q.Options, err = rebuildOptions(q.Type, patch); err != nil {
			return domain.Question{}, err
		}
	}
	if q.Type == domain.QuestionEssay {
		q.Options, q.CorrectAnswer = nil, ""
	}

	if q.Content == "" {
		return domain.Question{}, domain.NewValidationError("missing required fields", []string{"content"})
	}
	if err := checkQuestion(q); err != nil {
		return domain.Question{}, err
	}

	q.UpdatedAt = s.opts.now()
	if err := s.repo.UpdateQuestion(ctx, q); err != nil {
		return domain.Question{}, err
	}
	s.invalidate(ctx, id)
	return q, nil
}

func (s *QuestionService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *QuestionService) Get(ctx context.Context, id string) (domain.Question, error) {
	return s.repo.GetQuestion(ctx, id)
}

func (s *QuestionService) List(ctx context.Context, courseID string) ([]domain.Question, error) {
	return s.repo.ListQuestions(ctx, courseID)
}

func (s *QuestionService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		log.Printf("invalidate question %s: %v", id, err)
	}
}

// checkQuestion enforces the structural invariants shared by create and update.
func checkQuestion(q domain.Question) error {
	var invalid []string
	switch q.Type {
	case domain.QuestionMultipleChoice, domain.QuestionTrueFalse:
		if len(q.Options) < 2 || len(q.Options) > 4 {
			invalid = append(invalid, "options")
		}
		idx := domain.OptionIndex(q.CorrectAnswer)
		if idx < 0 || idx >= len(q.Options) {
			invalid = append(invalid, "correctAnswer")
		}
	case domain.QuestionEssay:
	default:
		invalid = append(invalid, "type")
	}
	if q.Score < 0 {
		invalid = append(invalid, "score")
	}
	switch q.Difficulty {
	case domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard:
	default:
		invalid = append(invalid, "difficulty")
	}
	if len(invalid) > 0 {
		return domain.NewValidationError("invalid fields", invalid)
	}
	return nil
}

func normalizeInput(in QuestionInput) QuestionInput {
	in.Content = strings.TrimSpace(in.Content)
	in.AnswerA = strings.TrimSpace(in.AnswerA)
	in.AnswerB = strings.TrimSpace(in.AnswerB)
	in.AnswerC = strings.TrimSpace(in.AnswerC)
	in.AnswerD = strings.TrimSpace(in.AnswerD)
	in.CorrectAnswer = strings.ToUpper(strings.TrimSpace(in.CorrectAnswer))
	in.CourseID = strings.TrimSpace(in.CourseID)
	if in.Type == "" {
		in.Type = domain.QuestionMultipleChoice
	}
	if in.Difficulty == "" {
		in.Difficulty = domain.DifficultyMedium
	}
	return in
}

// rebuildOptions lays out the slots used by typ. True-false questions only have A and B.
func rebuildOptions(typ domain.QuestionType, patch QuestionPatch) ([]string, error) {
	if typ != domain.QuestionTrueFalse {
		return []string{deref(patch.AnswerA), deref(patch.AnswerB), deref(patch.AnswerC), deref(patch.AnswerD)}, nil
	}
	var invalid []string
	if patch.AnswerC != nil {
		invalid = append(invalid, "answerC")
	}
	if patch.AnswerD != nil {
		invalid = append(invalid, "answerD")
	}
	if len(invalid) > 0 {
		return nil, domain.NewValidationError("invalid fields", invalid)
	}
	return []string{deref(patch.AnswerA), deref(patch.AnswerB)}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
