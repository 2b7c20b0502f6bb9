package app

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"exam-submission-service/internal/domain"
)

// ReviewInput carries optional manual adjustments applied while reviewing.
type ReviewInput struct {
	Answers    []domain.Answer `json:"answers,omitempty"`
	FinalScore *float64        `json:"finalScore,omitempty"`
}

// SubmissionPatch is a staff-side edit of a submission; nil means unchanged.
type SubmissionPatch struct {
	Answers  []AnswerInput            `json:"answers,omitempty"`
	Score    *float64                 `json:"score,omitempty"`
	Status   *domain.SubmissionStatus `json:"status,omitempty"`
	IsGraded *bool                    `json:"isGraded,omitempty"`
}

// SubmissionService is the submission engine: admission, uniqueness and the grading state machine.
type SubmissionService struct {
	submissions SubmissionRepository
	schedules   ScheduleRepository
	classes     ClassRegistry
	questions   QuestionReader
	locker      Locker
	opts        options
}

func NewSubmissionService(submissions SubmissionRepository, schedules ScheduleRepository, classes ClassRegistry, questions QuestionReader, locker Locker, opts ...Option) *SubmissionService {
	return &SubmissionService{
		submissions: submissions,
		schedules:   schedules,
		classes:     classes,
		questions:   questions,
		locker:      locker,
		opts:        defaultOptions(opts),
	}
}

// Submit admits a student's one and only submission for an exam.
func (s *SubmissionService) Submit(ctx context.Context, studentID, examID string, answers []AnswerInput) (domain.Submission, error) {
	studentID = strings.TrimSpace(studentID)
	examID = strings.TrimSpace(examID)
	var missing []string
	if studentID == "" {
		missing = append(missing, "studentId")
	}
	if examID == "" {
		missing = append(missing, "examId")
	}
	if len(missing) > 0 {
		return domain.Submission{}, domain.NewValidationError("missing required fields", missing)
	}
	normalized, err := normalizeAnswers(answers)
	if err != nil {
		return domain.Submission{}, err
	}

	now := s.opts.now()
	if err := s.checkOpen(ctx, studentID, examID, now); err != nil {
		return domain.Submission{}, err
	}

	// Fast path for a friendly error; the store's unique constraint is the real guard.
	if _, err := s.submissions.FindSubmission(ctx, examID, studentID); err == nil {
		return domain.Submission{}, duplicateError()
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Submission{}, err
	}

	sub := domain.Submission{
		ID:          s.opts.newID(),
		UserID:      studentID,
		StudentID:   studentID,
		ExamID:      examID,
		Answers:     normalized,
		SubmittedAt: now,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.submissions.CreateSubmission(ctx, sub); err != nil {
		if errors.Is(err, domain.ErrDuplicateSubmission) {
			return domain.Submission{}, duplicateError()
		}
		return domain.Submission{}, err
	}
	s.publish(EventSubmitted, sub)

	if !s.opts.autoGrade {
		return sub, nil
	}
	graded, err := s.Grade(ctx, sub.ID, "auto")
	if err != nil {
		// The submission is stored; it stays pending for a manual grade.
		log.Printf("auto-grade submission %s: %v", sub.ID, err)
		return sub, nil
	}
	return graded, nil
}

func (s *SubmissionService) checkOpen(ctx context.Context, studentID, examID string, now time.Time) error {
	classIDs, err := s.classes.ClassesOf(ctx, studentID)
	if err != nil {
		return err
	}
	schedules, err := s.schedules.ListSchedulesByExam(ctx, examID)
	if err != nil {
		return err
	}
	if _, ok := openSchedule(schedules, classIDs, now); !ok {
		return domain.Errorf(domain.KindExamNotOpen, "exam %q is not open for this student", examID)
	}
	return nil
}

// Grade scores every answer against the question bank and moves the submission to graded.
// Re-grading a graded submission is allowed and yields the same score for unchanged inputs.
func (s *SubmissionService) Grade(ctx context.Context, id, scorer string) (domain.Submission, error) {
	release, err := s.locker.Lock(ctx, lockKey(id))
	if err != nil {
		return domain.Submission{}, err
	}
	defer release()

	sub, err := s.submissions.GetSubmission(ctx, id)
	if err != nil {
		return domain.Submission{}, err
	}
	if !sub.Status.CanTransition(domain.StatusGraded) {
		return domain.Submission{}, domain.Errorf(domain.KindInvalidTransition, "cannot grade a %s submission", sub.Status)
	}

	answers, total, err := scoreAnswers(ctx, s.questions, sub.Answers)
	if err != nil {
		return domain.Submission{}, err
	}
	now := s.opts.now()
	sub.Answers = answers
	sub.Score = total
	sub.Status = domain.StatusGraded
	sub.IsGraded = true
	sub.GradedBy = scorer
	sub.GradedAt = &now
	sub.UpdatedAt = now

	if err := s.submissions.UpdateSubmission(ctx, sub); err != nil {
		return domain.Submission{}, err
	}
	s.publish(EventGraded, sub)
	return sub, nil
}

// Review confirms a graded submission, optionally overriding answer scores or the total.
// Adjusted answers must refer to questions of the submission; the others keep their score.
func (s *SubmissionService) Review(ctx context.Context, id, reviewer string, in ReviewInput) (domain.Submission, error) {
	release, err := s.locker.Lock(ctx, lockKey(id))
	if err != nil {
		return domain.Submission{}, err
	}
	defer release()

	sub, err := s.submissions.GetSubmission(ctx, id)
	if err != nil {
		return domain.Submission{}, err
	}
	if sub.Status != domain.StatusGraded {
		return domain.Submission{}, domain.Errorf(domain.KindInvalidTransition, "cannot review a %s submission", sub.Status)
	}

	if in.FinalScore != nil && *in.FinalScore < 0 {
		return domain.Submission{}, domain.NewValidationError("invalid fields", []string{"finalScore"})
	}
	if in.Answers != nil {
		if sub.Answers, err = reviewAnswers(sub.Answers, in.Answers); err != nil {
			return domain.Submission{}, err
		}
		sub.Score = domain.TotalScore(sub.Answers)
	}
	if in.FinalScore != nil {
		sub.Score = *in.FinalScore
	}
	now := s.opts.now()
	sub.Status = domain.StatusReviewed
	sub.ReviewedBy = reviewer
	sub.ReviewedAt = &now
	sub.UpdatedAt = now

	if err := s.submissions.UpdateSubmission(ctx, sub); err != nil {
		return domain.Submission{}, err
	}
	s.publish(EventReviewed, sub)
	return sub, nil
}

// Update applies a staff edit. Status changes follow the grading state machine, and
// the score is recomputed from the question bank when answers change on a graded
// submission unless an explicit score is given.
func (s *SubmissionService) Update(ctx context.Context, id string, actor domain.Principal, patch SubmissionPatch) (domain.Submission, error) {
	if !actor.IsStaff() {
		return domain.Submission{}, domain.Errorf(domain.KindForbidden, "students cannot modify a submission")
	}
	release, err := s.locker.Lock(ctx, lockKey(id))
	if err != nil {
		return domain.Submission{}, err
	}
	defer release()

	sub, err := s.submissions.GetSubmission(ctx, id)
	if err != nil {
		return domain.Submission{}, err
	}

	target, err := targetStatus(sub.Status, patch)
	if err != nil {
		return domain.Submission{}, err
	}
	if patch.Score != nil && *patch.Score < 0 {
		return domain.Submission{}, domain.NewValidationError("invalid fields", []string{"score"})
	}

	answersChanged := patch.Answers != nil
	if answersChanged {
		if sub.Answers, err = normalizeAnswers(patch.Answers); err != nil {
			return domain.Submission{}, err
		}
	}

	switch {
	case patch.Score != nil:
		sub.Score = *patch.Score
	case target == domain.StatusPending:
		if answersChanged {
			sub.Score = 0
		}
	case answersChanged || sub.Status == domain.StatusPending:
		answers, total, err := scoreAnswers(ctx, s.questions, sub.Answers)
		if err != nil {
			return domain.Submission{}, err
		}
		sub.Answers, sub.Score = answers, total
	}

	now := s.opts.now()
	if target != sub.Status {
		switch target {
		case domain.StatusGraded:
			sub.GradedBy, sub.GradedAt = actor.ID, &now
		case domain.StatusReviewed:
			sub.ReviewedBy, sub.ReviewedAt = actor.ID, &now
		}
	}
	sub.Status = target
	sub.IsGraded = target != domain.StatusPending
	sub.UpdatedAt = now

	if err := s.submissions.UpdateSubmission(ctx, sub); err != nil {
		return domain.Submission{}, err
	}
	s.publish(EventUpdated, sub)
	return sub, nil
}

// reviewAnswers merges reviewer adjustments into current. A blank selection keeps the student's option.
func reviewAnswers(current, adjusted []domain.Answer) ([]domain.Answer, error) {
	inputs := make([]AnswerInput, len(adjusted))
	for i, a := range adjusted {
		inputs[i] = AnswerInput{QuestionID: a.QuestionID, SelectedOption: a.SelectedOption}
	}
	normalized, err := normalizeAnswers(inputs)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(current))
	for i, a := range current {
		index[a.QuestionID] = i
	}
	out := append([]domain.Answer(nil), current...)
	seen := make(map[string]bool, len(normalized))
	var invalid []string
	for i, a := range normalized {
		j, ok := index[a.QuestionID]
		if !ok || seen[a.QuestionID] {
			invalid = append(invalid, answerField(i)+".questionId")
			continue
		}
		seen[a.QuestionID] = true
		if adjusted[i].Score < 0 {
			invalid = append(invalid, answerField(i)+".score")
			continue
		}
		if a.SelectedOption != "" {
			out[j].SelectedOption = a.SelectedOption
		}
		out[j].Score = adjusted[i].Score
	}
	if len(invalid) > 0 {
		return nil, domain.NewValidationError("invalid fields", invalid)
	}
	return out, nil
}

func targetStatus(current domain.SubmissionStatus, patch SubmissionPatch) (domain.SubmissionStatus, error) {
	target := current
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return "", domain.NewValidationError("invalid fields", []string{"status"})
		}
		target = *patch.Status
	}
	if patch.IsGraded != nil {
		switch {
		case patch.Status != nil && *patch.IsGraded != (target != domain.StatusPending):
			return "", domain.NewValidationError("invalid fields", []string{"isGraded"})
		case *patch.IsGraded && target == domain.StatusPending:
			target = domain.StatusGraded
		case !*patch.IsGraded && target != domain.StatusPending:
			return "", domain.Errorf(domain.KindInvalidTransition, "cannot ungrade a %s submission", target)
		}
	}
	if !current.CanTransition(target) {
		return "", domain.Errorf(domain.KindInvalidTransition, "cannot move submission from %s to %s", current, target)
	}
	return target, nil
}

func (s *SubmissionService) Get(ctx context.Context, id string) (domain.Submission, error) {
	return s.submissions.GetSubmission(ctx, id)
}

func (s *SubmissionService) ListByExam(ctx context.Context, examID string) ([]domain.Submission, error) {
	return s.submissions.ListSubmissions(ctx, SubmissionFilter{ExamID: examID})
}

func (s *SubmissionService) ListByStudent(ctx context.Context, studentID string) ([]domain.Submission, error) {
	return s.submissions.ListSubmissions(ctx, SubmissionFilter{StudentID: studentID})
}

func (s *SubmissionService) publish(kind EventKind, sub domain.Submission) {
	s.opts.feed.Publish(Event{Kind: kind, SubmissionID: sub.ID, ExamID: sub.ExamID, StudentID: sub.StudentID, At: sub.UpdatedAt})
}

func duplicateError() error {
	return &domain.Error{Kind: domain.KindDuplicate, Message: "Duplicate submission"}
}

func lockKey(submissionID string) string {
	return "submission:" + submissionID
}

func answerField(i int) string {
	return "answers[" + strconv.Itoa(i) + "]"
}
