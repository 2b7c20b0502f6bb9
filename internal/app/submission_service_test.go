package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"exam-submission-service/internal/app"
	"exam-submission-service/internal/domain"
	"golang.org/x/sync/errgroup"
)

func TestSubmissionWindowScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.openExam(t, "e1", "c1")
	env.classes.Enroll("c1", "alice", "bob")

	env.at(9, 30)
	first, err := env.submissions.Submit(ctx, "alice", "e1", nil)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if first.Status != domain.StatusPending || first.Score != 0 || !first.SubmittedAt.Equal(env.now) {
		t.Fatalf("unexpected submission %+v", first)
	}
	if first.UserID != "alice" || first.StudentID != "alice" {
		t.Fatalf("expected both identity fields set, got %+v", first)
	}

	env.at(9, 45)
	_, err = env.submissions.Submit(ctx, "alice", "e1", nil)
	if !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if err.Error() != "Duplicate submission" {
		t.Fatalf("unexpected duplicate message %q", err.Error())
	}

	env.at(9, 50)
	if _, err := env.submissions.Submit(ctx, "bob", "e1", nil); err != nil {
		t.Fatalf("second student: %v", err)
	}
}

func TestSubmitRequiresOpenSchedule(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sc := env.openExam(t, "e1", "c1")
	env.classes.Enroll("c1", "alice")
	env.classes.Enroll("c2", "carol")

	env.at(8, 59)
	if _, err := env.submissions.Submit(ctx, "alice", "e1", nil); !errors.Is(err, domain.ErrExamNotOpen) {
		t.Fatalf("expected not open before start, got %v", err)
	}
	env.at(10, 1)
	if _, err := env.submissions.Submit(ctx, "alice", "e1", nil); !errors.Is(err, domain.ErrExamNotOpen) {
		t.Fatalf("expected not open after end, got %v", err)
	}
	env.at(9, 30)
	if _, err := env.submissions.Submit(ctx, "carol", "e1", nil); !errors.Is(err, domain.ErrExamNotOpen) {
		t.Fatalf("expected not open for other class, got %v", err)
	}
	if _, err := env.schedules.Update(ctx, sc.ID, app.SchedulePatch{IsClosed: ptr(true)}); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := env.submissions.Submit(ctx, "alice", "e1", nil); !errors.Is(err, domain.ErrExamNotOpen) {
		t.Fatalf("expected not open when force-closed, got %v", err)
	}
}

func TestSubmitValidatesAnswers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.openExam(t, "e1", "c1")
	env.classes.Enroll("c1", "alice")
	env.at(9, 5)

	_, err := env.submissions.Submit(ctx, "alice", "e1", []app.AnswerInput{{QuestionID: "q1", SelectedOption: "E"}, {SelectedOption: "A"}})
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(de.Fields) != 1 || de.Fields[0] != "answers[1].questionId" {
		t.Fatalf("expected missing questionId first, got %v", de.Fields)
	}
	if _, err := env.submissions.Submit(ctx, "", "", nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty ids, got %v", err)
	}
	sub, err := env.submissions.Submit(ctx, "alice", "e1", []app.AnswerInput{{QuestionID: "q1", SelectedOption: " c "}, {QuestionID: "q2"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Answers[0].SelectedOption != "C" || sub.Answers[1].SelectedOption != "" {
		t.Fatalf("unexpected normalized answers %+v", sub.Answers)
	}
}

func TestConcurrentSubmitsAdmitExactlyOne(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.openExam(t, "e1", "c1")
	env.classes.Enroll("c1", "alice")
	env.at(9, 30)

	const n = 20
	var mu sync.Mutex
	ok, dup := 0, 0
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := env.submissions.Submit(ctx, "alice", "e1", nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrDuplicateSubmission):
				dup++
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok != 1 || dup != n-1 {
		t.Fatalf("expected 1 success and %d duplicates, got %d and %d", n-1, ok, dup)
	}
	subs, _ := env.submissions.ListByExam(ctx, "e1")
	if len(subs) != 1 {
		t.Fatalf("expected one stored submission, got %d", len(subs))
	}
}

func TestGradeThreeOfFive(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.openExam(t, "e1", "c1")
	env.classes.Enroll("c1", "alice")
	qs := env.seedQuestions(t, 5)
	env.at(9, 20)

	answers := []app.AnswerInput{
		{QuestionID: qs[0].ID, SelectedOption: "A"},
		{QuestionID: qs[1].ID, SelectedOption: "A"},
		{QuestionID: qs[2].ID, SelectedOption: "A"},
		{QuestionID: qs[3].ID, SelectedOption: "B"},
		{QuestionID: qs[4].ID},
	}
	sub, err := env.submissions.Submit(ctx, "alice", "e1", answers)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	graded, err := env.submissions.Grade(ctx, sub.ID, "teacher-1")
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if graded.Score != 3 {
		t.Fatalf("expected score 3, got %v", graded.Score)
	}
	if graded.Status != domain.StatusGraded || !graded.IsGraded || graded.GradedBy != "teacher-1" || graded.GradedAt == nil {
		t.Fatalf("unexpected graded submission %+v", graded)
	}
	for i, want := range []float64{1, 1, 1, 0, 0} {
		if graded.Answers[i].Score != want {
			t.Fatalf("answer %d: expected %v, got %v", i, want, graded.Answers[i].Score)
		}
	}

	again, err := env.submissions.Grade(ctx, sub.ID, "teacher-1")
	if err != nil {
		t.Fatalf("regrade: %v", err)
	}
	if again.Score != graded.Score {
		t.Fatalf("regrade must be idempotent: %v vs %v", again.Score, graded.Score)
	}
}

func TestGradeUsesQuestionWeight(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.openExam(t, "e1", "c1")
	env.classes.Enroll("c1", "alice")
	q, err := env.questions.Create(ctx, app.QuestionInput{
		Content: "weighted", AnswerA: "a", AnswerB: "b", AnswerC: "c", AnswerD: "d", CorrectAnswer: "D", Score: ptr(2.5),
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	env.at(9, 1)
	sub, _ := env.submissions.Submit(ctx, "alice", "e1", []app.AnswerInput{{QuestionID: q.ID, SelectedOption: "D"}})
	graded, err := env.submissions.Grade(ctx, sub.ID, "t")
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if graded.Score != 2.5 {
		t.Fatalf("expected weighted score 2.5, got %v", graded.Score)
	}
}

func TestGradeMissingQuestionIsDataIntegrityError(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.openExam(t, "e1", "c1")
	env.classes.Enroll("c1", "alice")
	qs := env.seedQuestions(t, 2)
	env.at(9, 20)

	sub, _ := env.submissions.Submit(ctx, "alice", "e1", []app.AnswerInput{
		{QuestionID: qs[0].ID, SelectedOption: "A"},
		{QuestionID: qs[1].ID, SelectedOption: "A"},
	})
	if err := env.questions.Delete(ctx, qs[1].ID); err != nil {
		t.Fatalf("delete question: %v", err)
	}

	_, err := env.submissions.Grade(ctx, sub.ID, "t")
	if !errors.Is(err, domain.ErrDataIntegrity) {
		t.Fatalf("expected data integrity error, got %v", err)
	}
	stored, _ := env.submissions.Get(ctx, sub.ID)
	if stored.Status != domain.StatusPending {
		t.Fatalf("failed grade must leave submission pending, got %s", stored.Status)
	}
	if _, err := env.submissions.Grade(ctx, "missing", "t"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReviewStateMachine(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.openExam(t, "e1", "c1")
	env.classes.Enroll("c1", "alice")
	qs := env.seedQuestions(t, 2)
	env.at(9, 20)
	sub, _ := env.submissions.Submit(ctx, "alice", "e1", []app.AnswerInput{
		{QuestionID: qs[0].ID, SelectedOption: "A"},
		{QuestionID: qs[1].ID, SelectedOption: "C"},
	})

	if _, err := env.submissions.Review(ctx, sub.ID, "t", app.ReviewInput{}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition from pending, got %v", err)
	}

	if _, err := env.submissions.Grade(ctx, sub.ID, "t"); err != nil {
		t.Fatalf("grade: %v", err)
	}
	adjusted := []domain.Answer{
		{QuestionID: qs[0].ID, SelectedOption: "A", Score: 1},
		{QuestionID: qs[1].ID, SelectedOption: "C", Score: 0.5},
	}
	reviewed, err := env.submissions.Review(ctx, sub.ID, "t2", app.ReviewInput{Answers: adjusted})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if reviewed.Status != domain.StatusReviewed || reviewed.Score != 1.5 || reviewed.ReviewedBy != "t2" || !reviewed.IsGraded {
		t.Fatalf("unexpected reviewed submission %+v", reviewed)
	}

	if _, err := env.submissions.Review(ctx, sub.ID, "t", app.ReviewInput{}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("reviewed is terminal, got %v", err)
	}
	if _, err := env.submissions.Grade(ctx, sub.ID, "t"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("grading a reviewed submission must fail, got %v", err)
	}
}

func TestReviewFinalScoreWins(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.openExam(t, "e1", "c1")
	env.classes.Enroll("c1", "alice")
	env.at(9, 20)
	sub, _ := env.submissions.Submit(ctx, "alice", "e1", nil)
	_, _ = env.submissions.Grade(ctx, sub.ID, "t")

	if _, err := env.submissions.Review(ctx, sub.ID, "t", app.ReviewInput{FinalScore: ptr(-2.0)}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected negative score rejected, got %v", err)
	}
	reviewed, err := env.submissions.Review(ctx, sub.ID, "t", app.ReviewInput{FinalScore: ptr(7.0)})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if reviewed.Score != 7 {
		t.Fatalf("expected final score override, got %v", reviewed.Score)
	}
}

func TestReviewValidatesAdjustedAnswers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.openExam(t, "e1", "c1")
	env.classes.Enroll("c1", "alice")
	qs := env.seedQuestions(t, 2)
	env.at(9, 20)
	sub, _ := env.submissions.Submit(ctx, "alice", "e1", []app.AnswerInput{
		{QuestionID: qs[0].ID, SelectedOption: "A"},
		{QuestionID: qs[1].ID, SelectedOption: "C"},
	})
	if _, err := env.submissions.Grade(ctx, sub.ID, "t"); err != nil {
		t.Fatalf("grade: %v", err)
	}

	cases := []struct {
		name    string
		answers []domain.Answer
		field   string
	}{
		{"unknown option", []domain.Answer{{QuestionID: qs[1].ID, SelectedOption: "E", Score: 1}}, "answers[0].selectedOption"},
		{"foreign question", []domain.Answer{{QuestionID: "other", SelectedOption: "A", Score: 1}}, "answers[0].questionId"},
		{"repeated question", []domain.Answer{{QuestionID: qs[0].ID, Score: 1}, {QuestionID: qs[0].ID, Score: 1}}, "answers[1].questionId"},
		{"negative score", []domain.Answer{{QuestionID: qs[1].ID, Score: -1}}, "answers[0].score"},
	}
	for _, tc := range cases {
		_, err := env.submissions.Review(ctx, sub.ID, "t", app.ReviewInput{Answers: tc.answers})
		var de *domain.Error
		if !errors.As(err, &de) || de.Kind != domain.KindValidation || len(de.Fields) != 1 || de.Fields[0] != tc.field {
			t.Fatalf("%s: expected validation error on %s, got %v", tc.name, tc.field, err)
		}
	}

	stored, _ := env.submissions.Get(ctx, sub.ID)
	if stored.Status != domain.StatusGraded || stored.Score != 1 {
		t.Fatalf("rejected reviews must not change the submission, got %+v", stored)
	}

	// Only the second answer is adjusted; the first keeps its graded score.
	reviewed, err := env.submissions.Review(ctx, sub.ID, "t", app.ReviewInput{
		Answers: []domain.Answer{{QuestionID: qs[1].ID, Score: 0.5}},
	})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if reviewed.Score != 1.5 || reviewed.Answers[0].Score != 1 || reviewed.Answers[1].SelectedOption != "C" {
		t.Fatalf("unexpected reviewed submission %+v", reviewed)
	}
}

func TestConcurrentGradeAndUpdateStayConsistent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.openExam(t, "e1", "c1")
	env.classes.Enroll("c1", "alice")
	qs := env.seedQuestions(t, 4)
	env.at(9, 20)
	sub, err := env.submissions.Submit(ctx, "alice", "e1", []app.AnswerInput{
		{QuestionID: qs[0].ID, SelectedOption: "A"},
		{QuestionID: qs[1].ID, SelectedOption: "B"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	teacher := domain.Principal{ID: "t1", Role: domain.RoleTeacher}
	allRight := []app.AnswerInput{
		{QuestionID: qs[0].ID, SelectedOption: "A"},
		{QuestionID: qs[1].ID, SelectedOption: "A"},
		{QuestionID: qs[2].ID, SelectedOption: "A"},
		{QuestionID: qs[3].ID, SelectedOption: "A"},
	}

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		i := i
		g.Go(func() error {
			if i%2 == 0 {
				_, err := env.submissions.Grade(ctx, sub.ID, "t1")
				return err
			}
			_, err := env.submissions.Update(ctx, sub.ID, teacher, app.SubmissionPatch{Answers: allRight, IsGraded: ptr(true)})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent grade/update: %v", err)
	}

	final, err := env.submissions.Get(ctx, sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != domain.StatusGraded || len(final.Answers) != 4 {
		t.Fatalf("unexpected final submission %+v", final)
	}
	if final.Score != domain.TotalScore(final.Answers) || final.Score != 4 {
		t.Fatalf("score %v does not match answers %+v", final.Score, final.Answers)
	}
}

func TestUpdateSubmission(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.openExam(t, "e1", "c1")
	env.classes.Enroll("c1", "alice")
	qs := env.seedQuestions(t, 2)
	env.at(9, 20)
	sub, _ := env.submissions.Submit(ctx, "alice", "e1", []app.AnswerInput{{QuestionID: qs[0].ID, SelectedOption: "B"}})
	teacher := domain.Principal{ID: "t1", Role: domain.RoleTeacher}

	if _, err := env.submissions.Update(ctx, sub.ID, domain.Principal{ID: "alice", Role: domain.RoleStudent}, app.SubmissionPatch{Score: ptr(9.0)}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("students must not edit submissions, got %v", err)
	}
	if _, err := env.submissions.Update(ctx, sub.ID, teacher, app.SubmissionPatch{Status: ptr(domain.StatusReviewed)}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("pending cannot skip to reviewed, got %v", err)
	}

	graded, err := env.submissions.Update(ctx, sub.ID, teacher, app.SubmissionPatch{IsGraded: ptr(true)})
	if err != nil {
		t.Fatalf("grade via update: %v", err)
	}
	if graded.Status != domain.StatusGraded || graded.Score != 0 || graded.GradedBy != "t1" {
		t.Fatalf("unexpected graded submission %+v", graded)
	}

	rescored, err := env.submissions.Update(ctx, sub.ID, teacher, app.SubmissionPatch{Answers: []app.AnswerInput{
		{QuestionID: qs[0].ID, SelectedOption: "A"},
		{QuestionID: qs[1].ID, SelectedOption: "A"},
	}})
	if err != nil {
		t.Fatalf("answers update: %v", err)
	}
	if rescored.Score != 2 {
		t.Fatalf("expected recomputed score 2, got %v", rescored.Score)
	}

	if _, err := env.submissions.Update(ctx, sub.ID, teacher, app.SubmissionPatch{IsGraded: ptr(false)}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected no path back to pending, got %v", err)
	}
	if _, err := env.submissions.Update(ctx, sub.ID, teacher, app.SubmissionPatch{Status: ptr(domain.SubmissionStatus("archived"))}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected unknown status rejected, got %v", err)
	}

	final, err := env.submissions.Update(ctx, sub.ID, teacher, app.SubmissionPatch{Status: ptr(domain.StatusReviewed), Score: ptr(1.5)})
	if err != nil {
		t.Fatalf("review via update: %v", err)
	}
	if final.Status != domain.StatusReviewed || final.Score != 1.5 || final.ReviewedBy != "t1" {
		t.Fatalf("unexpected reviewed submission %+v", final)
	}
	if _, err := env.submissions.Update(ctx, "missing", teacher, app.SubmissionPatch{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAutoGradeOnSubmit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, app.WithAutoGrade(true))
	env.openExam(t, "e1", "c1")
	env.classes.Enroll("c1", "alice", "bob")
	qs := env.seedQuestions(t, 2)
	env.at(9, 20)

	sub, err := env.submissions.Submit(ctx, "alice", "e1", []app.AnswerInput{
		{QuestionID: qs[0].ID, SelectedOption: "A"},
		{QuestionID: qs[1].ID, SelectedOption: "D"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Status != domain.StatusGraded || sub.Score != 1 || sub.GradedBy != "auto" {
		t.Fatalf("expected auto-graded submission, got %+v", sub)
	}

	pending, err := env.submissions.Submit(ctx, "bob", "e1", []app.AnswerInput{{QuestionID: "ghost", SelectedOption: "A"}})
	if err != nil {
		t.Fatalf("submit with unknown question must still be stored: %v", err)
	}
	if pending.Status != domain.StatusPending {
		t.Fatalf("expected pending after failed auto-grade, got %s", pending.Status)
	}
}

func TestListProjections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.openExam(t, "e1", "c1")
	env.openExam(t, "e2", "c1")
	env.classes.Enroll("c1", "alice", "bob")
	env.at(9, 20)
	_, _ = env.submissions.Submit(ctx, "alice", "e1", nil)
	_, _ = env.submissions.Submit(ctx, "bob", "e1", nil)
	_, _ = env.submissions.Submit(ctx, "alice", "e2", nil)

	byExam, _ := env.submissions.ListByExam(ctx, "e1")
	if len(byExam) != 2 || byExam[0].StudentID != "alice" || byExam[1].StudentID != "bob" {
		t.Fatalf("unexpected exam projection %+v", byExam)
	}
	byStudent, _ := env.submissions.ListByStudent(ctx, "alice")
	if len(byStudent) != 2 || byStudent[0].ExamID != "e1" || byStudent[1].ExamID != "e2" {
		t.Fatalf("unexpected student projection %+v", byStudent)
	}
}

func TestFeedReceivesSubmissionEvents(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.openExam(t, "e1", "c1")
	env.classes.Enroll("c1", "alice")
	env.at(9, 20)

	events, cancel := env.feed.Subscribe()
	defer cancel()

	sub, _ := env.submissions.Submit(ctx, "alice", "e1", nil)
	ev := <-events
	if ev.Kind != app.EventSubmitted || ev.SubmissionID != sub.ID || ev.ExamID != "e1" {
		t.Fatalf("unexpected event %+v", ev)
	}
	_, _ = env.submissions.Grade(ctx, sub.ID, "t")
	if ev := <-events; ev.Kind != app.EventGraded {
		t.Fatalf("expected graded event, got %+v", ev)
	}
}
