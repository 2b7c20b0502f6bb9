package app_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"exam-submission-service/internal/app"
	"exam-submission-service/internal/domain"
	"exam-submission-service/internal/infra/memory"
)

type testEnv struct {
	now         time.Time
	schedules   *app.ScheduleService
	questions   *app.QuestionService
	submissions *app.SubmissionService
	stats       *app.StatisticsService
	questionDB  *memory.QuestionStore
	classes     *memory.ClassRegistry
	feed        *app.Feed
}

func newTestEnv(t *testing.T, extra ...app.Option) *testEnv {
	t.Helper()
	env := &testEnv{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}

	var seq atomic.Int64
	opts := []app.Option{
		app.WithClock(func() time.Time { return env.now }),
		app.WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }),
	}
	env.feed = app.NewFeed()
	opts = append(opts, app.WithFeed(env.feed))
	opts = append(opts, extra...)

	scheduleStore := memory.NewScheduleStore()
	env.questionDB = memory.NewQuestionStore()
	submissionStore := memory.NewSubmissionStore()
	env.classes = memory.NewClassRegistry()
	cache := memory.NewQuestionCache(env.questionDB, time.Minute)

	env.schedules = app.NewScheduleService(scheduleStore, opts...)
	env.questions = app.NewQuestionService(env.questionDB, cache, opts...)
	env.submissions = app.NewSubmissionService(submissionStore, scheduleStore, env.classes, cache, memory.NewKeyedLocker(), opts...)
	env.stats = app.NewStatisticsService(submissionStore)
	return env
}

func (e *testEnv) at(hour, minute int) {
	e.now = time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

// openExam schedules examID for classID from 09:00 to 10:00.
func (e *testEnv) openExam(t *testing.T, examID, classID string) domain.ExamSchedule {
	t.Helper()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	sc, err := e.schedules.Create(context.Background(), app.ScheduleInput{ExamID: examID, ClassID: classID, StartTime: &start, EndTime: &end})
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	return sc
}

// seedQuestions creates n multiple-choice questions whose correct answer is "A".
func (e *testEnv) seedQuestions(t *testing.T, n int) []domain.Question {
	t.Helper()
	out := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		q, err := e.questions.Create(context.Background(), app.QuestionInput{
			Content:       fmt.Sprintf("question %d", i+1),
			AnswerA:       "right",
			AnswerB:       "wrong",
			AnswerC:       "wrong",
			AnswerD:       "wrong",
			CorrectAnswer: "A",
			CourseID:      "course-1",
		})
		if err != nil {
			t.Fatalf("create question: %v", err)
		}
		out = append(out, q)
	}
	return out
}

func ptr[T any](v T) *T { return &v }
