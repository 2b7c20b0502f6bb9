package app

import (
	"context"
	"time"

	"exam-submission-service/internal/domain"

	"github.com/google/uuid"
)

// ScheduleRepository persists exam schedules.
type ScheduleRepository interface {
	CreateSchedule(ctx context.Context, s domain.ExamSchedule) error
	GetSchedule(ctx context.Context, id string) (domain.ExamSchedule, error)
	UpdateSchedule(ctx context.Context, s domain.ExamSchedule) error
	DeleteSchedule(ctx context.Context, id string) error
	ListSchedulesByExam(ctx context.Context, examID string) ([]domain.ExamSchedule, error)
}

// QuestionRepository persists the question bank.
type QuestionRepository interface {
	CreateQuestion(ctx context.Context, q domain.Question) error
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
	UpdateQuestion(ctx context.Context, q domain.Question) error
	DeleteQuestion(ctx context.Context, id string) error
	ListQuestions(ctx context.Context, courseID string) ([]domain.Question, error)
}

// SubmissionFilter narrows a submission listing; empty fields match everything.
type SubmissionFilter struct {
	ExamID    string
	StudentID string
}

// SubmissionRepository persists submissions.
// CreateSubmission must return domain.ErrDuplicateSubmission when a record for
// the same (exam, student) pair already exists, and must decide that atomically
// with the insert.
type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, s domain.Submission) error
	GetSubmission(ctx context.Context, id string) (domain.Submission, error)
	FindSubmission(ctx context.Context, examID, studentID string) (domain.Submission, error)
	UpdateSubmission(ctx context.Context, s domain.Submission) error
	ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]domain.Submission, error)
}

// ClassRegistry resolves which classes a student belongs to.
type ClassRegistry interface {
	ClassesOf(ctx context.Context, studentID string) ([]string, error)
}

// ClassEnroller records class membership.
type ClassEnroller interface {
	EnrollStudents(ctx context.Context, classID string, studentIDs []string) error
}

// QuestionReader loads the grading view of a question (cache or backing store).
type QuestionReader interface {
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
}

// QuestionInvalidator drops cached copies of a question after it changes.
type QuestionInvalidator interface {
	Invalidate(ctx context.Context, id string) error
}

// Locker grants exclusive access to a key until the returned release func is called.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Option configures the services.
type Option func(*options)

type options struct {
	now       func() time.Time
	newID     func() string
	autoGrade bool
	feed      *Feed
}

func defaultOptions(opts []Option) options {
	o := options{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock overrides the time source; intended for deterministic tests.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithIDGenerator overrides record id generation.
func WithIDGenerator(newID func() string) Option { return func(o *options) { o.newID = newID } }

// WithAutoGrade grades submissions synchronously right after they are stored.
func WithAutoGrade(enabled bool) Option { return func(o *options) { o.autoGrade = enabled } }

// WithFeed publishes submission changes to f.
func WithFeed(f *Feed) Option { return func(o *options) { o.feed = f } }
