package domain

import "time"

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionEssay          QuestionType = "essay"
	QuestionTrueFalse      QuestionType = "true-false"
)

// Difficulty is a coarse authoring hint; it does not affect scoring.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// OptionLabels maps option slots to their answer letters.
var OptionLabels = [4]string{"A", "B", "C", "D"}

// Question is a single item in a course's question bank.
type Question struct {
	ID            string       `json:"id"`
	CourseID      string       `json:"courseId,omitempty"`
	Type          QuestionType `json:"type"`
	Content       string       `json:"content"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	Score         float64      `json:"score"` // weight awarded when correct
	Difficulty    Difficulty   `json:"difficulty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// OptionIndex returns the slot index of an answer letter, or -1.
func OptionIndex(label string) int {
	for i, l := range OptionLabels {
		if l == label {
			return i
		}
	}
	return -1
}

// ExamSchedule is the window during which an exam is open to one class.
type ExamSchedule struct {
	ID        string    `json:"id"`
	ExamID    string    `json:"examId"`
	ClassID   string    `json:"classId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	IsClosed  bool      `json:"isClosed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsOpen reports whether the window admits a submission at now.
// Both bounds are inclusive; a manual close always wins.
func (s ExamSchedule) IsOpen(now time.Time) bool {
	return !s.IsClosed && !now.Before(s.StartTime) && !now.After(s.EndTime)
}

// SubmissionStatus is the grading state of a submission.
type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusGraded   SubmissionStatus = "graded"
	StatusReviewed SubmissionStatus = "reviewed"
)

// Valid reports whether s is a known status.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusGraded, StatusReviewed:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows moving from s to next.
// Staying in the same state is always allowed.
func (s SubmissionStatus) CanTransition(next SubmissionStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusGraded
	case StatusGraded:
		return next == StatusReviewed
	}
	return false
}

// Answer is one selected option for one question.
type Answer struct {
	QuestionID     string  `json:"questionId"`
	SelectedOption string  `json:"selectedOption"`
	Score          float64 `json:"score"`
}

// Submission is a student's single attempt at an exam.
// UserID and StudentID always carry the same identity.
type Submission struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	StudentID   string           `json:"studentId"`
	ExamID      string           `json:"examId"`
	Answers     []Answer         `json:"answers"`
	SubmittedAt time.Time        `json:"submittedAt"`
	Score       float64          `json:"score"`
	Status      SubmissionStatus `json:"status"`
	IsGraded    bool             `json:"isGraded"`
	GradedBy    string           `json:"gradedBy,omitempty"`
	GradedAt    *time.Time       `json:"gradedAt,omitempty"`
	ReviewedBy  string           `json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time       `json:"reviewedAt,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// TotalScore sums the per-answer scores.
func TotalScore(answers []Answer) float64 {
	total := 0.0
	for _, a := range answers {
		total += a.Score
	}
	return total
}

// Statistics is an aggregate view over a set of submissions.
type Statistics struct {
	Total              int                      `json:"total"`
	Graded             int                      `json:"graded"`
	Pending            int                      `json:"pending"`
	AverageScore       float64                  `json:"averageScore"`
	StatusDistribution map[SubmissionStatus]int `json:"statusDistribution"`
}

// Role is the caller's role as asserted by the identity provider.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Principal is the already-authenticated caller.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsStaff reports whether the principal may author and grade.
func (p Principal) IsStaff() bool {
	return p.Role == RoleTeacher || p.Role == RoleAdmin
}
