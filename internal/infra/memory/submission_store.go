package memory

import (
	"context"
	"sync"

	"exam-submission-service/internal/app"
	"exam-submission-service/internal/domain"
)

// SubmissionStore is an in-memory implementation of app.SubmissionRepository.
// The (exam, student) index is checked and written under the same lock as the
// insert, which makes it this backend's uniqueness constraint.
type SubmissionStore struct {
	mu      sync.RWMutex
	byID    map[string]domain.Submission
	byPair  map[string]string
	ordered []string
}

func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{
		byID:   make(map[string]domain.Submission),
		byPair: make(map[string]string),
	}
}

func (s *SubmissionStore) CreateSubmission(_ context.Context, sub domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(sub.ExamID, sub.StudentID)
	if _, ok := s.byPair[key]; ok {
		return domain.ErrDuplicateSubmission
	}
	s.byPair[key] = sub.ID
	s.byID[sub.ID] = cloneSubmission(sub)
	s.ordered = append(s.ordered, sub.ID)
	return nil
}

func (s *SubmissionStore) GetSubmission(_ context.Context, id string) (domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.byID[id]
	if !ok {
		return domain.Submission{}, domain.NotFound("submission", id)
	}
	return cloneSubmission(sub), nil
}

func (s *SubmissionStore) FindSubmission(_ context.Context, examID, studentID string) (domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPair[pairKey(examID, studentID)]
	if !ok {
		return domain.Submission{}, domain.NotFound("submission", examID+"/"+studentID)
	}
	return cloneSubmission(s.byID[id]), nil
}

func (s *SubmissionStore) UpdateSubmission(_ context.Context, sub domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[sub.ID]
	if !ok {
		return domain.NotFound("submission", sub.ID)
	}
	// The identity pair is fixed at creation.
	sub.ExamID, sub.StudentID, sub.UserID = existing.ExamID, existing.StudentID, existing.UserID
	s.byID[sub.ID] = cloneSubmission(sub)
	return nil
}

// ListSubmissions returns matching submissions in insertion order.
func (s *SubmissionStore) ListSubmissions(_ context.Context, filter app.SubmissionFilter) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Submission, 0)
	for _, id := range s.ordered {
		sub := s.byID[id]
		if filter.ExamID != "" && sub.ExamID != filter.ExamID {
			continue
		}
		if filter.StudentID != "" && sub.StudentID != filter.StudentID {
			continue
		}
		out = append(out, cloneSubmission(sub))
	}
	return out, nil
}

func pairKey(examID, studentID string) string {
	return examID + "\x00" + studentID
}

func cloneSubmission(sub domain.Submission) domain.Submission {
	if sub.Answers != nil {
		sub.Answers = append([]domain.Answer(nil), sub.Answers...)
	}
	return sub
}
