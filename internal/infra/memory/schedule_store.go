package memory

import (
	"context"
	"sort"
	"sync"

	"exam-submission-service/internal/domain"
)

// ScheduleStore is an in-memory implementation of app.ScheduleRepository.
type ScheduleStore struct {
	mu        sync.RWMutex
	schedules map[string]domain.ExamSchedule
}

func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{schedules: make(map[string]domain.ExamSchedule)}
}

func (s *ScheduleStore) CreateSchedule(_ context.Context, sc domain.ExamSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[sc.ID] = sc
	return nil
}

func (s *ScheduleStore) GetSchedule(_ context.Context, id string) (domain.ExamSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.schedules[id]
	if !ok {
		return domain.ExamSchedule{}, domain.NotFound("schedule", id)
	}
	return sc, nil
}

func (s *ScheduleStore) UpdateSchedule(_ context.Context, sc domain.ExamSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[sc.ID]; !ok {
		return domain.NotFound("schedule", sc.ID)
	}
	s.schedules[sc.ID] = sc
	return nil
}

func (s *ScheduleStore) DeleteSchedule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return domain.NotFound("schedule", id)
	}
	delete(s.schedules, id)
	return nil
}

func (s *ScheduleStore) ListSchedulesByExam(_ context.Context, examID string) ([]domain.ExamSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ExamSchedule, 0)
	for _, sc := range s.schedules {
		if sc.ExamID == examID {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
