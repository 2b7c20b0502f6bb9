package app

import (
	"context"

	"exam-submission-service/internal/domain"
)

// Aggregate computes statistics over subs. It never divides by zero: an empty set
// averages to 0. Only observed statuses appear in the distribution.
func Aggregate(subs []domain.Submission) domain.Statistics {
	stats := domain.Statistics{StatusDistribution: make(map[domain.SubmissionStatus]int)}
	sum := 0.0
	for _, sub := range subs {
		stats.Total++
		if sub.IsGraded {
			stats.Graded++
		}
		if sub.Status == domain.StatusPending {
			stats.Pending++
		}
		stats.StatusDistribution[sub.Status]++
		sum += sub.Score
	}
	if stats.Total > 0 {
		stats.AverageScore = sum / float64(stats.Total)
	}
	return stats
}

// StatisticsService recomputes aggregates from the store on every call.
type StatisticsService struct {
	submissions SubmissionRepository
}

func NewStatisticsService(submissions SubmissionRepository) *StatisticsService {
	return &StatisticsService{submissions: submissions}
}

func (s *StatisticsService) Overall(ctx context.Context) (domain.Statistics, error) {
	return s.compute(ctx, SubmissionFilter{})
}

func (s *StatisticsService) ForExam(ctx context.Context, examID string) (domain.Statistics, error) {
	return s.compute(ctx, SubmissionFilter{ExamID: examID})
}

func (s *StatisticsService) ForStudent(ctx context.Context, studentID string) (domain.Statistics, error) {
	return s.compute(ctx, SubmissionFilter{StudentID: studentID})
}

func (s *StatisticsService) compute(ctx context.Context, filter SubmissionFilter) (domain.Statistics, error) {
	subs, err := s.submissions.ListSubmissions(ctx, filter)
	if err != nil {
		return domain.Statistics{}, err
	}
	return Aggregate(subs), nil
}
