package app

import (
	"context"
	"strings"
	"time"

	"exam-submission-service/internal/domain"
)

// ScheduleInput is the payload for creating a schedule.
type ScheduleInput struct {
	ExamID    string     `json:"examId"`
	ClassID   string     `json:"classId"`
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	IsClosed  bool       `json:"isClosed"`
}

// SchedulePatch carries the fields to change; nil means unchanged.
type SchedulePatch struct {
	ExamID    *string    `json:"examId"`
	ClassID   *string    `json:"classId"`
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	IsClosed  *bool      `json:"isClosed"`
}

// ScheduleService owns exam availability windows.
type ScheduleService struct {
	repo ScheduleRepository
	opts options
}

func NewScheduleService(repo ScheduleRepository, opts ...Option) *ScheduleService {
	return &ScheduleService{repo: repo, opts: defaultOptions(opts)}
}

// Create validates and stores a new schedule.
func (s *ScheduleService) Create(ctx context.Context, in ScheduleInput) (domain.ExamSchedule, error) {
	examID := strings.TrimSpace(in.ExamID)
	classID := strings.TrimSpace(in.ClassID)

	var missing []string
	if examID == "" {
		missing = append(missing, "examId")
	}
	if classID == "" {
		missing = append(missing, "classId")
	}
	if in.StartTime == nil || in.StartTime.IsZero() {
		missing = append(missing, "startTime")
	}
	if in.EndTime == nil || in.EndTime.IsZero() {
		missing = append(missing, "endTime")
	}
	if len(missing) > 0 {
		return domain.ExamSchedule{}, &domain.Error{Kind: domain.KindMissingField, Message: "missing required fields", Fields: missing}
	}
	start, end := storedTime(*in.StartTime), storedTime(*in.EndTime)
	if err := checkWindow(start, end); err != nil {
		return domain.ExamSchedule{}, err
	}

	now := s.opts.now()
	schedule := domain.ExamSchedule{
		ID:        s.opts.newID(),
		ExamID:    examID,
		ClassID:   classID,
		StartTime: start,
		EndTime:   end,
		IsClosed:  in.IsClosed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateSchedule(ctx, schedule); err != nil {
		return domain.ExamSchedule{}, err
	}
	return schedule, nil
}

// Update merges patch into the stored schedule and re-validates the window.
func (s *ScheduleService) Update(ctx context.Context, id string, patch SchedulePatch) (domain.ExamSchedule, error) {
	schedule, err := s.repo.GetSchedule(ctx, id)
	if err != nil {
		return domain.ExamSchedule{}, err
	}

	var missing []string
	if patch.ExamID != nil {
		if schedule.ExamID = strings.TrimSpace(*patch.ExamID); schedule.ExamID == "" {
			missing = append(missing, "examId")
		}
	}
	if patch.ClassID != nil {
		if schedule.ClassID = strings.TrimSpace(*patch.ClassID); schedule.ClassID == "" {
			missing = append(missing, "classId")
		}
	}
	if len(missing) > 0 {
		return domain.ExamSchedule{}, &domain.Error{Kind: domain.KindMissingField, Message: "missing required fields", Fields: missing}
	}
	if patch.StartTime != nil {
		schedule.StartTime = storedTime(*patch.StartTime)
	}
	if patch.EndTime != nil {
		schedule.EndTime = storedTime(*patch.EndTime)
	}
	if patch.IsClosed != nil {
		schedule.IsClosed = *patch.IsClosed
	}
	if !schedule.StartTime.IsZero() && !schedule.EndTime.IsZero() {
		if err := checkWindow(schedule.StartTime, schedule.EndTime); err != nil {
			return domain.ExamSchedule{}, err
		}
	}

	schedule.UpdatedAt = s.opts.now()
	if err := s.repo.UpdateSchedule(ctx, schedule); err != nil {
		return domain.ExamSchedule{}, err
	}
	return schedule, nil
}

// Delete removes a schedule. Existing submissions are left untouched.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteSchedule(ctx, id)
}

func (s *ScheduleService) Get(ctx context.Context, id string) (domain.ExamSchedule, error) {
	return s.repo.GetSchedule(ctx, id)
}

func (s *ScheduleService) ListByExam(ctx context.Context, examID string) ([]domain.ExamSchedule, error) {
	return s.repo.ListSchedulesByExam(ctx, examID)
}

// OpenFor returns the first schedule of examID that targets one of classIDs and is open at now.
func (s *ScheduleService) OpenFor(ctx context.Context, examID string, classIDs []string, now time.Time) (domain.ExamSchedule, bool, error) {
	schedules, err := s.repo.ListSchedulesByExam(ctx, examID)
	if err != nil {
		return domain.ExamSchedule{}, false, err
	}
	schedule, ok := openSchedule(schedules, classIDs, now)
	return schedule, ok, nil
}

func openSchedule(schedules []domain.ExamSchedule, classIDs []string, now time.Time) (domain.ExamSchedule, bool) {
	classes := make(map[string]struct{}, len(classIDs))
	for _, id := range classIDs {
		classes[id] = struct{}{}
	}
	for _, sc := range schedules {
		if _, ok := classes[sc.ClassID]; !ok {
			continue
		}
		if sc.IsOpen(now) {
			return sc, true
		}
	}
	return domain.ExamSchedule{}, false
}

// storedTime drops precision below what the stores persist, so the window is checked as stored.
func storedTime(t time.Time) time.Time {
	return t.Truncate(time.Millisecond)
}

func checkWindow(start, end time.Time) error {
	if !end.After(start) {
		return &domain.Error{Kind: domain.KindInvalidWindow, Message: domain.ErrInvalidWindow.Error()}
	}
	return nil
}
