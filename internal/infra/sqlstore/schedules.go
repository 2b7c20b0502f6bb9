package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"exam-submission-service/internal/domain"
)

// ScheduleStore implements app.ScheduleRepository.
type ScheduleStore struct {
	db *sql.DB
}

const scheduleColumns = `id,exam_id,class_id,start_time,end_time,is_closed,created_at,updated_at`

func (s *ScheduleStore) CreateSchedule(ctx context.Context, sc domain.ExamSchedule) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO exam_schedules (`+scheduleColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		sc.ID, sc.ExamID, sc.ClassID, toMillis(sc.StartTime), toMillis(sc.EndTime), boolInt(sc.IsClosed),
		toMillis(sc.CreatedAt), toMillis(sc.UpdatedAt))
	return err
}

func (s *ScheduleStore) GetSchedule(ctx context.Context, id string) (domain.ExamSchedule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM exam_schedules WHERE id=$1`, id)
	sc, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExamSchedule{}, notFound("schedule", id)
	}
	return sc, err
}

func (s *ScheduleStore) UpdateSchedule(ctx context.Context, sc domain.ExamSchedule) error {
	res, err := s.db.ExecContext(ctx, `UPDATE exam_schedules
		SET exam_id=$1, class_id=$2, start_time=$3, end_time=$4, is_closed=$5, updated_at=$6
		WHERE id=$7`,
		sc.ExamID, sc.ClassID, toMillis(sc.StartTime), toMillis(sc.EndTime), boolInt(sc.IsClosed),
		toMillis(sc.UpdatedAt), sc.ID)
	if err != nil {
		return err
	}
	return checkAffected(res, "schedule", sc.ID)
}

func (s *ScheduleStore) DeleteSchedule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exam_schedules WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return checkAffected(res, "schedule", id)
}

func (s *ScheduleStore) ListSchedulesByExam(ctx context.Context, examID string) ([]domain.ExamSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+scheduleColumns+` FROM exam_schedules
		WHERE exam_id=$1 ORDER BY start_time, id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ExamSchedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row scanner) (domain.ExamSchedule, error) {
	var (
		sc                       domain.ExamSchedule
		start, end, created, upd int64
		closed                   int
	)
	if err := row.Scan(&sc.ID, &sc.ExamID, &sc.ClassID, &start, &end, &closed, &created, &upd); err != nil {
		return domain.ExamSchedule{}, err
	}
	sc.StartTime, sc.EndTime = fromMillis(start), fromMillis(end)
	sc.IsClosed = closed != 0
	sc.CreatedAt, sc.UpdatedAt = fromMillis(created), fromMillis(upd)
	return sc, nil
}

func notFound(entity, id string) error {
	return domain.NotFound(entity, id)
}
