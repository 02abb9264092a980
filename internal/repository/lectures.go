package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/coursemart/internal/model"
)

const lectureColumns = `id, course_id, title, video_url, public_id, is_preview_free, position, created_at`

func scanLecture(row pgx.Row) (*model.Lecture, error) {
	var l model.Lecture
	err := row.Scan(&l.ID, &l.CourseID, &l.Title, &l.VideoURL, &l.PublicID, &l.IsPreviewFree, &l.Position, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLecture добавляет лекцию в конец списка лекций курса.
func (r *PostgresRepository) CreateLecture(ctx context.Context, l *model.Lecture) error {
	return r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		// Блокируем строку курса, чтобы параллельные вставки не получили одинаковую позицию.
		var dummy int
		err := tx.QueryRow(ctx, `SELECT 1 FROM courses WHERE id = $1 FOR UPDATE`, l.CourseID).Scan(&dummy)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrCourseNotFound
			}
			return fmt.Errorf("lock course for update: %w", err)
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO lectures (id, course_id, title, position)
			 VALUES ($1, $2, $3, (SELECT COALESCE(MAX(position), 0) + 1 FROM lectures WHERE course_id = $2))
			 RETURNING position, created_at`,
			l.ID, l.CourseID, l.Title,
		).Scan(&l.Position, &l.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert lecture: %w", err)
		}

		_, err = tx.Exec(ctx, `UPDATE courses SET updated_at = now() WHERE id = $1`, l.CourseID)
		if err != nil {
			return fmt.Errorf("touch course: %w", err)
		}
		return nil
	})
}

// GetLecture возвращает лекцию по идентификатору.
func (r *PostgresRepository) GetLecture(ctx context.Context, id string) (*model.Lecture, error) {
	l, err := scanLecture(r.pool.QueryRow(ctx,
		`SELECT `+lectureColumns+` FROM lectures WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLectureNotFound
		}
		return nil, fmt.Errorf("get lecture: %w", err)
	}
	return l, nil
}

// GetCourseLectures возвращает лекции курса в порядке их следования.
func (r *PostgresRepository) GetCourseLectures(ctx context.Context, courseID string) ([]model.Lecture, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+lectureColumns+` FROM lectures WHERE course_id = $1 ORDER BY position`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("select lectures: %w", err)
	}
	defer rows.Close()

	res := []model.Lecture{}
	for rows.Next() {
		l, err := scanLecture(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lecture: %w", err)
		}
		res = append(res, *l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateLecture обновляет лекцию курса.
func (r *PostgresRepository) UpdateLecture(ctx context.Context, l *model.Lecture) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE lectures
		 SET title = $3, video_url = $4, public_id = $5, is_preview_free = $6
		 WHERE id = $1 AND course_id = $2`,
		l.ID, l.CourseID, l.Title, l.VideoURL, l.PublicID, l.IsPreviewFree,
	)
	if err != nil {
		return fmt.Errorf("update lecture: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLectureNotFound
	}
	return nil
}

// DeleteLecture удаляет лекцию из курса.
func (r *PostgresRepository) DeleteLecture(ctx context.Context, courseID, lectureID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM lectures WHERE id = $1 AND course_id = $2`,
		lectureID, courseID,
	)
	if err != nil {
		return fmt.Errorf("delete lecture: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLectureNotFound
	}
	return nil
}
