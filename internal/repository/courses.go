package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/coursemart/internal/model"
)

const courseColumns = `id, creator_id, title, sub_title, description, category, level, price, thumbnail,
	is_published, created_at, updated_at`

// PriceOrder задаёт сортировку каталога по цене.
type PriceOrder string

const (
	PriceOrderNone PriceOrder = ""
	PriceOrderLow  PriceOrder = "low"
	PriceOrderHigh PriceOrder = "high"
)

// CourseFilter описывает параметры поиска опубликованных курсов.
type CourseFilter struct {
	Query       string
	Categories  []string
	SortByPrice PriceOrder
}

func scanCourse(row pgx.Row) (*model.Course, error) {
	var c model.Course
	err := row.Scan(&c.ID, &c.CreatorID, &c.Title, &c.SubTitle, &c.Description, &c.Category, &c.Level,
		&c.Price, &c.Thumbnail, &c.IsPublished, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectCourses(rows pgx.Rows) ([]model.Course, error) {
	defer rows.Close()

	var res []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		res = append(res, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func collectStrings(rows pgx.Rows) ([]string, error) {
	defer rows.Close()

	res := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

// CreateCourse создаёт курс.
func (r *PostgresRepository) CreateCourse(ctx context.Context, c *model.Course) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO courses (id, creator_id, title, category)
		 VALUES ($1, $2, $3, $4)
		 RETURNING level, created_at, updated_at`,
		c.ID, c.CreatorID, c.Title, c.Category,
	).Scan(&c.Level, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// GetCourse возвращает курс вместе со списком лекций и записанных студентов.
func (r *PostgresRepository) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	c, err := scanCourse(r.pool.QueryRow(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("get course: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id FROM lectures WHERE course_id = $1 ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("select course lectures: %w", err)
	}
	if c.Lectures, err = collectStrings(rows); err != nil {
		return nil, fmt.Errorf("scan course lectures: %w", err)
	}

	rows, err = r.pool.Query(ctx,
		`SELECT user_id FROM course_enrolled_students WHERE course_id = $1 ORDER BY enrolled_at`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("select enrolled students: %w", err)
	}
	if c.EnrolledStudents, err = collectStrings(rows); err != nil {
		return nil, fmt.Errorf("scan enrolled students: %w", err)
	}

	return c, nil
}

// GetCoursesByCreator возвращает курсы инструктора.
func (r *PostgresRepository) GetCoursesByCreator(ctx context.Context, creatorID string) ([]model.Course, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE creator_id = $1 ORDER BY created_at DESC`,
		creatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("select creator courses: %w", err)
	}
	return collectCourses(rows)
}

// GetPublishedCourses возвращает все опубликованные курсы.
func (r *PostgresRepository) GetPublishedCourses(ctx context.Context) ([]model.Course, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE is_published ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select published courses: %w", err)
	}
	return collectCourses(rows)
}

// SearchCourses ищет опубликованные курсы по названию, подзаголовку и категории.
func (r *PostgresRepository) SearchCourses(ctx context.Context, f CourseFilter) ([]model.Course, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + courseColumns + ` FROM courses
		WHERE is_published
		  AND (title ILIKE $1 OR sub_title ILIKE $1 OR category ILIKE $1)`)

	args := []any{"%" + escapeLike(f.Query) + "%"}

	if len(f.Categories) > 0 {
		args = append(args, f.Categories)
		sb.WriteString(fmt.Sprintf(` AND category = ANY($%d)`, len(args)))
	}

	switch f.SortByPrice {
	case PriceOrderLow:
		sb.WriteString(` ORDER BY price ASC, created_at DESC`)
	case PriceOrderHigh:
		sb.WriteString(` ORDER BY price DESC, created_at DESC`)
	default:
		sb.WriteString(` ORDER BY created_at DESC`)
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search courses: %w", err)
	}
	return collectCourses(rows)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// UpdateCourse обновляет редактируемые поля курса.
func (r *PostgresRepository) UpdateCourse(ctx context.Context, c *model.Course) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE courses
		 SET title = $2, sub_title = $3, description = $4, category = $5, level = $6, price = $7,
		     thumbnail = $8, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		c.ID, c.Title, c.SubTitle, c.Description, c.Category, c.Level, c.Price, c.Thumbnail,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCourseNotFound
		}
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// SetCoursePublished меняет признак публикации курса.
func (r *PostgresRepository) SetCoursePublished(ctx context.Context, id string, published bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE courses SET is_published = $2, updated_at = now() WHERE id = $1`,
		id, published,
	)
	if err != nil {
		return fmt.Errorf("update course publish status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCourseNotFound
	}
	return nil
}
