package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/coursemart/internal/model"
)

const userColumns = `id, name, email, password_hash, role, photo_url, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.PhotoURL, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, name, email, password_hash, role, photo_url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.PhotoURL,
	).Scan(&u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// UpdateUserProfile обновляет имя и фотографию пользователя.
func (r *PostgresRepository) UpdateUserProfile(ctx context.Context, id, name, photoURL string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET name = $2, photo_url = $3 WHERE id = $1`,
		id, name, photoURL,
	)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetEnrolledCourses возвращает курсы, на которые записан пользователь, вместе с данными автора.
func (r *PostgresRepository) GetEnrolledCourses(ctx context.Context, userID string) ([]model.CourseSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.title, c.thumbnail, c.price, u.name, u.photo_url
		 FROM user_enrolled_courses e
		 JOIN courses c ON c.id = e.course_id
		 JOIN users u ON u.id = c.creator_id
		 WHERE e.user_id = $1
		 ORDER BY e.enrolled_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select enrolled courses: %w", err)
	}
	defer rows.Close()

	var res []model.CourseSummary
	for rows.Next() {
		var c model.CourseSummary
		if err := rows.Scan(&c.ID, &c.Title, &c.Thumbnail, &c.Price, &c.CreatorName, &c.CreatorPhoto); err != nil {
			return nil, fmt.Errorf("scan enrolled course: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
