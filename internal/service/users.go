package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/repository"
	"github.com/mmeshcher/coursemart/internal/validation"
)

// RegisterInput содержит данные для регистрации пользователя.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     model.Role
}

// RegisterUser регистрирует нового пользователя. По умолчанию пользователь получает роль student.
func (s *Service) RegisterUser(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, invalidArgument("all fields are required")
	}
	if !validation.IsValidEmail(in.Email) {
		return nil, invalidArgument("invalid email")
	}
	if in.Role == "" {
		in.Role = model.RoleStudent
	}
	if !in.Role.IsValid() {
		return nil, invalidArgument("invalid role selected")
	}

	hashed, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hashed,
		Role:         in.Role,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, mapRepoErr(err)
	}

	return u, nil
}

// AuthenticateUser проверяет email и пароль пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, invalidArgument("all fields are required")
	}

	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: incorrect email or password", ErrUnauthorized)
		}
		return nil, mapRepoErr(err)
	}

	if !verifyPassword(password, u.PasswordHash) {
		return nil, fmt.Errorf("%w: incorrect email or password", ErrUnauthorized)
	}

	return u, nil
}

// GetProfile возвращает профиль пользователя вместе с курсами, на которые он записан.
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	courses, err := s.repo.GetEnrolledCourses(ctx, userID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if courses == nil {
		courses = []model.CourseSummary{}
	}

	return &model.Profile{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Role:            u.Role,
		PhotoURL:        u.PhotoURL,
		EnrolledCourses: courses,
		CreatedAt:       u.CreatedAt,
	}, nil
}

// UpdateProfile обновляет имя и фотографию пользователя. Пустые значения оставляют поле без изменений.
func (s *Service) UpdateProfile(ctx context.Context, userID, name, photoURL string) (*model.Profile, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	if name = strings.TrimSpace(name); name == "" {
		name = u.Name
	}
	if photoURL = strings.TrimSpace(photoURL); photoURL == "" {
		photoURL = u.PhotoURL
	}

	if err := s.repo.UpdateUserProfile(ctx, userID, name, photoURL); err != nil {
		return nil, mapRepoErr(err)
	}

	return s.GetProfile(ctx, userID)
}

func (s *Service) requireInstructor(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, mapRepoErr(err)
	}

	if u.Role != model.RoleInstructor {
		return nil, fmt.Errorf("%w: instructor role required", ErrForbidden)
	}

	return u, nil
}
