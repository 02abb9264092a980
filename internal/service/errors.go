package service

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/coursemart/internal/repository"
)

// Ошибки бизнес-логики. HTTP-слой сопоставляет их с кодами ответа через errors.Is.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrGateway          = errors.New("payment gateway error")
	ErrInternal         = errors.New("internal error")
)

func invalidArgument(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}

// mapRepoErr переводит ошибки репозитория в ошибки бизнес-логики.
func mapRepoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrCourseNotFound),
		errors.Is(err, repository.ErrLectureNotFound),
		errors.Is(err, repository.ErrPurchaseNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrUserExists):
		return fmt.Errorf("%w: %w", ErrConflict, repository.ErrUserExists)
	default:
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
}
