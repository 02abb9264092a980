package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/repository"
	"github.com/mmeshcher/coursemart/internal/validation"
)

// CourseUpdate содержит редактируемые поля курса. Price == nil оставляет цену без изменений.
type CourseUpdate struct {
	Title       string
	SubTitle    string
	Description string
	Category    string
	Level       string
	Price       *int64
	Thumbnail   string
}

// LectureUpdate содержит редактируемые поля лекции.
type LectureUpdate struct {
	Title         string
	VideoURL      string
	PublicID      string
	IsPreviewFree bool
}

// CreateCourse создаёт курс от имени инструктора.
func (s *Service) CreateCourse(ctx context.Context, userID, title, category string) (*model.Course, error) {
	title = strings.TrimSpace(title)
	category = strings.TrimSpace(category)
	if title == "" || category == "" {
		return nil, invalidArgument("course title and category are required")
	}

	if _, err := s.requireInstructor(ctx, userID); err != nil {
		return nil, err
	}

	c := &model.Course{
		ID:               uuid.NewString(),
		CreatorID:        userID,
		Title:            title,
		Category:         category,
		Lectures:         []string{},
		EnrolledStudents: []string{},
	}
	if err := s.repo.CreateCourse(ctx, c); err != nil {
		return nil, mapRepoErr(err)
	}

	return c, nil
}

// GetCreatorCourses возвращает курсы, созданные пользователем.
func (s *Service) GetCreatorCourses(ctx context.Context, userID string) ([]model.Course, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	courses, err := s.repo.GetCoursesByCreator(ctx, userID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return courses, nil
}

// GetPublishedCourses возвращает опубликованные курсы.
func (s *Service) GetPublishedCourses(ctx context.Context) ([]model.Course, error) {
	courses, err := s.repo.GetPublishedCourses(ctx)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return courses, nil
}

// SearchCourses ищет опубликованные курсы.
func (s *Service) SearchCourses(ctx context.Context, f repository.CourseFilter) ([]model.Course, error) {
	switch f.SortByPrice {
	case repository.PriceOrderNone, repository.PriceOrderLow, repository.PriceOrderHigh:
	default:
		return nil, invalidArgument("sortByPrice must be low or high")
	}

	courses, err := s.repo.SearchCourses(ctx, f)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return courses, nil
}

// GetCourse возвращает курс по идентификатору.
func (s *Service) GetCourse(ctx context.Context, courseID string) (*model.Course, error) {
	if !validation.IsValidID(courseID) {
		return nil, invalidArgument("invalid courseId")
	}
	c, err := s.repo.GetCourse(ctx, courseID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return c, nil
}

// ownedCourse возвращает курс, если пользователь является его автором.
func (s *Service) ownedCourse(ctx context.Context, userID, courseID string) (*model.Course, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	c, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	if c.CreatorID != userID {
		return nil, fmt.Errorf("%w: only the course creator can modify it", ErrForbidden)
	}

	return c, nil
}

// EditCourse обновляет поля курса.
func (s *Service) EditCourse(ctx context.Context, userID, courseID string, upd CourseUpdate) (*model.Course, error) {
	upd.Title = strings.TrimSpace(upd.Title)
	upd.Category = strings.TrimSpace(upd.Category)
	if upd.Title == "" || upd.Category == "" {
		return nil, invalidArgument("course title and category are required")
	}
	if upd.Price != nil && *upd.Price < 0 {
		return nil, invalidArgument("course price must not be negative")
	}

	c, err := s.ownedCourse(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	c.Title = upd.Title
	c.SubTitle = upd.SubTitle
	c.Description = upd.Description
	c.Category = upd.Category
	if upd.Level != "" {
		c.Level = upd.Level
	}
	if upd.Price != nil {
		c.Price = *upd.Price
	}
	if upd.Thumbnail != "" {
		c.Thumbnail = upd.Thumbnail
	}

	if err := s.repo.UpdateCourse(ctx, c); err != nil {
		return nil, mapRepoErr(err)
	}

	return c, nil
}

// SetCoursePublished публикует курс или снимает его с публикации.
func (s *Service) SetCoursePublished(ctx context.Context, userID, courseID string, publish bool) error {
	if _, err := s.ownedCourse(ctx, userID, courseID); err != nil {
		return err
	}
	return mapRepoErr(s.repo.SetCoursePublished(ctx, courseID, publish))
}

// CreateLecture добавляет лекцию в курс.
func (s *Service) CreateLecture(ctx context.Context, userID, courseID, title string) (*model.Lecture, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalidArgument("lecture title is required")
	}

	if _, err := s.ownedCourse(ctx, userID, courseID); err != nil {
		return nil, err
	}

	l := &model.Lecture{
		ID:       uuid.NewString(),
		CourseID: courseID,
		Title:    title,
	}
	if err := s.repo.CreateLecture(ctx, l); err != nil {
		return nil, mapRepoErr(err)
	}

	return l, nil
}

// EditLecture обновляет лекцию курса.
func (s *Service) EditLecture(ctx context.Context, userID, courseID, lectureID string, upd LectureUpdate) (*model.Lecture, error) {
	if !validation.IsValidID(lectureID) {
		return nil, invalidArgument("invalid lectureId")
	}
	if _, err := s.ownedCourse(ctx, userID, courseID); err != nil {
		return nil, err
	}

	l, err := s.repo.GetLecture(ctx, lectureID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if l.CourseID != courseID {
		return nil, mapRepoErr(repository.ErrLectureNotFound)
	}

	if title := strings.TrimSpace(upd.Title); title != "" {
		l.Title = title
	}
	if upd.VideoURL != "" {
		l.VideoURL = upd.VideoURL
		l.PublicID = upd.PublicID
	}
	l.IsPreviewFree = upd.IsPreviewFree

	if err := s.repo.UpdateLecture(ctx, l); err != nil {
		return nil, mapRepoErr(err)
	}

	return l, nil
}

// RemoveLecture удаляет лекцию из курса.
func (s *Service) RemoveLecture(ctx context.Context, userID, courseID, lectureID string) error {
	if !validation.IsValidID(lectureID) {
		return invalidArgument("invalid lectureId")
	}
	if _, err := s.ownedCourse(ctx, userID, courseID); err != nil {
		return err
	}
	return mapRepoErr(s.repo.DeleteLecture(ctx, courseID, lectureID))
}

// GetCourseLectures возвращает лекции курса. Для пользователя без доступа видео скрыто у всех лекций, кроме бесплатных.
func (s *Service) GetCourseLectures(ctx context.Context, userID, courseID string) ([]model.Lecture, error) {
	c, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	lectures, err := s.repo.GetCourseLectures(ctx, courseID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	access, err := s.hasCourseAccess(ctx, userID, c)
	if err != nil {
		return nil, err
	}

	return redactLectures(lectures, access), nil
}

// GetLecture возвращает лекцию, если пользователь купил курс, является его автором или лекция бесплатная.
func (s *Service) GetLecture(ctx context.Context, userID, lectureID string) (*model.Lecture, error) {
	if !validation.IsValidID(lectureID) {
		return nil, invalidArgument("invalid lectureId")
	}

	l, err := s.repo.GetLecture(ctx, lectureID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if l.IsPreviewFree {
		return l, nil
	}

	c, err := s.repo.GetCourse(ctx, l.CourseID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	access, err := s.hasCourseAccess(ctx, userID, c)
	if err != nil {
		return nil, err
	}
	if !access {
		return nil, fmt.Errorf("%w: purchase the course to watch this lecture", ErrForbidden)
	}

	return l, nil
}

// hasCourseAccess проверяет доступ пользователя ко всем лекциям курса: автор или завершённая покупка.
func (s *Service) hasCourseAccess(ctx context.Context, userID string, c *model.Course) (bool, error) {
	if userID == "" {
		return false, nil
	}
	if c.CreatorID == userID {
		return true, nil
	}

	purchased, err := s.repo.HasCompletedPurchase(ctx, userID, c.ID)
	if err != nil {
		return false, mapRepoErr(err)
	}
	return purchased, nil
}

func redactLectures(lectures []model.Lecture, access bool) []model.Lecture {
	res := make([]model.Lecture, 0, len(lectures))
	for _, l := range lectures {
		if !access && !l.IsPreviewFree {
			l.VideoURL = ""
			l.PublicID = ""
		}
		res = append(res, l)
	}
	return res
}
