// Package service реализует бизнес-логику маркетплейса курсов.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/razorpay"
	"github.com/mmeshcher/coursemart/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, u *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id, name, photoURL string) error
	GetEnrolledCourses(ctx context.Context, userID string) ([]model.CourseSummary, error)

	CreateCourse(ctx context.Context, c *model.Course) error
	GetCourse(ctx context.Context, id string) (*model.Course, error)
	GetCoursesByCreator(ctx context.Context, creatorID string) ([]model.Course, error)
	GetPublishedCourses(ctx context.Context) ([]model.Course, error)
	SearchCourses(ctx context.Context, f repository.CourseFilter) ([]model.Course, error)
	UpdateCourse(ctx context.Context, c *model.Course) error
	SetCoursePublished(ctx context.Context, id string, published bool) error

	CreateLecture(ctx context.Context, l *model.Lecture) error
	GetLecture(ctx context.Context, id string) (*model.Lecture, error)
	GetCourseLectures(ctx context.Context, courseID string) ([]model.Lecture, error)
	UpdateLecture(ctx context.Context, l *model.Lecture) error
	DeleteLecture(ctx context.Context, courseID, lectureID string) error

	CreatePurchase(ctx context.Context, p *model.Purchase) error
	SetGatewayOrderID(ctx context.Context, purchaseID, orderID string) error
	CompletePurchase(ctx context.Context, orderID string, unlockLectures bool) (*model.CompletionResult, error)
	ApplyEnrollment(ctx context.Context, userID, courseID string, unlockLectures bool) error
	HasCompletedPurchase(ctx context.Context, userID, courseID string) (bool, error)
	GetCompletedPurchasesByCreator(ctx context.Context, creatorID string) ([]model.PurchasedCourse, error)
	GetPurchasesMissingEnrollment(ctx context.Context, limit int) ([]model.Purchase, error)
}

// PaymentGateway описывает платёжный шлюз, в котором создаются заказы на оплату.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req razorpay.OrderRequest) (*razorpay.Order, error)
	KeyID() string
	KeySecret() string
}

// IdempotencyStore хранит ответы на запросы с ключом идемпотентности.
type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Unlock(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

// Options содержит необязательные параметры сервиса.
type Options struct {
	Logger *zap.Logger
	// Idempotency может быть nil: тогда ключ идемпотентности checkout игнорируется.
	Idempotency    IdempotencyStore
	WebhookSecret  string
	RepairInterval time.Duration
	// LectureGlobalUnlock включает прежнее поведение: после покупки все лекции курса становятся бесплатными.
	// Только с этим флагом завершённая покупка выставляет isPreviewFree = true каждой лекции курса;
	// без него флаги лекций не меняются, а доступ проверяется при выдаче лекции.
	LectureGlobalUnlock bool
}

// Service содержит бизнес-логику маркетплейса курсов.
type Service struct {
	repo           Repository
	gateway        PaymentGateway
	idempotency    IdempotencyStore
	logger         *zap.Logger
	webhookSecret  string
	repairInterval time.Duration
	unlockLectures bool
}

// NewService создаёт новый сервис с указанным репозиторием и платёжным шлюзом.
func NewService(repo Repository, gateway PaymentGateway, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:           repo,
		gateway:        gateway,
		idempotency:    opts.Idempotency,
		logger:         logger,
		webhookSecret:  opts.WebhookSecret,
		repairInterval: opts.RepairInterval,
		unlockLectures: opts.LectureGlobalUnlock,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}
