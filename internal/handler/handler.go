// Package handler содержит HTTP-обработчики API маркетплейса курсов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/coursemart/internal/middleware"
	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/repository"
	"github.com/mmeshcher/coursemart/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, in service.RegisterInput) (*model.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, userID, name, photoURL string) (*model.Profile, error)

	CreateCourse(ctx context.Context, userID, title, category string) (*model.Course, error)
	GetCreatorCourses(ctx context.Context, userID string) ([]model.Course, error)
	GetPublishedCourses(ctx context.Context) ([]model.Course, error)
	SearchCourses(ctx context.Context, f repository.CourseFilter) ([]model.Course, error)
	GetCourse(ctx context.Context, courseID string) (*model.Course, error)
	EditCourse(ctx context.Context, userID, courseID string, upd service.CourseUpdate) (*model.Course, error)
	SetCoursePublished(ctx context.Context, userID, courseID string, publish bool) error

	CreateLecture(ctx context.Context, userID, courseID, title string) (*model.Lecture, error)
	EditLecture(ctx context.Context, userID, courseID, lectureID string, upd service.LectureUpdate) (*model.Lecture, error)
	RemoveLecture(ctx context.Context, userID, courseID, lectureID string) error
	GetCourseLectures(ctx context.Context, userID, courseID string) ([]model.Lecture, error)
	GetLecture(ctx context.Context, userID, lectureID string) (*model.Lecture, error)

	CreateCheckoutSession(ctx context.Context, userID, courseID, idempotencyKey string) (*service.CheckoutSession, error)
	VerifyPayment(ctx context.Context, userID, orderID, paymentID, signature string) (*model.Profile, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	GetCourseDetailWithStatus(ctx context.Context, userID, courseID string) (*service.CourseDetail, error)
	GetInstructorPurchases(ctx context.Context, userID string) ([]model.PurchasedCourse, error)
}

// Pinger проверяет доступность зависимостей для /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler реализует HTTP-обработчики API маркетплейса курсов.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	frontendURL    string
	pingers        []Pinger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, frontendURL string, pingers ...Pinger) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		frontendURL:    frontendURL,
		pingers:        pingers,
	}
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeError сопоставляет ошибку бизнес-логики с кодом ответа. Внутренние ошибки не раскрываются клиенту.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "Internal server error"

	switch {
	case errors.Is(err, service.ErrInvalidArgument), errors.Is(err, service.ErrInvalidSignature):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrForbidden):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrGateway):
		status, msg = http.StatusBadGateway, "Payment gateway is unavailable"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	writeJSON(w, status, statusResponse{Success: false, Message: msg})
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: msg})
}

func currentUserID(r *http.Request) string {
	id, _ := middleware.GetUserIDFromContext(r.Context())
	return id
}

// Health сообщает о готовности сервиса.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	for _, p := range h.pingers {
		if err := p.Ping(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
