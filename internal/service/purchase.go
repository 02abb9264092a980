package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/coursemart/internal/metrics"
	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/razorpay"
	"github.com/mmeshcher/coursemart/internal/validation"
)

const (
	checkoutScope = "checkout"
	// paiseInRupee — множитель перевода цены курса в минимальные единицы валюты шлюза.
	paiseInRupee = 100
)

// CheckoutSession содержит параметры, необходимые клиенту для открытия формы оплаты.
type CheckoutSession struct {
	PurchaseID      string `json:"purchaseId"`
	KeyID           string `json:"keyId"`
	OrderID         string `json:"orderId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	CourseTitle     string `json:"courseTitle"`
	CourseThumbnail string `json:"courseThumbnail"`
}

// CourseDetail описывает курс с лекциями, автором и признаком покупки текущим пользователем.
type CourseDetail struct {
	Course      model.Course
	Creator     *model.User
	LectureList []model.Lecture
	Purchased   bool
}

// CreateCheckoutSession создаёт покупку в статусе pending и заказ в платёжном шлюзе.
// Если передан idempotencyKey и настроено хранилище, повтор запроса с тем же ключом возвращает ту же сессию.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID, courseID, idempotencyKey string) (*CheckoutSession, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if !validation.IsValidID(courseID) {
		return nil, invalidArgument("invalid or missing courseId")
	}

	if idempotencyKey == "" || s.idempotency == nil {
		return s.createCheckoutSession(ctx, userID, courseID)
	}

	return s.createCheckoutSessionOnce(ctx, userID, courseID, idempotencyKey)
}

func (s *Service) createCheckoutSessionOnce(ctx context.Context, userID, courseID, idempotencyKey string) (*CheckoutSession, error) {
	key := userID + ":" + idempotencyKey
	log := s.logger.With(zap.String("userID", userID), zap.String("idempotencyKey", idempotencyKey))

	if raw, found, err := s.idempotency.Recall(ctx, checkoutScope, key); err != nil {
		log.Warn("idempotency store unavailable, proceeding without key", zap.Error(err))
		return s.createCheckoutSession(ctx, userID, courseID)
	} else if found {
		return decodeRememberedSession(raw)
	}

	locked, err := s.idempotency.TryLock(ctx, checkoutScope, key)
	if err != nil {
		log.Warn("idempotency store unavailable, proceeding without key", zap.Error(err))
		return s.createCheckoutSession(ctx, userID, courseID)
	}
	if !locked {
		// Блокировка держится до сохранения ответа, поэтому его можно уже прочитать.
		if raw, found, err := s.idempotency.Recall(ctx, checkoutScope, key); err == nil && found {
			return decodeRememberedSession(raw)
		}
		return nil, fmt.Errorf("%w: checkout with this idempotency key is in progress", ErrConflict)
	}

	session, err := s.createCheckoutSession(ctx, userID, courseID)
	if err != nil {
		if unlockErr := s.idempotency.Unlock(ctx, checkoutScope, key); unlockErr != nil {
			log.Warn("release idempotency key", zap.Error(unlockErr))
		}
		return nil, err
	}

	raw, err := json.Marshal(session)
	if err == nil {
		err = s.idempotency.Remember(ctx, checkoutScope, key, string(raw))
	}
	if err != nil {
		log.Warn("remember checkout session", zap.Error(err))
	}

	return session, nil
}

func decodeRememberedSession(raw string) (*CheckoutSession, error) {
	var session CheckoutSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("%w: decode remembered checkout session: %w", ErrInternal, err)
	}
	return &session, nil
}

func (s *Service) createCheckoutSession(ctx context.Context, userID, courseID string) (*CheckoutSession, error) {
	log := s.logger.With(zap.String("userID", userID), zap.String("courseID", courseID))

	course, err := s.repo.GetCourse(ctx, courseID)
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues("error").Inc()
		return nil, mapRepoErr(err)
	}
	if course.Price <= 0 {
		metrics.CheckoutSessions.WithLabelValues("rejected").Inc()
		return nil, invalidArgument("course is not available for purchase")
	}

	purchase := &model.Purchase{
		ID:       uuid.NewString(),
		CourseID: courseID,
		UserID:   userID,
		Amount:   course.Price,
	}
	if err := s.repo.CreatePurchase(ctx, purchase); err != nil {
		metrics.CheckoutSessions.WithLabelValues("error").Inc()
		return nil, mapRepoErr(err)
	}

	if s.gateway == nil {
		metrics.CheckoutSessions.WithLabelValues("gateway_error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrGateway, razorpay.ErrNotConfigured)
	}

	order, err := s.gateway.CreateOrder(ctx, razorpay.OrderRequest{
		Amount:   purchase.Amount * paiseInRupee,
		Currency: razorpay.CurrencyINR,
		Receipt:  receiptLabel(courseID, userID),
		Notes: map[string]string{
			"courseId":   courseID,
			"userId":     userID,
			"purchaseId": purchase.ID,
		},
	})
	if err != nil {
		// Покупка остаётся pending без заказа: клиент повторяет checkout, создавая новую покупку.
		metrics.CheckoutSessions.WithLabelValues("gateway_error").Inc()
		log.Warn("create gateway order", zap.String("purchaseID", purchase.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}

	if err := s.repo.SetGatewayOrderID(ctx, purchase.ID, order.ID); err != nil {
		metrics.CheckoutSessions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	metrics.CheckoutSessions.WithLabelValues("created").Inc()
	log.Info("checkout session created",
		zap.String("purchaseID", purchase.ID),
		zap.String("orderID", order.ID),
		zap.Int64("amount", order.Amount),
	)

	return &CheckoutSession{
		PurchaseID:      purchase.ID,
		KeyID:           s.gateway.KeyID(),
		OrderID:         order.ID,
		Amount:          order.Amount,
		Currency:        order.Currency,
		CourseTitle:     course.Title,
		CourseThumbnail: course.Thumbnail,
	}, nil
}

// receiptLabel формирует метку квитанции для сверки на стороне шлюза. Уникальность не гарантируется.
func receiptLabel(courseID, userID string) string {
	return "rcpt_" + lastN(courseID, 6) + "_" + lastN(userID, 6)
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// VerifyPayment подтверждает оплату по данным, которые клиент получил от формы оплаты, и возвращает обновлённый профиль.
func (s *Service) VerifyPayment(ctx context.Context, userID, orderID, paymentID, signature string) (*model.Profile, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if orderID == "" || paymentID == "" || signature == "" {
		return nil, invalidArgument("missing payment details")
	}

	var secret string
	if s.gateway != nil {
		secret = s.gateway.KeySecret()
	}
	if !razorpay.VerifyPaymentSignature(secret, orderID, paymentID, signature) {
		metrics.PaymentConfirmations.WithLabelValues(metrics.SourceClient, "invalid_signature").Inc()
		s.logger.Warn("payment signature mismatch", zap.String("orderID", orderID), zap.String("userID", userID))
		return nil, ErrInvalidSignature
	}

	if _, err := s.ConfirmPayment(ctx, orderID, metrics.SourceClient); err != nil {
		return nil, err
	}

	return s.GetProfile(ctx, userID)
}

// HandleWebhook обрабатывает вебхук платёжного шлюза. Подпись проверяется по необработанному телу запроса.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if s.webhookSecret == "" {
		return fmt.Errorf("%w: webhook secret not configured", ErrInternal)
	}

	if !razorpay.VerifyWebhookSignature(s.webhookSecret, body, signature) {
		metrics.PaymentConfirmations.WithLabelValues(metrics.SourceWebhook, "invalid_signature").Inc()
		s.logger.Warn("webhook signature mismatch", zap.Bool("signaturePresent", signature != ""))
		return ErrInvalidSignature
	}

	event, err := razorpay.ParseWebhookEvent(body)
	if err != nil {
		return invalidArgument(err.Error())
	}

	if event.Event != razorpay.EventPaymentCaptured {
		s.logger.Debug("webhook event ignored", zap.String("event", event.Event))
		return nil
	}

	orderID := event.Payload.Payment.Entity.OrderID
	if orderID == "" {
		return invalidArgument("order_id missing in webhook payload")
	}

	_, err = s.ConfirmPayment(ctx, orderID, metrics.SourceWebhook)
	return err
}

// ConfirmPayment переводит покупку по заказу шлюза в статус completed и записывает пользователя на курс.
// Повторный вызов для уже завершённой покупки ничего не меняет и считается успешным.
func (s *Service) ConfirmPayment(ctx context.Context, orderID, source string) (*model.CompletionResult, error) {
	log := s.logger.With(zap.String("orderID", orderID), zap.String("source", source))

	res, err := s.repo.CompletePurchase(ctx, orderID, s.unlockLectures)
	if err != nil {
		err = mapRepoErr(err)
		if errors.Is(err, ErrNotFound) {
			metrics.PaymentConfirmations.WithLabelValues(source, "not_found").Inc()
			log.Warn("purchase not found for order")
		} else {
			metrics.PaymentConfirmations.WithLabelValues(source, "error").Inc()
			log.Error("complete purchase", zap.Error(err))
		}
		return nil, err
	}

	if res.AlreadyCompleted {
		metrics.PaymentConfirmations.WithLabelValues(source, "duplicate").Inc()
		log.Info("purchase already completed")
		return res, nil
	}

	metrics.PaymentConfirmations.WithLabelValues(source, "completed").Inc()
	log.Info("purchase completed",
		zap.String("purchaseID", res.Purchase.ID),
		zap.String("userID", res.Purchase.UserID),
		zap.String("courseID", res.Purchase.CourseID),
	)

	return res, nil
}

// GetCourseDetailWithStatus возвращает курс с лекциями и признаком того, что пользователь его купил.
func (s *Service) GetCourseDetailWithStatus(ctx context.Context, userID, courseID string) (*CourseDetail, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	course, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	creator, err := s.repo.GetUserByID(ctx, course.CreatorID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	lectures, err := s.repo.GetCourseLectures(ctx, courseID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	purchased, err := s.repo.HasCompletedPurchase(ctx, userID, courseID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	return &CourseDetail{
		Course:      *course,
		Creator:     creator,
		LectureList: redactLectures(lectures, purchased || course.CreatorID == userID),
		Purchased:   purchased,
	}, nil
}

// GetInstructorPurchases возвращает завершённые покупки курсов инструктора.
func (s *Service) GetInstructorPurchases(ctx context.Context, userID string) ([]model.PurchasedCourse, error) {
	if _, err := s.requireInstructor(ctx, userID); err != nil {
		return nil, err
	}

	purchases, err := s.repo.GetCompletedPurchasesByCreator(ctx, userID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if purchases == nil {
		purchases = []model.PurchasedCourse{}
	}
	return purchases, nil
}
