package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/razorpay"
)

// maxWebhookBody ограничивает размер тела вебхука.
const maxWebhookBody = 1 << 20

const idempotencyKeyHeader = "Idempotency-Key"

type checkoutRequest struct {
	CourseID json.RawMessage `json:"courseId"`
}

// courseID принимает идентификатор строкой, вложенным объектом {"courseId": ...}
// или объектом курса с полем _id.
func (c checkoutRequest) courseID() string {
	var id string
	if err := json.Unmarshal(c.CourseID, &id); err == nil {
		return strings.TrimSpace(id)
	}

	var obj struct {
		CourseID string `json:"courseId"`
		ID       string `json:"_id"`
	}
	if err := json.Unmarshal(c.CourseID, &obj); err != nil {
		return ""
	}
	if obj.CourseID != "" {
		return strings.TrimSpace(obj.CourseID)
	}
	return strings.TrimSpace(obj.ID)
}

type checkoutResponse struct {
	Success         bool   `json:"success"`
	KeyID           string `json:"keyId"`
	OrderID         string `json:"orderId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	CourseTitle     string `json:"courseTitle"`
	CourseThumbnail string `json:"courseThumbnail"`
}

// CreateCheckoutSession создаёт покупку и заказ в платёжном шлюзе для курса из тела запроса.
func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))

	s, err := h.service.CreateCheckoutSession(r.Context(), currentUserID(r), req.courseID(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		Success:         true,
		KeyID:           s.KeyID,
		OrderID:         s.OrderID,
		Amount:          s.Amount,
		Currency:        s.Currency,
		CourseTitle:     s.CourseTitle,
		CourseThumbnail: s.CourseThumbnail,
	})
}

type verifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// VerifyPayment подтверждает оплату по данным формы оплаты и возвращает обновлённый профиль.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	profile, err := h.service.VerifyPayment(r.Context(), currentUserID(r), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		Success: true,
		Message: "Payment verified successfully",
		User:    profile,
	})
}

// RazorpayWebhook принимает события платёжного шлюза. Подпись проверяется по необработанному телу.
func (h *Handler) RazorpayWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	if err := h.service.HandleWebhook(r.Context(), body, r.Header.Get(razorpay.SignatureHeader)); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

type creatorResponse struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoUrl"`
}

type courseDetail struct {
	model.Course
	Creator  creatorResponse `json:"creator"`
	Lectures []model.Lecture `json:"lectures"`
}

type courseDetailResponse struct {
	Course    courseDetail `json:"course"`
	Purchased bool         `json:"purchased"`
}

// GetCourseDetailWithStatus возвращает курс с автором, лекциями и признаком покупки текущим пользователем.
func (h *Handler) GetCourseDetailWithStatus(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.GetCourseDetailWithStatus(r.Context(), currentUserID(r), chi.URLParam(r, "courseId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := courseDetailResponse{
		Course: courseDetail{
			Course:   d.Course,
			Lectures: d.LectureList,
		},
		Purchased: d.Purchased,
	}
	if d.Creator != nil {
		resp.Course.Creator = creatorResponse{ID: d.Creator.ID, Name: d.Creator.Name, PhotoURL: d.Creator.PhotoURL}
	}

	writeJSON(w, http.StatusOK, resp)
}

type instructorPurchasesResponse struct {
	Success         bool                    `json:"success"`
	PurchasedCourse []model.PurchasedCourse `json:"purchasedCourse"`
}

// GetInstructorPurchases возвращает завершённые покупки курсов текущего инструктора.
func (h *Handler) GetInstructorPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.service.GetInstructorPurchases(r.Context(), currentUserID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, instructorPurchasesResponse{Success: true, PurchasedCourse: purchases})
}
