package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/coursemart/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware маркетплейса курсов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.Metrics)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(custommiddleware.CORS(h.frontendURL))
		r.Use(custommiddleware.GzipMiddleware)

		r.Route("/user", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Get("/logout", h.Logout)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.Get("/profile", h.GetProfile)
				r.Put("/profile/update", h.UpdateProfile)
			})
		})

		r.Route("/course", func(r chi.Router) {
			r.Get("/published-courses", h.GetPublishedCourses)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.Post("/", h.CreateCourse)
				r.Get("/", h.GetCreatorCourses)
				r.Get("/search", h.SearchCourses)
				r.Get("/lecture/{lectureId}", h.GetLecture)

				r.Get("/{courseId}", h.GetCourse)
				r.Put("/{courseId}", h.EditCourse)
				r.Patch("/{courseId}", h.TogglePublish)

				r.Post("/{courseId}/lecture", h.CreateLecture)
				r.Get("/{courseId}/lecture", h.GetCourseLectures)
				r.Put("/{courseId}/lecture/{lectureId}", h.EditLecture)
				r.Delete("/{courseId}/lecture/{lectureId}", h.RemoveLecture)
			})
		})

		r.Route("/purchase", func(r chi.Router) {
			// Вебхук аутентифицируется подписью, а не cookie.
			r.Post("/razorpay-webhook", h.RazorpayWebhook)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.Post("/checkout/create-checkout-session", h.CreateCheckoutSession)
				r.Post("/verify-payment", h.VerifyPayment)
				r.Get("/course/{courseId}/detail-with-status", h.GetCourseDetailWithStatus)
				r.Get("/", h.GetInstructorPurchases)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, statusResponse{Success: false, Message: http.StatusText(http.StatusNotFound)})
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, statusResponse{Success: false, Message: http.StatusText(http.StatusMethodNotAllowed)})
	})

	return r
}
