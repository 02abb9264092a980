package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/repository"
	"github.com/mmeshcher/coursemart/internal/service"
)

type createCourseRequest struct {
	Title    string `json:"courseTitle"`
	Category string `json:"category"`
}

type courseResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Course  *model.Course `json:"course"`
}

type coursesResponse struct {
	Success bool           `json:"success"`
	Courses []model.Course `json:"courses"`
}

// CreateCourse создаёт курс от имени текущего инструктора.
func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	c, err := h.service.CreateCourse(r.Context(), currentUserID(r), req.Title, req.Category)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, courseResponse{Success: true, Message: "Course created.", Course: c})
}

// GetCreatorCourses возвращает курсы текущего пользователя.
func (h *Handler) GetCreatorCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.service.GetCreatorCourses(r.Context(), currentUserID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, coursesResponse{Success: true, Courses: courses})
}

// GetPublishedCourses возвращает опубликованные курсы.
func (h *Handler) GetPublishedCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.service.GetPublishedCourses(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, coursesResponse{Success: true, Courses: courses})
}

// SearchCourses ищет опубликованные курсы по строке, категориям и сортирует по цене.
func (h *Handler) SearchCourses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var categories []string
	for _, raw := range q["categories"] {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				categories = append(categories, c)
			}
		}
	}

	courses, err := h.service.SearchCourses(r.Context(), repository.CourseFilter{
		Query:       strings.TrimSpace(q.Get("query")),
		Categories:  categories,
		SortByPrice: repository.PriceOrder(q.Get("sortByPrice")),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, coursesResponse{Success: true, Courses: courses})
}

// GetCourse возвращает курс по идентификатору.
func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCourse(r.Context(), chi.URLParam(r, "courseId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, courseResponse{Success: true, Course: c})
}

type editCourseRequest struct {
	Title       string `json:"courseTitle"`
	SubTitle    string `json:"subTitle"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Level       string `json:"courseLevel"`
	Price       *int64 `json:"coursePrice"`
	Thumbnail   string `json:"courseThumbnail"`
}

// EditCourse обновляет поля курса.
func (h *Handler) EditCourse(w http.ResponseWriter, r *http.Request) {
	var req editCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	c, err := h.service.EditCourse(r.Context(), currentUserID(r), chi.URLParam(r, "courseId"), service.CourseUpdate{
		Title:       req.Title,
		SubTitle:    req.SubTitle,
		Description: req.Description,
		Category:    req.Category,
		Level:       req.Level,
		Price:       req.Price,
		Thumbnail:   req.Thumbnail,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, courseResponse{Success: true, Message: "Course updated successfully.", Course: c})
}

// TogglePublish публикует курс или снимает его с публикации по параметру publish.
func (h *Handler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	publish, err := strconv.ParseBool(r.URL.Query().Get("publish"))
	if err != nil {
		h.badRequest(w, "publish must be true or false")
		return
	}

	if err := h.service.SetCoursePublished(r.Context(), currentUserID(r), chi.URLParam(r, "courseId"), publish); err != nil {
		h.writeError(w, r, err)
		return
	}

	msg := "Course is unpublished."
	if publish {
		msg = "Course is published."
	}
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: msg})
}

type createLectureRequest struct {
	Title string `json:"lectureTitle"`
}

type lectureResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Lecture *model.Lecture `json:"lecture"`
}

type lecturesResponse struct {
	Success  bool            `json:"success"`
	Lectures []model.Lecture `json:"lectures"`
}

// CreateLecture добавляет лекцию в курс.
func (h *Handler) CreateLecture(w http.ResponseWriter, r *http.Request) {
	var req createLectureRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	l, err := h.service.CreateLecture(r.Context(), currentUserID(r), chi.URLParam(r, "courseId"), req.Title)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, lectureResponse{Success: true, Message: "Lecture created successfully.", Lecture: l})
}

type videoInfo struct {
	VideoURL string `json:"videoUrl"`
	PublicID string `json:"publicId"`
}

type editLectureRequest struct {
	Title         string     `json:"lectureTitle"`
	VideoInfo     *videoInfo `json:"videoInfo"`
	IsPreviewFree bool       `json:"isPreviewFree"`
}

// EditLecture обновляет лекцию курса.
func (h *Handler) EditLecture(w http.ResponseWriter, r *http.Request) {
	var req editLectureRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	upd := service.LectureUpdate{Title: req.Title, IsPreviewFree: req.IsPreviewFree}
	if req.VideoInfo != nil {
		upd.VideoURL = req.VideoInfo.VideoURL
		upd.PublicID = req.VideoInfo.PublicID
	}

	l, err := h.service.EditLecture(r.Context(), currentUserID(r), chi.URLParam(r, "courseId"), chi.URLParam(r, "lectureId"), upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lectureResponse{Success: true, Message: "Lecture updated successfully.", Lecture: l})
}

// RemoveLecture удаляет лекцию из курса.
func (h *Handler) RemoveLecture(w http.ResponseWriter, r *http.Request) {
	err := h.service.RemoveLecture(r.Context(), currentUserID(r), chi.URLParam(r, "courseId"), chi.URLParam(r, "lectureId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "Lecture removed successfully."})
}

// GetCourseLectures возвращает лекции курса.
func (h *Handler) GetCourseLectures(w http.ResponseWriter, r *http.Request) {
	lectures, err := h.service.GetCourseLectures(r.Context(), currentUserID(r), chi.URLParam(r, "courseId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lecturesResponse{Success: true, Lectures: lectures})
}

// GetLecture возвращает лекцию, если у пользователя есть к ней доступ.
func (h *Handler) GetLecture(w http.ResponseWriter, r *http.Request) {
	l, err := h.service.GetLecture(r.Context(), currentUserID(r), chi.URLParam(r, "lectureId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lectureResponse{Success: true, Lecture: l})
}
