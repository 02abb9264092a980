package handler

import (
	"net/http"

	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/service"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	User    any    `json:"user"`
}

type publicUser struct {
	ID       string     `json:"_id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
	PhotoURL string     `json:"photoUrl"`
}

func toPublicUser(u *model.User) publicUser {
	return publicUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, PhotoURL: u.PhotoURL}
}

// Register обрабатывает регистрацию нового пользователя и сразу авторизует его.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	u, err := h.service.RegisterUser(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     model.Role(req.Role),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.ID)
	writeJSON(w, http.StatusCreated, userResponse{
		Success: true,
		Message: "Account created successfully.",
		User:    toPublicUser(u),
	})
}

// Login выполняет аутентификацию пользователя и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.ID)
	writeJSON(w, http.StatusOK, userResponse{
		Success: true,
		Message: "Welcome back " + u.Name,
		User:    toPublicUser(u),
	})
}

// Logout удаляет cookie авторизации.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "Logged out successfully."})
}

// GetProfile возвращает профиль текущего пользователя.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProfile(r.Context(), currentUserID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{Success: true, User: p})
}

type updateProfileRequest struct {
	Name     string `json:"name"`
	PhotoURL string `json:"photoUrl"`
}

// UpdateProfile обновляет имя и фотографию текущего пользователя.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	p, err := h.service.UpdateProfile(r.Context(), currentUserID(r), req.Name, req.PhotoURL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		Success: true,
		Message: "Profile updated successfully.",
		User:    p,
	})
}
