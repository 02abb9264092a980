// Package model содержит доменные сущности маркетплейса курсов.
package model

import "time"

// Role описывает роль пользователя на платформе.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
)

// IsValid сообщает, является ли роль одной из поддерживаемых.
func (r Role) IsValid() bool {
	return r == RoleStudent || r == RoleInstructor
}

// User представляет зарегистрированного пользователя платформы.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	PhotoURL     string
	CreatedAt    time.Time
}

// CourseSummary содержит краткое описание курса для профиля и списков.
type CourseSummary struct {
	ID           string `json:"_id"`
	Title        string `json:"courseTitle"`
	Thumbnail    string `json:"courseThumbnail,omitempty"`
	Price        int64  `json:"coursePrice"`
	CreatorName  string `json:"creatorName,omitempty"`
	CreatorPhoto string `json:"creatorPhotoUrl,omitempty"`
}

// Profile описывает пользователя вместе с курсами, на которые он записан.
type Profile struct {
	ID              string          `json:"_id"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Role            Role            `json:"role"`
	PhotoURL        string          `json:"photoUrl"`
	EnrolledCourses []CourseSummary `json:"enrolledCourses"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Course описывает курс в каталоге.
type Course struct {
	ID               string    `json:"_id"`
	CreatorID        string    `json:"creator"`
	Title            string    `json:"courseTitle"`
	SubTitle         string    `json:"subTitle"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	Level            string    `json:"courseLevel"`
	Price            int64     `json:"coursePrice"`
	Thumbnail        string    `json:"courseThumbnail"`
	IsPublished      bool      `json:"isPublished"`
	Lectures         []string  `json:"lectures"`
	EnrolledStudents []string  `json:"enrolledStudents"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Lecture описывает лекцию курса.
type Lecture struct {
	ID            string    `json:"_id"`
	CourseID      string    `json:"courseId"`
	Title         string    `json:"lectureTitle"`
	VideoURL      string    `json:"videoUrl,omitempty"`
	PublicID      string    `json:"publicId,omitempty"`
	IsPreviewFree bool      `json:"isPreviewFree"`
	Position      int       `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PurchaseStatus описывает состояние покупки курса.
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
)

// Purchase описывает покупку курса пользователем.
// Статус меняется только в одну сторону: pending -> completed.
type Purchase struct {
	ID             string         `json:"_id"`
	CourseID       string         `json:"courseId"`
	UserID         string         `json:"userId"`
	Amount         int64          `json:"amount"`
	GatewayOrderID string         `json:"paymentId,omitempty"`
	Status         PurchaseStatus `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// PurchasedCourse описывает завершённую покупку курса инструктора для отчёта.
type PurchasedCourse struct {
	Purchase
	Course CourseSummary `json:"course"`
}

// CompletionResult описывает исход перевода покупки в статус completed.
type CompletionResult struct {
	Purchase Purchase
	// AlreadyCompleted выставляется, если покупка была завершена ранее и побочные эффекты не применялись.
	AlreadyCompleted bool
}
