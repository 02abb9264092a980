package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/razorpay"
	"github.com/mmeshcher/coursemart/internal/repository"
)

type enrollmentKey struct {
	userID   string
	courseID string
}

var _ Repository = (*memRepo)(nil)

// memRepo хранит данные в памяти и повторяет семантику PostgresRepository, включая атомарное завершение покупки.
type memRepo struct {
	mu sync.Mutex

	users     map[string]model.User
	courses   map[string]model.Course
	lectures  map[string]model.Lecture
	purchases map[string]model.Purchase

	userCourses    map[enrollmentKey]bool
	courseStudents map[enrollmentKey]bool

	completeCalls  int
	enrollsApplied int
	failComplete   error
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:          map[string]model.User{},
		courses:        map[string]model.Course{},
		lectures:       map[string]model.Lecture{},
		purchases:      map[string]model.Purchase{},
		userCourses:    map[enrollmentKey]bool{},
		courseStudents: map[enrollmentKey]bool{},
	}
}

func (r *memRepo) Close() error { return nil }

func (r *memRepo) CreateUser(ctx context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return repository.ErrUserExists
		}
	}
	u.CreatedAt = time.Now()
	r.users[u.ID] = *u
	return nil
}

func (r *memRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r *memRepo) UpdateUserProfile(ctx context.Context, id, name, photoURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Name = name
	u.PhotoURL = photoURL
	r.users[id] = u
	return nil
}

func (r *memRepo) GetEnrolledCourses(ctx context.Context, userID string) ([]model.CourseSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.CourseSummary
	for k := range r.userCourses {
		if k.userID != userID {
			continue
		}
		c := r.courses[k.courseID]
		res = append(res, model.CourseSummary{ID: c.ID, Title: c.Title, Thumbnail: c.Thumbnail, Price: c.Price})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (r *memRepo) CreateCourse(ctx context.Context, c *model.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.courses[c.ID] = *c
	return nil
}

// course собирает курс вместе с производными списками лекций и студентов. Вызывать под мьютексом.
func (r *memRepo) course(id string) (model.Course, bool) {
	c, ok := r.courses[id]
	if !ok {
		return c, false
	}

	var lectures []model.Lecture
	for _, l := range r.lectures {
		if l.CourseID == id {
			lectures = append(lectures, l)
		}
	}
	sort.Slice(lectures, func(i, j int) bool { return lectures[i].Position < lectures[j].Position })

	c.Lectures = []string{}
	for _, l := range lectures {
		c.Lectures = append(c.Lectures, l.ID)
	}

	c.EnrolledStudents = []string{}
	for k := range r.courseStudents {
		if k.courseID == id {
			c.EnrolledStudents = append(c.EnrolledStudents, k.userID)
		}
	}
	sort.Strings(c.EnrolledStudents)

	return c, true
}

func (r *memRepo) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.course(id)
	if !ok {
		return nil, repository.ErrCourseNotFound
	}
	return &c, nil
}

func (r *memRepo) listCourses(match func(model.Course) bool) []model.Course {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := []model.Course{}
	for id := range r.courses {
		c, _ := r.course(id)
		if match(c) {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (r *memRepo) GetCoursesByCreator(ctx context.Context, creatorID string) ([]model.Course, error) {
	return r.listCourses(func(c model.Course) bool { return c.CreatorID == creatorID }), nil
}

func (r *memRepo) GetPublishedCourses(ctx context.Context) ([]model.Course, error) {
	return r.listCourses(func(c model.Course) bool { return c.IsPublished }), nil
}

func (r *memRepo) SearchCourses(ctx context.Context, f repository.CourseFilter) ([]model.Course, error) {
	q := strings.ToLower(f.Query)
	res := r.listCourses(func(c model.Course) bool {
		if !c.IsPublished {
			return false
		}
		if q != "" && !strings.Contains(strings.ToLower(c.Title), q) {
			return false
		}
		if len(f.Categories) > 0 {
			found := false
			for _, cat := range f.Categories {
				found = found || cat == c.Category
			}
			return found
		}
		return true
	})
	switch f.SortByPrice {
	case repository.PriceOrderLow:
		sort.SliceStable(res, func(i, j int) bool { return res[i].Price < res[j].Price })
	case repository.PriceOrderHigh:
		sort.SliceStable(res, func(i, j int) bool { return res[i].Price > res[j].Price })
	}
	return res, nil
}

func (r *memRepo) UpdateCourse(ctx context.Context, c *model.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.courses[c.ID]; !ok {
		return repository.ErrCourseNotFound
	}
	r.courses[c.ID] = *c
	return nil
}

func (r *memRepo) SetCoursePublished(ctx context.Context, id string, published bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[id]
	if !ok {
		return repository.ErrCourseNotFound
	}
	c.IsPublished = published
	r.courses[id] = c
	return nil
}

func (r *memRepo) CreateLecture(ctx context.Context, l *model.Lecture) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.courses[l.CourseID]; !ok {
		return repository.ErrCourseNotFound
	}
	pos := 0
	for _, existing := range r.lectures {
		if existing.CourseID == l.CourseID && existing.Position >= pos {
			pos = existing.Position + 1
		}
	}
	l.Position = pos
	r.lectures[l.ID] = *l
	return nil
}

func (r *memRepo) GetLecture(ctx context.Context, id string) (*model.Lecture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lectures[id]
	if !ok {
		return nil, repository.ErrLectureNotFound
	}
	return &l, nil
}

func (r *memRepo) GetCourseLectures(ctx context.Context, courseID string) ([]model.Lecture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.courses[courseID]; !ok {
		return nil, repository.ErrCourseNotFound
	}
	res := []model.Lecture{}
	for _, l := range r.lectures {
		if l.CourseID == courseID {
			res = append(res, l)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Position < res[j].Position })
	return res, nil
}

func (r *memRepo) UpdateLecture(ctx context.Context, l *model.Lecture) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.lectures[l.ID]
	if !ok || existing.CourseID != l.CourseID {
		return repository.ErrLectureNotFound
	}
	r.lectures[l.ID] = *l
	return nil
}

func (r *memRepo) DeleteLecture(ctx context.Context, courseID, lectureID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.lectures[lectureID]
	if !ok || existing.CourseID != courseID {
		return repository.ErrLectureNotFound
	}
	delete(r.lectures, lectureID)
	return nil
}

func (r *memRepo) CreatePurchase(ctx context.Context, p *model.Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.Status = model.PurchaseStatusPending
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.purchases[p.ID] = *p
	return nil
}

func (r *memRepo) SetGatewayOrderID(ctx context.Context, purchaseID, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[purchaseID]
	if !ok || p.GatewayOrderID != "" {
		return repository.ErrPurchaseNotFound
	}
	p.GatewayOrderID = orderID
	r.purchases[purchaseID] = p
	return nil
}

func (r *memRepo) purchaseByOrder(orderID string) (model.Purchase, bool) {
	for _, p := range r.purchases {
		if p.GatewayOrderID == orderID && orderID != "" {
			return p, true
		}
	}
	return model.Purchase{}, false
}

func (r *memRepo) CompletePurchase(ctx context.Context, orderID string, unlockLectures bool) (*model.CompletionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completeCalls++

	if r.failComplete != nil {
		return nil, r.failComplete
	}

	p, ok := r.purchaseByOrder(orderID)
	if !ok {
		return nil, repository.ErrPurchaseNotFound
	}
	if p.Status == model.PurchaseStatusCompleted {
		return &model.CompletionResult{Purchase: p, AlreadyCompleted: true}, nil
	}

	p.Status = model.PurchaseStatusCompleted
	p.UpdatedAt = time.Now()
	r.purchases[p.ID] = p
	r.applyEnrollment(p.UserID, p.CourseID, unlockLectures)

	return &model.CompletionResult{Purchase: p}, nil
}

func (r *memRepo) applyEnrollment(userID, courseID string, unlockLectures bool) {
	r.enrollsApplied++
	if unlockLectures {
		for id, l := range r.lectures {
			if l.CourseID == courseID {
				l.IsPreviewFree = true
				r.lectures[id] = l
			}
		}
	}
	r.userCourses[enrollmentKey{userID, courseID}] = true
	r.courseStudents[enrollmentKey{userID, courseID}] = true
}

func (r *memRepo) ApplyEnrollment(ctx context.Context, userID, courseID string, unlockLectures bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyEnrollment(userID, courseID, unlockLectures)
	return nil
}

func (r *memRepo) HasCompletedPurchase(ctx context.Context, userID, courseID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.purchases {
		if p.UserID == userID && p.CourseID == courseID && p.Status == model.PurchaseStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) GetCompletedPurchasesByCreator(ctx context.Context, creatorID string) ([]model.PurchasedCourse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := []model.PurchasedCourse{}
	for _, p := range r.purchases {
		c, ok := r.courses[p.CourseID]
		if !ok || c.CreatorID != creatorID || p.Status != model.PurchaseStatusCompleted {
			continue
		}
		res = append(res, model.PurchasedCourse{
			Purchase: p,
			Course:   model.CourseSummary{ID: c.ID, Title: c.Title, Thumbnail: c.Thumbnail, Price: c.Price},
		})
	}
	return res, nil
}

func (r *memRepo) GetPurchasesMissingEnrollment(ctx context.Context, limit int) ([]model.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Purchase
	for _, p := range r.purchases {
		if p.Status != model.PurchaseStatusCompleted {
			continue
		}
		k := enrollmentKey{p.UserID, p.CourseID}
		if r.userCourses[k] && r.courseStudents[k] {
			continue
		}
		res = append(res, p)
		if len(res) == limit {
			break
		}
	}
	return res, nil
}

// purchasesFor возвращает покупки пользователя по курсу.
func (r *memRepo) purchasesFor(userID, courseID string) []model.Purchase {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Purchase
	for _, p := range r.purchases {
		if p.UserID == userID && p.CourseID == courseID {
			res = append(res, p)
		}
	}
	return res
}

func (r *memRepo) enrolledStudents(courseID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.courseStudents {
		if k.courseID == courseID {
			n++
		}
	}
	return n
}

type stubGateway struct {
	keyID     string
	keySecret string
	err       error

	mu       sync.Mutex
	requests []razorpay.OrderRequest
	seq      atomic.Int64
}

func (g *stubGateway) CreateOrder(ctx context.Context, req razorpay.OrderRequest) (*razorpay.Order, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	if g.err != nil {
		return nil, g.err
	}

	n := g.seq.Add(1)
	return &razorpay.Order{
		ID:       fmt.Sprintf("order_test_%d", n),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (g *stubGateway) KeyID() string     { return g.keyID }
func (g *stubGateway) KeySecret() string { return g.keySecret }

func (g *stubGateway) orderRequests() []razorpay.OrderRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]razorpay.OrderRequest(nil), g.requests...)
}

type memIdempotency struct {
	mu     sync.Mutex
	locks  map[string]bool
	values map[string]string
	err    error
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{locks: map[string]bool{}, values: map[string]string{}}
}

func (m *memIdempotency) TryLock(ctx context.Context, scope, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	k := scope + ":" + key
	if m.locks[k] {
		return false, nil
	}
	m.locks[k] = true
	return true, nil
}

func (m *memIdempotency) Unlock(ctx context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, scope+":"+key)
	return nil
}

func (m *memIdempotency) Remember(ctx context.Context, scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[scope+":"+key] = value
	return nil
}

func (m *memIdempotency) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.values[scope+":"+key]
	return v, ok, nil
}

var errGatewayDown = errors.New("gateway down")
