package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/edulearn/order-service/internal/clients"
	"github.com/edulearn/order-service/internal/domain"
	"github.com/edulearn/order-service/internal/pricing"
	"github.com/edulearn/order-service/internal/repository"
	"github.com/edulearn/order-service/internal/telemetry"
)

// --- in-memory fakes shared by the use case tests ---

type fakeOrders struct {
	mu      sync.Mutex
	orders  map[string]*domain.Order
	saveErr []error // consumed per Save call, nil means success
	saves   int
	// missIdemLookups forces that many FindByIdempotencyKey calls to miss,
	// simulating a writer that becomes visible between lookup and save.
	missIdemLookups int
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[string]*domain.Order)}
}

func (r *fakeOrders) Save(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if len(r.saveErr) > 0 {
		err := r.saveErr[0]
		r.saveErr = r.saveErr[1:]
		if err != nil {
			return err
		}
	}
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeOrders) FindByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrders) FindByIdempotencyKey(_ context.Context, key string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missIdemLookups > 0 {
		r.missIdemLookups--
		return nil, domain.ErrOrderNotFound
	}
	for _, o := range r.orders {
		if o.IdempotencyKey == key {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *fakeOrders) FindByUserID(_ context.Context, userID string, _ repository.ListQuery) ([]*domain.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeOrders) RevenueStats(context.Context) (*repository.RevenueStats, error) {
	return &repository.RevenueStats{Currency: "USD"}, nil
}

type fakeBookings struct {
	mu       sync.Mutex
	bookings map[string]*domain.SessionBooking
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{bookings: make(map[string]*domain.SessionBooking)}
}

func (r *fakeBookings) Save(_ context.Context, b *domain.SessionBooking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.bookings[b.ID] = &cp
	return nil
}

func (r *fakeBookings) FindByID(_ context.Context, id string) (*domain.SessionBooking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBookings) CountConfirmedForSession(_ context.Context, sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.bookings {
		if b.SessionID == sessionID && b.Status == domain.BookingConfirmed {
			n++
		}
	}
	return n, nil
}

type fakeUsers struct {
	users map[string]bool
}

func (c *fakeUsers) GetUser(_ context.Context, id string) (*clients.User, error) {
	if !c.users[id] {
		return nil, domain.ErrUserNotFound
	}
	return &clients.User{ID: id}, nil
}

type fakeSessions struct {
	slots map[string]int
}

func (c *fakeSessions) GetAvailableSlots(_ context.Context, id string) (int, error) {
	n, ok := c.slots[id]
	if !ok {
		return 0, domain.ErrSessionNotFound
	}
	return n, nil
}

type fakeCourses struct {
	courses  map[string]clients.CourseInfo
	enrolled map[string]bool
}

func (c *fakeCourses) GetCourse(_ context.Context, id string) (*clients.CourseInfo, error) {
	info, ok := c.courses[id]
	if !ok {
		return nil, &domain.UnavailableCoursesError{
			Courses: []domain.CourseStatus{{CourseID: id, Status: "not_found"}},
		}
	}
	return &info, nil
}

func (c *fakeCourses) GetCoursesByIDs(_ context.Context, ids []string) ([]clients.CourseInfo, error) {
	var out []clients.CourseInfo
	for _, id := range ids {
		if info, ok := c.courses[id]; ok {
			out = append(out, info)
		}
	}
	return out, nil
}

func (c *fakeCourses) IsUserEnrolled(_ context.Context, userID, courseID string) (bool, error) {
	return c.enrolled[userID+"/"+courseID], nil
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (string, error)             { return "", nil }
func (noopCache) GetMany(_ context.Context, keys []string) ([]string, error) {
	return make([]string, len(keys)), nil
}
func (noopCache) Set(context.Context, string, string, time.Duration) error          { return nil }
func (noopCache) SetMany(context.Context, map[string]string, time.Duration) error   { return nil }
func (noopCache) Delete(context.Context, ...string) error                           { return nil }
func (noopCache) DeletePattern(context.Context, string) error                       { return nil }
func (noopCache) Lock(context.Context, string, time.Duration) (func(ctx context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

type recordedEvent struct {
	topic string
	key   string
	event any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	errs   []error // consumed per Publish call
}

func (p *fakePublisher) Publish(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return err
		}
	}
	p.events = append(p.events, recordedEvent{topic: topic, key: key, event: event})
	return nil
}

func (p *fakePublisher) byTopic(topic string) []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []recordedEvent
	for _, e := range p.events {
		if e.topic == topic {
			out = append(out, e)
		}
	}
	return out
}

type env struct {
	svc       *Service
	orders    *fakeOrders
	bookings  *fakeBookings
	users     *fakeUsers
	courses   *fakeCourses
	sessions  *fakeSessions
	publisher *fakePublisher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())

	e := &env{
		orders:    newFakeOrders(),
		bookings:  newFakeBookings(),
		users:     &fakeUsers{users: map[string]bool{"user-1": true}},
		courses:   &fakeCourses{courses: map[string]clients.CourseInfo{}, enrolled: map[string]bool{}},
		sessions:  &fakeSessions{slots: map[string]int{}},
		publisher: &fakePublisher{},
	}
	e.svc = NewService(Deps{
		Orders:    e.orders,
		Bookings:  e.bookings,
		Users:     e.users,
		Sessions:  e.sessions,
		Resolver:  pricing.NewResolver(e.courses, noopCache{}, logger, metrics),
		Publisher: e.publisher,
		Locks:     noopCache{},
		Logger:    logger,
		Metrics:   metrics,
	})
	return e
}

func (e *env) addCourse(id string, price, discounted float64) {
	e.courses.courses[id] = clients.CourseInfo{
		CourseID: id, Price: price, DiscountPrice: discounted, Status: "published",
	}
}
