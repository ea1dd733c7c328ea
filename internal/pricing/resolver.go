// Package pricing resolves catalog prices and enrollment state for order
// placement. Prices follow a cache-aside pattern over `course_price:<id>`
// keys; the catalog service is the source of truth and only fully resolved
// sets are written back.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edulearn/order-service/internal/cache"
	"github.com/edulearn/order-service/internal/clients"
	"github.com/edulearn/order-service/internal/domain"
	"github.com/edulearn/order-service/internal/telemetry"
)

const (
	priceTTL        = time.Hour
	statusPublished = "published"
)

func priceKey(courseID string) string {
	return "course_price:" + courseID
}

// CoursePrice is the cached price pair for one course, in major currency
// units as reported by the catalog.
type CoursePrice struct {
	Price           float64 `json:"price"`
	DiscountedPrice float64 `json:"discounted_price"`
}

// normalized treats a zero discounted price as "no active discount": the
// catalog omits discount_price for such courses and they cost list price.
func (p CoursePrice) normalized() CoursePrice {
	if p.DiscountedPrice == 0 {
		p.DiscountedPrice = p.Price
	}
	return p
}

// Resolver answers "what do these courses cost" and "does this user already
// own any of them".
type Resolver struct {
	courses clients.CourseClient
	cache   cache.Cache
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

func NewResolver(courses clients.CourseClient, c cache.Cache, logger *slog.Logger, metrics *telemetry.Metrics) *Resolver {
	return &Resolver{courses: courses, cache: c, logger: logger, metrics: metrics}
}

// ResolvePrices maps every course id to its price pair. Misses are fetched
// from the catalog, first batched, then per-course concurrently; a transport
// failure anywhere aborts the whole resolution. Courses that are missing or
// not published are aggregated into an UnavailableCoursesError, and in that
// case nothing is cached.
func (r *Resolver) ResolvePrices(ctx context.Context, courseIDs []string) (map[string]CoursePrice, error) {
	unique := dedupe(courseIDs)
	resolved := make(map[string]CoursePrice, len(unique))

	missing, err := r.fromCache(ctx, unique, resolved)
	if err != nil {
		return nil, err
	}
	if len(missing) == 0 {
		return resolved, nil
	}

	fetched := make(map[string]CoursePrice, len(missing))
	var unavailable []domain.CourseStatus

	missing, unavailable = r.fromBatch(ctx, missing, fetched)

	if len(missing) > 0 {
		perCourse, bad, err := r.fromPerCourseFetch(ctx, missing)
		if err != nil {
			return nil, err
		}
		for id, p := range perCourse {
			fetched[id] = p
		}
		unavailable = append(unavailable, bad...)
	}

	if len(unavailable) > 0 {
		sort.Slice(unavailable, func(i, j int) bool { return unavailable[i].CourseID < unavailable[j].CourseID })
		return nil, &domain.UnavailableCoursesError{Courses: unavailable}
	}

	r.writeBack(ctx, fetched)
	for id, p := range fetched {
		resolved[id] = p
	}
	return resolved, nil
}

// fromCache fills resolved from the price cache and returns the ids still
// missing. A corrupt entry is dropped and counted as a miss.
func (r *Resolver) fromCache(ctx context.Context, ids []string, resolved map[string]CoursePrice) ([]string, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = priceKey(id)
	}
	raws, err := r.cache.GetMany(ctx, keys)
	if err != nil {
		r.logger.WarnContext(ctx, "price cache read failed", "error", err)
		raws = make([]string, len(ids))
	}

	var missing []string
	for i, id := range ids {
		if raws[i] == "" {
			r.metrics.CacheMisses.WithLabelValues("course_price").Inc()
			missing = append(missing, id)
			continue
		}
		var p CoursePrice
		if err := json.Unmarshal([]byte(raws[i]), &p); err != nil {
			r.logger.WarnContext(ctx, "dropping corrupt price entry", "course_id", id)
			if derr := r.cache.Delete(ctx, keys[i]); derr != nil {
				r.logger.WarnContext(ctx, "failed to drop corrupt price entry", "course_id", id, "error", derr)
			}
			r.metrics.CacheMisses.WithLabelValues("course_price").Inc()
			missing = append(missing, id)
			continue
		}
		r.metrics.CacheHits.WithLabelValues("course_price").Inc()
		resolved[id] = p.normalized()
	}
	return missing, nil
}

// fromBatch tries one batched catalog call. Courses the batch does not
// return stay missing; unpublished ones are collected as unavailable. A
// batch transport failure is not fatal, the per-course fallback covers it.
func (r *Resolver) fromBatch(ctx context.Context, missing []string, fetched map[string]CoursePrice) ([]string, []domain.CourseStatus) {
	infos, err := r.courses.GetCoursesByIDs(ctx, missing)
	if err != nil {
		r.logger.WarnContext(ctx, "batch course fetch failed, falling back to per-course", "error", err)
		return missing, nil
	}

	var unavailable []domain.CourseStatus
	seen := make(map[string]bool, len(infos))
	for _, info := range infos {
		seen[info.CourseID] = true
		if info.Status != statusPublished {
			unavailable = append(unavailable, domain.CourseStatus{CourseID: info.CourseID, Status: info.Status})
			continue
		}
		fetched[info.CourseID] = priceFromInfo(info)
	}

	var still []string
	for _, id := range missing {
		if !seen[id] {
			still = append(still, id)
		}
	}
	return still, unavailable
}

// fromPerCourseFetch fans out one fetch per course. The first transport
// error cancels the siblings and aborts the resolution.
func (r *Resolver) fromPerCourseFetch(ctx context.Context, ids []string) (map[string]CoursePrice, []domain.CourseStatus, error) {
	var (
		mu          sync.Mutex
		fetched     = make(map[string]CoursePrice, len(ids))
		unavailable []domain.CourseStatus
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			info, err := r.courses.GetCourse(gctx, id)
			var ue *domain.UnavailableCoursesError
			if errors.As(err, &ue) {
				mu.Lock()
				unavailable = append(unavailable, ue.Courses...)
				mu.Unlock()
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetch course %s: %w", id, err)
			}

			mu.Lock()
			defer mu.Unlock()
			if info.Status != statusPublished {
				unavailable = append(unavailable, domain.CourseStatus{CourseID: id, Status: info.Status})
				return nil
			}
			fetched[id] = priceFromInfo(*info)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return fetched, unavailable, nil
}

func priceFromInfo(info clients.CourseInfo) CoursePrice {
	return CoursePrice{Price: info.Price, DiscountedPrice: info.DiscountPrice}.normalized()
}

func (r *Resolver) writeBack(ctx context.Context, fetched map[string]CoursePrice) {
	if len(fetched) == 0 {
		return
	}
	entries := make(map[string]string, len(fetched))
	for id, p := range fetched {
		b, err := json.Marshal(p)
		if err != nil {
			continue
		}
		entries[priceKey(id)] = string(b)
	}
	if err := r.cache.SetMany(ctx, entries, priceTTL); err != nil {
		r.logger.WarnContext(ctx, "price cache write failed", "error", err)
	}
}

// CheckEnrollment fails with AlreadyEnrolledError if the user already owns
// any of the courses. Enrollment lookups run concurrently and the first
// transport error aborts the whole check.
func (r *Resolver) CheckEnrollment(ctx context.Context, userID string, courseIDs []string) error {
	var (
		mu       sync.Mutex
		enrolled []string
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range dedupe(courseIDs) {
		g.Go(func() error {
			ok, err := r.courses.IsUserEnrolled(gctx, userID, id)
			if err != nil {
				return fmt.Errorf("check enrollment for course %s: %w", id, err)
			}
			if ok {
				mu.Lock()
				enrolled = append(enrolled, id)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(enrolled) > 0 {
		sort.Strings(enrolled)
		return &domain.AlreadyEnrolledError{CourseIDs: enrolled}
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
