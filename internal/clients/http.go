package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/edulearn/order-service/internal/domain"
)

// errNotFound marks a 404 from a collaborator. It is a normal business
// outcome, so it never counts against the circuit breaker.
var errNotFound = errors.New("clients: not found")

// httpCaller is the shared transport for all collaborator adapters: an
// instrumented http.Client behind a per-service circuit breaker.
type httpCaller struct {
	baseURL string
	hc      *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func newHTTPCaller(name, baseURL string) *httpCaller {
	return &httpCaller{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   5 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, errNotFound)
			},
		}),
	}
}

// getJSON performs a GET through the breaker and decodes the body into out.
func (c *httpCaller) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, errNotFound
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("clients: %s %s: status %d", http.MethodGet, path, resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

type httpUserClient struct {
	caller *httpCaller
}

// NewHTTPUserClient builds a UserClient against the user service base URL.
func NewHTTPUserClient(baseURL string) UserClient {
	return &httpUserClient{caller: newHTTPCaller("user-service", baseURL)}
}

func (c *httpUserClient) GetUser(ctx context.Context, userID string) (*User, error) {
	var u User
	err := c.caller.getJSON(ctx, "/api/v1/users/"+url.PathEscape(userID), &u)
	if errors.Is(err, errNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return &u, nil
}

type httpCourseClient struct {
	caller *httpCaller
}

// NewHTTPCourseClient builds a CourseClient against the course service base URL.
func NewHTTPCourseClient(baseURL string) CourseClient {
	return &httpCourseClient{caller: newHTTPCaller("course-service", baseURL)}
}

func (c *httpCourseClient) GetCourse(ctx context.Context, courseID string) (*CourseInfo, error) {
	var info CourseInfo
	err := c.caller.getJSON(ctx, "/api/v1/courses/"+url.PathEscape(courseID), &info)
	if errors.Is(err, errNotFound) {
		return nil, &domain.UnavailableCoursesError{
			Courses: []domain.CourseStatus{{CourseID: courseID, Status: "not_found"}},
		}
	}
	if err != nil {
		return nil, fmt.Errorf("get course %s: %w", courseID, err)
	}
	if info.CourseID == "" {
		info.CourseID = courseID
	}
	return &info, nil
}

func (c *httpCourseClient) GetCoursesByIDs(ctx context.Context, courseIDs []string) ([]CourseInfo, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	q := url.Values{"ids": {strings.Join(courseIDs, ",")}}
	var out struct {
		Courses []CourseInfo `json:"courses"`
	}
	if err := c.caller.getJSON(ctx, "/api/v1/courses?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("get courses by ids: %w", err)
	}
	return out.Courses, nil
}

func (c *httpCourseClient) IsUserEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	path := fmt.Sprintf("/api/v1/courses/%s/enrollments/%s", url.PathEscape(courseID), url.PathEscape(userID))
	var out struct {
		Enrolled bool `json:"enrolled"`
	}
	err := c.caller.getJSON(ctx, path, &out)
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check enrollment user=%s course=%s: %w", userID, courseID, err)
	}
	return out.Enrolled, nil
}

type httpSessionClient struct {
	caller *httpCaller
}

// NewHTTPSessionClient builds a SessionClient against the session service base URL.
func NewHTTPSessionClient(baseURL string) SessionClient {
	return &httpSessionClient{caller: newHTTPCaller("session-service", baseURL)}
}

func (c *httpSessionClient) GetAvailableSlots(ctx context.Context, sessionID string) (int, error) {
	var out struct {
		AvailableSlots int `json:"available_slots"`
	}
	err := c.caller.getJSON(ctx, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/availability", &out)
	if errors.Is(err, errNotFound) {
		return 0, domain.ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get session availability %s: %w", sessionID, err)
	}
	return out.AvailableSlots, nil
}
