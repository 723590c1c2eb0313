package idempotency_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Astemirdum/library-circulation/pkg/auth"
	"github.com/Astemirdum/library-circulation/pkg/idempotency"
	md "github.com/Astemirdum/library-circulation/pkg/middleware"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]idempotency.Response
}

func newMemStore() *memStore {
	return &memStore{data: map[string]idempotency.Response{}}
}

func (s *memStore) Claim(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = idempotency.Response{Pending: true}
	return true, nil
}

func (s *memStore) Get(_ context.Context, key string) (idempotency.Response, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data[key]
	return r, ok, nil
}

func (s *memStore) Save(_ context.Context, key string, resp idempotency.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = resp
	return nil
}

func (s *memStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

var secret = []byte("secret")

func token(t *testing.T, user string) string {
	t.Helper()
	tok, err := auth.NewToken(secret, auth.Profile{Username: user, Role: auth.RoleMember}, time.Hour, time.Now())
	require.NoError(t, err)
	return tok
}

func newRouter(store idempotency.Store, h echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.Use(md.JwtAuthentication(secret), idempotency.Middleware(store, zap.NewNop()))
	e.POST("/borrow", h)
	return e
}

func post(e *echo.Echo, tok, key string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/borrow", strings.NewReader(`{}`))
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	r.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	if key != "" {
		r.Header.Set(idempotency.Header, key)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	return w
}

func TestMiddleware(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	fail := false
	e := newRouter(newMemStore(), func(c echo.Context) error {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if fail {
			return echo.NewHTTPError(http.StatusBadRequest, "Book is not available")
		}
		p, _ := auth.FromContext(c.Request().Context())
		return c.JSON(http.StatusCreated, map[string]any{"call": n, "user": p.Username})
	})
	alice := token(t, "alice")

	first := post(e, alice, "k1")
	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, `{"call":1,"user":"alice"}`, strings.Trim(first.Body.String(), "\n"))

	replay := post(e, alice, "k1")
	require.Equal(t, http.StatusCreated, replay.Code)
	require.Equal(t, "true", replay.Header().Get(idempotency.HitHeader))
	require.Equal(t, first.Body.String(), replay.Body.String())
	require.Equal(t, 1, calls)

	other := post(e, alice, "")
	require.Equal(t, `{"call":2,"user":"alice"}`, strings.Trim(other.Body.String(), "\n"))

	fail = true
	require.Equal(t, http.StatusBadRequest, post(e, alice, "k2").Code)
	fail = false
	retried := post(e, alice, "k2")
	require.Equal(t, http.StatusCreated, retried.Code)
	require.Equal(t, 4, calls)
}

func TestMiddleware_KeysAreScopedPerUser(t *testing.T) {
	calls := 0
	e := newRouter(newMemStore(), func(c echo.Context) error {
		calls++
		p, _ := auth.FromContext(c.Request().Context())
		return c.JSON(http.StatusCreated, map[string]any{"call": calls, "user": p.Username})
	})

	require.Equal(t, http.StatusCreated, post(e, token(t, "alice"), "k").Code)
	bob := post(e, token(t, "bob"), "k")

	require.Equal(t, http.StatusCreated, bob.Code)
	require.Empty(t, bob.Header().Get(idempotency.HitHeader))
	require.Equal(t, `{"call":2,"user":"bob"}`, strings.Trim(bob.Body.String(), "\n"))
	require.Equal(t, 2, calls)
}

func TestMiddleware_ConcurrentDuplicateRunsOnce(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	e := newRouter(newMemStore(), func(c echo.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		entered <- struct{}{}
		<-release
		return c.JSON(http.StatusCreated, map[string]int{"call": 1})
	})
	alice := token(t, "alice")

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- post(e, alice, "k") }()
	<-entered

	dup := post(e, alice, "k")
	require.Equal(t, http.StatusConflict, dup.Code)
	require.Equal(t, `{"message":"`+idempotency.MsgInProgress+`"}`, strings.Trim(dup.Body.String(), "\n"))

	close(release)
	first := <-done
	require.Equal(t, http.StatusCreated, first.Code)

	again := post(e, alice, "k")
	require.Equal(t, http.StatusCreated, again.Code)
	require.Equal(t, "true", again.Header().Get(idempotency.HitHeader))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls)
}

func TestMiddleware_ParallelDuplicates(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	e := newRouter(newMemStore(), func(c echo.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		return c.NoContent(http.StatusNoContent)
	})
	alice := token(t, "alice")

	const n = 8
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = post(e, alice, "same").Code
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, calls)
	for _, code := range codes {
		require.Contains(t, []int{http.StatusNoContent, http.StatusConflict}, code)
	}
}
