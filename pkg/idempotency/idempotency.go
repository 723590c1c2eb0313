package idempotency

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/Astemirdum/library-circulation/pkg/auth"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	Header    = "Idempotency-Key"
	HitHeader = "X-Idempotency-Hit"

	MsgInProgress = "A request with this Idempotency-Key is in progress"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
	// Pending marks a claimed key whose request has not finished.
	Pending bool `json:"-"`
}

// Store holds one entry per key: a pending claim or a finished response.
type Store interface {
	// Claim reserves key for the caller. It reports false when the key is already taken.
	Claim(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (Response, bool, error)
	// Save replaces the claim with the finished response.
	Save(ctx context.Context, key string, resp Response) error
	// Release drops the claim so the request may be retried with the same key.
	Release(ctx context.Context, key string) error
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

const (
	keyPrefix  = "idempotency:"
	inProgress = "in-progress"
)

func (s *RedisStore) Claim(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, keyPrefix+key, inProgress, s.ttl).Result()
}

func (s *RedisStore) Get(ctx context.Context, key string) (Response, bool, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Response{}, false, nil
		}
		return Response{}, false, err
	}
	if string(data) == inProgress {
		return Response{Pending: true}, true, nil
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, false, err
	}
	return resp, true, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+key, data, s.ttl).Err()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}

// Middleware runs a POST carrying an Idempotency-Key at most once per caller and key.
// The key is claimed before the handler runs; a duplicate arriving meanwhile gets 409, and one
// arriving after a 2xx gets the stored response. Failed requests release the claim.
// Must run after JwtAuthentication. Store failures are logged and the request proceeds.
func Middleware(store Store, log *zap.Logger) echo.MiddlewareFunc {
	log = log.Named("idempotency")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			key := req.Header.Get(Header)
			if key == "" || req.Method != http.MethodPost {
				return next(c)
			}
			ctx := req.Context()
			key = scopedKey(ctx, req.URL.Path, key)

			claimed, err := store.Claim(ctx, key)
			if err != nil {
				log.Warn("store.Claim", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			if !claimed {
				return replay(c, store, key, log)
			}

			saved := false
			defer func() {
				if saved {
					return
				}
				if err := store.Release(context.WithoutCancel(ctx), key); err != nil {
					log.Warn("store.Release", zap.String("key", key), zap.Error(err))
				}
			}()

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				return err
			}

			status := c.Response().Status
			if status < http.StatusOK || status >= http.StatusMultipleChoices {
				return nil
			}
			resp := Response{
				Status:      status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        rec.buf.Bytes(),
			}
			if err := store.Save(context.WithoutCancel(ctx), key, resp); err != nil {
				log.Warn("store.Save", zap.String("key", key), zap.Error(err))
				return nil
			}
			saved = true
			return nil
		}
	}
}

func replay(c echo.Context, store Store, key string, log *zap.Logger) error {
	cached, ok, err := store.Get(c.Request().Context(), key)
	if err != nil {
		log.Warn("store.Get", zap.String("key", key), zap.Error(err))
	}
	// a missing entry means the claim was released between Claim and Get
	if !ok || cached.Pending {
		return echo.NewHTTPError(http.StatusConflict, MsgInProgress)
	}
	c.Response().Header().Set(HitHeader, "true")
	if len(cached.Body) == 0 {
		return c.NoContent(cached.Status)
	}
	return c.Blob(cached.Status, cached.ContentType, cached.Body)
}

// scopedKey keeps keys of different callers apart so a replay never crosses users.
func scopedKey(ctx context.Context, path, key string) string {
	user := "anonymous"
	if p, ok := auth.FromContext(ctx); ok {
		user = p.Username
	}
	return user + ":" + path + ":" + key
}

type bodyRecorder struct {
	http.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}
