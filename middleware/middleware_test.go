package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tokmz/advisor"
	"github.com/tokmz/advisor/pkg/cache"
	apperrors "github.com/tokmz/advisor/pkg/errors"
	"github.com/tokmz/advisor/pkg/logger"
)

func newEngine(middlewares ...advisor.HandlerFunc) *advisor.Engine {
	e := advisor.New(
		advisor.WithMode(gin.TestMode),
		advisor.WithBanner(false),
		advisor.WithLogger(logger.Nop()),
	)
	e.Use(middlewares...)
	return e
}

func serve(e *advisor.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.Handler().ServeHTTP(w, req)
	return w
}

func envelope(t *testing.T, w *httptest.ResponseRecorder) advisor.Response {
	t.Helper()
	var resp advisor.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCORS(t *testing.T) {
	e := newEngine(CORS(&CORSConfig{
		AllowOrigins:     []string{"http://localhost:3000", "https://*.advisor.edu"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowHeaders:     []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           time.Hour,
	}))
	e.RouterGroup().GET("/x", func(c *advisor.Context) { c.Nil() })

	tests := []struct {
		origin  string
		allowed bool
	}{
		{origin: "http://localhost:3000", allowed: true},
		{origin: "https://app.advisor.edu", allowed: true},
		{origin: "https://.advisor.edu", allowed: false},
		{origin: "http://evil.com", allowed: false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set("Origin", tt.origin)
			w := serve(e, req)
			if tt.allowed {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := serve(e, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "GET, POST", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_CredentialsWithWildcardPanics(t *testing.T) {
	assert.Panics(t, func() {
		CORS(&CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true})
	})
}

func TestOriginMatcher(t *testing.T) {
	assert.True(t, OriginMatcher([]string{"*"})("http://any"))
	match := OriginMatcher([]string{"http://a.com"})
	assert.True(t, match("http://a.com"))
	assert.False(t, match("http://b.com"))
}

func TestTimeout(t *testing.T) {
	e := newEngine(Timeout(&TimeoutConfig{Timeout: 20 * time.Millisecond, ExcludePaths: []string{"/ws"}}))
	e.RouterGroup().GET("/slow", func(c *advisor.Context) {
		<-c.Request().Context().Done()
	})
	e.RouterGroup().GET("/fast", func(c *advisor.Context) { c.Nil() })
	e.RouterGroup().GET("/ws", func(c *advisor.Context) {
		_, hasDeadline := c.Request().Context().Deadline()
		assert.False(t, hasDeadline)
		c.Nil()
	})

	w := serve(e, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusRequestTimeout, w.Code)
	assert.Equal(t, "Request timeout", envelope(t, w).Message)

	assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/fast", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/ws", nil)).Code)
}

func TestTimeout_PartialConfigKeepsDefaults(t *testing.T) {
	e := newEngine(Timeout(&TimeoutConfig{ExcludePaths: []string{"/ws"}}))
	e.RouterGroup().GET("/deadline", func(c *advisor.Context) {
		deadline, ok := c.Request().Context().Deadline()
		require.True(t, ok)
		assert.Greater(t, time.Until(deadline), 20*time.Second)
		c.Nil()
	})

	assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/deadline", nil)).Code)
}

func TestRateLimiter(t *testing.T) {
	c, err := cache.NewWithOptions()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	e := newEngine(RateLimiter(&RateLimiterConfig{
		Cache:        c,
		Requests:     2,
		Window:       time.Minute,
		ExcludePaths: []string{"/health"},
	}))
	e.RouterGroup().GET("/x", func(c *advisor.Context) { c.Nil() })
	e.RouterGroup().GET("/health", func(c *advisor.Context) { c.Nil() })

	request := func(path, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = ip + ":1234"
		return serve(e, req)
	}

	assert.Equal(t, http.StatusOK, request("/x", "10.0.0.1").Code)
	w := request("/x", "10.0.0.1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = request("/x", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, apperrors.ErrTooManyRequests.Code, envelope(t, w).Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, request("/x", "10.0.0.2").Code, "limits are per client")
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, request("/health", "10.0.0.1").Code)
	}

	ttl, err := c.TTL(context.Background(), "ratelimit:10.0.0.1:"+windowSuffix(time.Minute))
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func windowSuffix(window time.Duration) string {
	return strconv.FormatInt(time.Now().UnixNano()/int64(window), 10)
}

func TestTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	e := newEngine(Tracing(&TracingConfig{ExcludePaths: []string{"/health"}}))
	e.RouterGroup().GET("/users/:id", func(c *advisor.Context) { c.Nil() })
	e.RouterGroup().GET("/health", func(c *advisor.Context) { c.Nil() })

	require.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	w := serve(e, httptest.NewRequest(http.MethodGet, "/users/7", nil))
	require.Equal(t, http.StatusOK, w.Code)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /users/:id", spans[0].Name)

	traceID := spans[0].SpanContext.TraceID().String()
	assert.Equal(t, traceID, envelope(t, w).TraceID)
	assert.Contains(t, w.Header().Get("traceparent"), traceID)
}

type fakeVerifier map[string]string

func (f fakeVerifier) VerifyToken(token string) (string, error) {
	if uid, ok := f[token]; ok {
		return uid, nil
	}
	return "", apperrors.ErrUnauthorized.WithMessage("Invalid token")
}

func TestAuth(t *testing.T) {
	verifier := fakeVerifier{"good": "a@b.edu"}
	e := newEngine()
	e.Group("/api", Auth(&AuthConfig{Verifier: verifier})).GET("/me", func(c *advisor.Context) {
		c.Success(c.UserID())
	})
	e.Group("/ws", Auth(&AuthConfig{Verifier: verifier, QueryParam: "token"})).GET("", func(c *advisor.Context) {
		c.Success(c.UserID())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := serve(e, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@b.edu", envelope(t, w).Data)

	w = serve(e, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Missing access token", envelope(t, w).Message)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	w = serve(e, httptest.NewRequest(http.MethodGet, "/ws?token=good", nil))
	assert.Equal(t, "a@b.edu", envelope(t, w).Data)

	w = serve(e, httptest.NewRequest(http.MethodGet, "/api/me?token=good", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "query tokens are only accepted where enabled")
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Empty(t, BearerToken("Basic abc"))
	assert.Empty(t, BearerToken("abc"))
}
