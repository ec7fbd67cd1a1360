package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/docrecon/docrecon/internal/infrastructure/logging"
)

func TestIsAllowedOrigin(t *testing.T) {
	tests := []struct {
		name           string
		origin         string
		allowedOrigins []string
		want           bool
	}{
		{
			name:           "exact match",
			origin:         "http://localhost:5173",
			allowedOrigins: []string{"http://localhost:5173"},
			want:           true,
		},
		{
			name:           "wildcard match",
			origin:         "http://localhost:5173",
			allowedOrigins: []string{"http://localhost:*"},
			want:           true,
		},
		{
			name:           "multiple allowed origins - matches first",
			origin:         "http://localhost:5173",
			allowedOrigins: []string{"http://localhost:*", "https://app.example.com"},
			want:           true,
		},
		{
			name:           "multiple allowed origins - matches second",
			origin:         "https://app.example.com",
			allowedOrigins: []string{"http://localhost:*", "https://app.example.com"},
			want:           true,
		},
		{
			name:           "no match",
			origin:         "http://evil.com",
			allowedOrigins: []string{"http://localhost:*"},
			want:           false,
		},
		{
			name:           "empty origin",
			origin:         "",
			allowedOrigins: []string{"http://localhost:*"},
			want:           false,
		},
		{
			name:           "empty allowed list",
			origin:         "http://localhost:5173",
			allowedOrigins: []string{},
			want:           false,
		},
		{
			name:           "partial wildcard match",
			origin:         "http://localhost:5173",
			allowedOrigins: []string{"http://*"},
			want:           true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isAllowedOrigin(tt.origin, tt.allowedOrigins)
			if got != tt.want {
				t.Errorf("isAllowedOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		origin         string
		allowedOrigins []string
		method         string
		wantStatus     int
		checkHeaders   bool
		wantCORS       bool
	}{
		{
			name:           "allowed origin - GET request",
			origin:         "http://localhost:5173",
			allowedOrigins: []string{"http://localhost:*"},
			method:         "GET",
			wantStatus:     http.StatusOK,
			checkHeaders:   true,
			wantCORS:       true,
		},
		{
			name:           "allowed origin - OPTIONS request",
			origin:         "http://localhost:5173",
			allowedOrigins: []string{"http://localhost:*"},
			method:         "OPTIONS",
			wantStatus:     http.StatusNoContent,
			checkHeaders:   true,
			wantCORS:       true,
		},
		{
			name:           "disallowed origin",
			origin:         "http://evil.com",
			allowedOrigins: []string{"http://localhost:*"},
			method:         "GET",
			wantStatus:     http.StatusOK,
			checkHeaders:   true,
			wantCORS:       false,
		},
		{
			name:           "no origin header",
			origin:         "",
			allowedOrigins: []string{"http://localhost:*"},
			method:         "GET",
			wantStatus:     http.StatusOK,
			checkHeaders:   true,
			wantCORS:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup router
			router := gin.New()
			router.Use(CORSMiddleware(tt.allowedOrigins))
			router.GET("/test", func(c *gin.Context) {
				c.String(http.StatusOK, "OK")
			})

			// Create request
			req := httptest.NewRequest(tt.method, "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}

			// Record response
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			// Check status
			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}

			// Check CORS headers
			if tt.checkHeaders {
				corsHeader := w.Header().Get("Access-Control-Allow-Origin")
				if tt.wantCORS {
					if corsHeader != tt.origin {
						t.Errorf("Access-Control-Allow-Origin = %s, want %s", corsHeader, tt.origin)
					}
					if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
						t.Errorf("Access-Control-Allow-Credentials not set to true")
					}
				} else {
					if corsHeader != "" {
						t.Errorf("Access-Control-Allow-Origin should not be set for disallowed origin, got %s", corsHeader)
					}
				}
			}
		})
	}
}

func TestCORSMiddleware_PreflightRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(CORSMiddleware([]string{"http://localhost:*"}))
	router.POST("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	// Create preflight request
	req := httptest.NewRequest("OPTIONS", "/test", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// Should return 204 No Content
	if w.Code != http.StatusNoContent {
		t.Errorf("Preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}

	// Check CORS headers
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin not set correctly")
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Errorf("Access-Control-Allow-Methods not set")
	}
	if w.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Errorf("Access-Control-Allow-Headers not set")
	}
	if w.Header().Get("Access-Control-Max-Age") == "" {
		t.Errorf("Access-Control-Max-Age not set")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen string
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/test", func(c *gin.Context) {
		seen = logging.RequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	t.Run("propagates incoming id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(requestIDHeader, "req-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
		assert.Equal(t, "req-123", seen)
	})

	t.Run("generates id when missing", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.NotEmpty(t, w.Header().Get(requestIDHeader))
		assert.Equal(t, w.Header().Get(requestIDHeader), seen)
	})
}

func TestLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, observed := observer.New(zap.InfoLevel)
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(zap.New(core)))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	for _, path := range []string{"/ok", "/bad"} {
		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set(requestIDHeader, "req-log")
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	entries := observed.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)

	fields := entries[1].ContextMap()
	assert.Equal(t, "/bad", fields["path"])
	assert.Equal(t, int64(http.StatusBadRequest), fields["status"])
	assert.Equal(t, "req-log", fields["request_id"])
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RateLimitMiddleware(2))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Another client has its own bucket
	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RateLimitMiddleware(0))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var deadline time.Time
	var hasDeadline bool
	router := gin.New()
	router.Use(TimeoutMiddleware(time.Second))
	router.GET("/test", func(c *gin.Context) {
		deadline, hasDeadline = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", nil))
	assert.True(t, hasDeadline)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestRecoveryMiddleware_LogsPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, observed := observer.New(zap.ErrorLevel)
	router := gin.New()
	router.Use(RecoveryMiddleware(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/panic", nil).WithContext(context.Background())
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Len(t, observed.All(), 1)
	assert.Equal(t, "panic recovered", observed.All()[0].Message)
}
