package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	"github.com/noah-isme/clinic-scheduler-api/internal/service"
	"github.com/noah-isme/clinic-scheduler-api/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(role models.UserRole, providerID string) models.JWTClaims {
	return models.JWTClaims{
		UserID:     "user-1",
		Role:       role,
		ProviderID: providerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "identity",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func protectedRouter(verifier *TokenVerifier, roles ...string) *gin.Engine {
	r := gin.New()
	r.PUT("/providers/:providerId", JWT(verifier), RBAC(roles...), func(c *gin.Context) {
		claims := c.MustGet(ContextUserKey).(*models.JWTClaims)
		c.String(http.StatusOK, claims.UserID)
	})
	return r
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAndRBAC(t *testing.T) {
	verifier := NewTokenVerifier(config.JWTConfig{Secret: testSecret, Issuer: "identity"})
	r := protectedRouter(verifier, string(models.RoleAdmin), SelfProvider)

	expired := validClaims(models.RoleAdmin, "")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	foreignIssuer := validClaims(models.RoleAdmin, "")
	foreignIssuer.Issuer = "elsewhere"

	cases := []struct {
		name   string
		token  string
		path   string
		status int
	}{
		{"missing token", "", "/providers/dr-1", http.StatusUnauthorized},
		{"admin", signToken(t, jwt.SigningMethodHS256, testSecret, validClaims(models.RoleAdmin, "")), "/providers/dr-1", http.StatusOK},
		{"own provider", signToken(t, jwt.SigningMethodHS256, testSecret, validClaims(models.RoleProvider, "dr-1")), "/providers/dr-1", http.StatusOK},
		{"other provider", signToken(t, jwt.SigningMethodHS256, testSecret, validClaims(models.RoleProvider, "dr-2")), "/providers/dr-1", http.StatusForbidden},
		{"patient", signToken(t, jwt.SigningMethodHS256, testSecret, validClaims(models.RolePatient, "")), "/providers/dr-1", http.StatusForbidden},
		{"wrong secret", signToken(t, jwt.SigningMethodHS256, "other", validClaims(models.RoleAdmin, "")), "/providers/dr-1", http.StatusUnauthorized},
		{"wrong algorithm", signToken(t, jwt.SigningMethodHS512, testSecret, validClaims(models.RoleAdmin, "")), "/providers/dr-1", http.StatusUnauthorized},
		{"expired", signToken(t, jwt.SigningMethodHS256, testSecret, expired), "/providers/dr-1", http.StatusUnauthorized},
		{"foreign issuer", signToken(t, jwt.SigningMethodHS256, testSecret, foreignIssuer), "/providers/dr-1", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, http.MethodPut, tc.path, tc.token)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestJWTRejectsMalformedHeader(t *testing.T) {
	r := protectedRouter(NewTokenVerifier(config.JWTConfig{Secret: testSecret}), string(models.RoleAdmin))
	req := httptest.NewRequest(http.MethodPut, "/providers/dr-1", nil)
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid authorization header")
}

func TestOptionalJWTNeverBlocks(t *testing.T) {
	verifier := NewTokenVerifier(config.JWTConfig{Secret: testSecret})
	r := gin.New()
	r.GET("/", OptionalJWT(verifier), func(c *gin.Context) {
		_, ok := c.Get(ContextUserKey)
		if ok {
			c.String(http.StatusOK, "user")
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	assert.Equal(t, "anonymous", do(r, http.MethodGet, "/", "garbage").Body.String())
	token := signToken(t, jwt.SigningMethodHS256, testSecret, validClaims(models.RolePatient, ""))
	assert.Equal(t, "user", do(r, http.MethodGet, "/", token).Body.String())
}

func TestRateLimiterPerClient(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 2}, nil)
	r := gin.New()
	r.POST("/schedule", limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusCreated) })

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/schedule", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusCreated, send("10.0.0.1").Code)
	assert.Equal(t, http.StatusCreated, send("10.0.0.1").Code)
	blocked := send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "1", blocked.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusCreated, send("10.0.0.2").Code)
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{RPS: 1, Burst: 1}, nil)
	now := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.get("10.0.0.1")
	now = now.Add(2 * limiterIdleTTL)
	limiter.get("10.0.0.2")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Len(t, limiter.clients, 1)
	assert.Contains(t, limiter.clients, "10.0.0.2")
}

func TestMetricsMiddlewareLabelsRoutes(t *testing.T) {
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics, "/metrics"))
	r.GET("/bookings/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	do(r, http.MethodGet, "/bookings/bk-1", "")
	do(r, http.MethodGet, "/nowhere", "")
	do(r, http.MethodGet, "/metrics", "")
	body := do(r, http.MethodGet, "/metrics", "").Body.String()

	assert.True(t, strings.Contains(body, `path="/bookings/:id"`), body)
	assert.True(t, strings.Contains(body, `path="unmatched"`), body)
	assert.False(t, strings.Contains(body, "bk-1"))
	assert.False(t, strings.Contains(body, `path="/metrics"`), "scrapes are not observed")
}
