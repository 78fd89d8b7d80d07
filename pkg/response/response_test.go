package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

func serve(t *testing.T, fn gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", fn)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestErrorSetsRetryAfterOnTimeout(t *testing.T) {
	w := serve(t, func(c *gin.Context) { Error(c, appErrors.ErrTimeout) })

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var body Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "TIMEOUT", body.Error.Code)
}

func TestErrorConflictHasNoRetryAfter(t *testing.T) {
	w := serve(t, func(c *gin.Context) { Error(c, appErrors.Clone(appErrors.ErrConflict, "slot taken")) })

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "slot taken")
}

func TestErrorNormalisesUnknownErrors(t *testing.T) {
	w := serve(t, func(c *gin.Context) { Error(c, errors.New("pq: connection refused")) })

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestFileSetsDisposition(t *testing.T) {
	w := serve(t, func(c *gin.Context) { File(c, "agenda.csv", "text/csv", []byte("a,b\n")) })

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="agenda.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", w.Body.String())
}
