package middlewares

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/indicator_monitor/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newRouter(ready func() bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	r := gin.New()
	r.Use(CorrelationIdMiddleware(), RequestLogger(logger), ReadinessMiddleware(ready))
	r.GET("/cid", func(c *gin.Context) {
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		c.String(http.StatusOK, cid)
	})
	return r
}

func TestCorrelationIdMiddleware(t *testing.T) {
	r := newRouter(func() bool { return true })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/cid", nil)
	req.Header.Set(CorrelationIdHeader, "abc-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(CorrelationIdHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cid", nil))
	assert.Len(t, w.Body.String(), 36, "a uuid is generated when the caller sends none")
}

func TestReadinessMiddleware(t *testing.T) {
	ready := false
	r := newRouter(func() bool { return ready })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cid", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	ready = true
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cid", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
