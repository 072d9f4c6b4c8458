package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/oremia/risk-matrix/internal/matrix/handler"
	"github.com/oremia/risk-matrix/internal/matrix/model"
	"github.com/oremia/risk-matrix/internal/matrix/service"
	"go.uber.org/zap"
)

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(handler.RateLimiter(1, 2))
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	codes := make([]int, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes[i] = w.Code
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("requests within burst got %v, want 200s", codes[:2])
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("request over burst got %d, want 429", codes[2])
	}
}

func TestUploadRateLimiterOnlyThrottlesConfigure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := service.NewStore(model.Default(), zap.NewNop())
	h := handler.NewMatrixHandler(store, zap.NewNop())
	h.SetUploadRateLimiter(handler.UploadRateLimiter(1, 1))

	router := gin.New()
	h.Register(router.Group(""))

	// First upload attempt passes the limiter (and fails validation, which is
	// fine here); the second is throttled before the handler runs.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/risk-matrix/configure", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("first configure got %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/risk-matrix/configure", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second configure got %d, want 429", w.Code)
	}

	// Read endpoints are not behind the upload limiter.
	for i := 0; i < 5; i++ {
		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/risk-matrix/levels", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("levels request %d got %d, want 200", i, w.Code)
		}
	}
}
