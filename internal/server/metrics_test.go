package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMetricsMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := NewMetrics()

	router := gin.New()
	router.Use(metrics.Middleware())
	router.GET("/posts", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	request := httptest.NewRequest(http.MethodGet, "/posts", http.NoBody)
	router.ServeHTTP(httptest.NewRecorder(), request)

	scrape := httptest.NewRecorder()
	router.ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	if scrape.Code != http.StatusOK {
		t.Fatalf("unexpected scrape status: %d", scrape.Code)
	}
	body := scrape.Body.String()
	if !strings.Contains(body, "gazette_http_requests_total") {
		t.Fatalf("request counter missing from scrape: %s", body)
	}
	if !strings.Contains(body, `route="/posts"`) || !strings.Contains(body, `status="200"`) {
		t.Fatalf("expected labeled sample for /posts: %s", body)
	}
}

func TestMetricsMiddlewareLabelsUnmatchedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := NewMetrics()

	router := gin.New()
	router.Use(metrics.Middleware())
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", http.NoBody))

	scrape := httptest.NewRecorder()
	router.ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if !strings.Contains(scrape.Body.String(), `route="unmatched"`) {
		t.Fatalf("expected unmatched label: %s", scrape.Body)
	}
}
