package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersInflightAndUnmatched(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/webhook", func(c *gin.Context) { c.Status(http.StatusOK) })

	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/health", "200"))
	baseHook := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/webhook", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedPath, "404"))

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodPost, "/webhook", nil),
		httptest.NewRequest(http.MethodGet, "/wp-admin.php", nil),
		httptest.NewRequest(http.MethodGet, "/.env", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/health", "200")); got != baseOK+1 {
		t.Fatalf("counter /health 200 = %v; want %v", got, baseOK+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/webhook", "200")); got != baseHook+1 {
		t.Fatalf("counter /webhook 200 = %v; want %v", got, baseHook+1)
	}
	// both unmatched requests collapse into one label
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedPath, "404")); got != base404+2 {
		t.Fatalf("counter unmatched = %v; want %v", got, base404+2)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}
