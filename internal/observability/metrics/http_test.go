package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCounter(families []*dto.MetricFamily, name string, labels map[string]string) (float64, bool) {
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want == lp.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return m.GetCounter().GetValue(), true
			}
		}
	}
	return 0, false
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{ServiceName: "queueline"})

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/queue_status", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/queue_status?user_id=1", nil))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	families, err := registry.Gather()
	require.NoError(t, err)

	got, ok := findCounter(families, "queueline_http_requests_total", map[string]string{
		"route":       "/queue_status",
		"status_code": "200",
	})
	require.True(t, ok)
	assert.Equal(t, 3.0, got)

	got, ok = findCounter(families, "queueline_http_requests_total", map[string]string{
		"route":       "unknown",
		"status_code": "404",
	})
	require.True(t, ok)
	assert.Equal(t, 1.0, got)
}
