package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})
	return mp, reader
}

func findMetricByName(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestHTTPMetrics_NilMeterProvider(t *testing.T) {
	router := gin.New()
	router.Use(HTTPMetrics(nil))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPMetricsWithMeter(t *testing.T) {
	mp, reader := setupTestMeter(t)

	router := gin.New()
	router.Use(HTTPMetricsWithMeter(mp.Meter("http.server")))
	router.GET("/api/v1/leads", func(c *gin.Context) {
		c.Set(TenantIDKey, "org_a")
		c.JSON(http.StatusOK, gin.H{"leads": []string{"Acme Corp"}})
	})
	router.PATCH("/api/v1/leads/:id/status", func(c *gin.Context) {
		c.Status(http.StatusForbidden)
	})

	for _, path := range []string{"/api/v1/leads", "/api/v1/leads"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/api/v1/leads/7/status", nil))
	require.Equal(t, http.StatusForbidden, w.Code)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	total := findMetricByName(t, reader, "http_server_request_total")
	require.NotNil(t, total)
	sum, ok := total.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	counts := map[attribute.Distinct]int64{}
	for _, dp := range sum.DataPoints {
		counts[dp.Attributes.Equivalent()] = dp.Value
	}
	leads := attribute.NewSet(
		AttrHTTPMethod.String(http.MethodGet),
		AttrHTTPRoute.String("/api/v1/leads"),
		AttrHTTPStatusCode.Int(http.StatusOK),
		attribute.String("tenant_id", "org_a"),
	)
	patch := attribute.NewSet(
		AttrHTTPMethod.String(http.MethodPatch),
		AttrHTTPRoute.String("/api/v1/leads/:id/status"),
		AttrHTTPStatusCode.Int(http.StatusForbidden),
	)
	unknown := attribute.NewSet(
		AttrHTTPMethod.String(http.MethodGet),
		AttrHTTPRoute.String("unknown"),
		AttrHTTPStatusCode.Int(http.StatusNotFound),
	)
	assert.Equal(t, int64(2), counts[leads.Equivalent()])
	assert.Equal(t, int64(1), counts[patch.Equivalent()])
	assert.Equal(t, int64(1), counts[unknown.Equivalent()])
}

func TestHTTPMetricsWithMeter_DurationAndActive(t *testing.T) {
	mp, reader := setupTestMeter(t)

	router := gin.New()
	router.Use(HTTPMetricsWithMeter(mp.Meter("http.server")))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	require.Equal(t, http.StatusOK, w.Code)

	duration := findMetricByName(t, reader, "http_server_request_duration_seconds")
	require.NotNil(t, duration)
	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)

	active := findMetricByName(t, reader, "http_server_active_requests")
	require.NotNil(t, active)
	gauge, ok := active.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(0), gauge.DataPoints[0].Value)

	size := findMetricByName(t, reader, "http_server_response_size_bytes")
	require.NotNil(t, size)
}

func TestHTTPMetricsStatusGroup(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		204: "2xx",
		301: "3xx",
		404: "4xx",
		409: "4xx",
		500: "5xx",
		100: "other",
	}
	for code, want := range tests {
		assert.Equal(t, want, HTTPMetricsStatusGroup(code), "status %d", code)
	}
}
