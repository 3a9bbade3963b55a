package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storelens/collector/internal/config"
)

const testSecret = "test-secret"

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{SecretKey: testSecret},
		Analytics: config.AnalyticsConfig{
			TrackingElementTypes: []string{"Slider", "Heading", "Button", "Image2"},
			QueryTimeout:         5 * time.Second,
			WriteTimeout:         5 * time.Second,
		},
	}
}

func newTestServer(now time.Time) http.Handler {
	return NewServer(&Dependencies{
		Config: testConfig(),
		Logger: zap.NewNop(),
		Now:    func() time.Time { return now },
	})
}

func TestCollectReturnsPixel(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	srv := newTestServer(now)

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/collect?shopDomain=shop.example&sessionId=s1&pageId=p1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	assert.Equal(t, "Mon, 01 Jan 1990 00:00:00 GMT", rec.Header().Get("Expires"))
	assert.Equal(t, "Tue, 01 Jan 1991 00:00:00 GMT", rec.Header().Get("Last-Modified"))
	assert.Equal(t, "Sun, 10 Mar 2024 12:00:00 GMT", rec.Header().Get("Date"))
	assert.Equal(t, "2141853", rec.Header().Get("Age"))
	assert.True(t, bytes.Equal(TransparentPixel, rec.Body.Bytes()))
	assert.Len(t, rec.Body.Bytes(), 35)
}

func TestCollectRejectsNonGET(t *testing.T) {
	srv := newTestServer(time.Now())

	req := httptest.NewRequest(http.MethodPost, "/api/analytics/collect", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDataMissingSecret(t *testing.T) {
	srv := newTestServer(time.Now())

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/data?shopDomain=shop.example", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":0,"message":"Missing Secret Key!"}`, rec.Body.String())
}

func TestDataInvalidSecret(t *testing.T) {
	srv := newTestServer(time.Now())

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/data?shopDomain=shop.example&secretKey=wrong", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":0,"message":"Invalid Secret Key!"}`, rec.Body.String())
}

func TestDataEmptyShop(t *testing.T) {
	srv := newTestServer(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/data?shopDomain=shop.example&secretKey="+testSecret, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dataResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Success)
	assert.Empty(t, resp.Data)
}

func TestCollectThenReport(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	srv := newTestServer(now)

	collect := func(query string) {
		req := httptest.NewRequest(http.MethodGet, "/api/analytics/collect?"+query, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	collect("shopDomain=shop.example&sessionId=s1&pageId=p1&userId=u1&pageType=product&pageTitle=Shoes")
	collect("shopDomain=shop.example&sessionId=s1&pageId=p1&elementId=btn-1&elementType=Button&elementName=Buy&count=1")

	fetch := func() *dataResponse {
		req := httptest.NewRequest(http.MethodGet, "/api/analytics/data?shopDomain=shop.example&secretKey="+testSecret, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp dataResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return &resp
	}

	// Persistence is fire-and-forget, so poll until the writes land.
	require.Eventually(t, func() bool {
		resp := fetch()
		if len(resp.Data) != 1 {
			return false
		}
		return len(resp.Data[0].ConversionRate.Labels) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp := fetch()
	require.Len(t, resp.Data, 1)
	page := resp.Data[0]

	assert.Equal(t, "p1", page.ID)
	assert.Equal(t, "product", page.Type)
	assert.Equal(t, "Shoes", page.Title)

	// Fixed window: yesterday, today, tomorrow.
	assert.Equal(t, []string{"2024-03-09", "2024-03-10", "2024-03-11"}, page.Dates)
	assert.Equal(t, []int64{0, 1, 0}, page.Visitors)
	assert.Equal(t, []float64{0, 0, 0}, page.Revenue)

	assert.Equal(t, []string{"Buy"}, page.ConversionRate.Labels)
	assert.Equal(t, []float64{100}, page.ConversionRate.Values)
	assert.Equal(t, int64(1), page.Totals.Session)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(time.Now())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
