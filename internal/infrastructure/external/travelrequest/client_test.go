package travelrequest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClient_FetchRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/travel-requests/tr-1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"travelRequestId":"tr-1","employeeId":"emp-1","startDate":"2026-03-01","endDate":"2026-03-05T00:00:00Z","estimatedCost":1200.5}`))
		case "/api/travel-requests/tr-bad":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/"}, zap.NewNop())
	ctx := context.Background()

	req, err := c.FetchRequest(ctx, "tr-1")
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, "emp-1", req.EmployeeID)
	assert.Equal(t, 1200.5, *req.EstimatedCost)
	assert.True(t, req.StartDate.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 4, req.TripDays())

	missing, err := c.FetchRequest(ctx, "tr-404")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = c.FetchRequest(ctx, "tr-bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_PushBacks(t *testing.T) {
	type call struct{ method, path, query string }
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.Path, r.URL.RawQuery})
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, c.SetRequestStatus(context.Background(), "tr-1", "UNDER_REVIEW"))
	require.NoError(t, c.SetActualCost(context.Background(), "tr-1", 1234.5))

	require.Len(t, calls, 2)
	assert.Equal(t, call{http.MethodPost, "/api/travel-requests/tr-1/status", "status=UNDER_REVIEW"}, calls[0])
	assert.Equal(t, call{http.MethodPatch, "/api/travel-requests/tr-1/actual-cost", "actualCost=1234.5"}, calls[1])
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())
	_, err := c.FetchRequest(context.Background(), "tr-1")
	assert.Error(t, err)
	assert.Error(t, c.SetRequestStatus(context.Background(), "tr-1", "BOOKED"))
}
