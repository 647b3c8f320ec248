package billing_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parklinehq/parkline/internal/billing"
)

func newClient(t *testing.T, baseURL string, retries int) *billing.Client {
	t.Helper()
	return billing.NewClient(billing.Config{
		BaseURL:    baseURL,
		Token:      "secret",
		Conf:       "0.93",
		Retries:    retries,
		RetryDelay: time.Millisecond,
		Timeout:    time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParkInSendsPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/park-in", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"trip_id": "T-100"})
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, 3)
	resp, err := c.ParkIn(context.Background(), billing.ParkInRequest{
		ParkinTime:  time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		PlateCode:   "A",
		PlateNumber: "12345",
		Emirates:    "DXB",
		SpotNumber:  12,
		PoleID:      7,
		Images:      []string{"aW1nMQ==", "aW1nMg=="},
	})
	require.NoError(t, err)

	tripID, ok := resp.TripID()
	require.True(t, ok)
	require.Equal(t, "T-100", tripID)

	require.Equal(t, "secret", got["token"])
	require.Equal(t, "0.93", got["conf"])
	require.Equal(t, "2025-06-01T09:00:00Z", got["parkin_time"])
	require.Equal(t, float64(12), got["spot_number"])
	require.Equal(t, float64(7), got["pole_id"])
	require.Len(t, got["images"], 2)
}

func TestParkOutSpotNumberIsString(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/park-out", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, 3)
	_, err := c.ParkOut(context.Background(), billing.ParkOutRequest{
		ParkoutTime: time.Now(),
		SpotNumber:  12,
		PoleID:      7,
		TripID:      "T-100",
	})
	require.NoError(t, err)
	require.Equal(t, "12", got["spot_number"])
	require.Equal(t, "T-100", got["trip_id"])
}

func TestRetriesOnServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"trip_id": 42})
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, 3)
	resp, err := c.ParkIn(context.Background(), billing.ParkInRequest{ParkinTime: time.Now()})
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	tripID, ok := resp.TripID()
	require.True(t, ok)
	require.Equal(t, "42", tripID)
}

func TestAllAttemptsFailReturnsError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, 3)
	_, err := c.ParkIn(context.Background(), billing.ParkInRequest{ParkinTime: time.Now()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 3 attempts")
	require.Equal(t, 3, calls)
}

func TestEmptyBodySoftError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// 200 with no body on every attempt.
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, 3)
	resp, err := c.ParkIn(context.Background(), billing.ParkInRequest{ParkinTime: time.Now()})
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	reason, ok := resp.SoftError()
	require.True(t, ok)
	require.Equal(t, "Empty response body", reason)
	_, ok = resp.TripID()
	require.False(t, ok)
}

func TestInvalidJSONSoftErrorKeepsRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>gateway timeout</html>")
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, 2)
	resp, err := c.ParkOut(context.Background(), billing.ParkOutRequest{ParkoutTime: time.Now()})
	require.NoError(t, err)

	reason, ok := resp.SoftError()
	require.True(t, ok)
	require.Equal(t, "Invalid JSON response", reason)
	require.Equal(t, "<html>gateway timeout</html>", resp.RawBody())
}

func TestUnusableBodyRetriedBeforeGivingUp(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			return // empty 200
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"trip_id": "T-9"}})
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, 3)
	resp, err := c.ParkIn(context.Background(), billing.ParkInRequest{ParkinTime: time.Now()})
	require.NoError(t, err)
	require.Equal(t, 2, calls)

	tripID, ok := resp.TripID()
	require.True(t, ok)
	require.Equal(t, "T-9", tripID)
}

func TestDecodedErrorBodyReturnedImmediately(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{"error": "spot unknown"})
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, 3)
	resp, err := c.ParkIn(context.Background(), billing.ParkInRequest{ParkinTime: time.Now()})
	require.NoError(t, err)
	// A decodable body is a final answer, not a transport problem.
	require.Equal(t, 1, calls)

	reason, ok := resp.SoftError()
	require.True(t, ok)
	require.Equal(t, "spot unknown", reason)
}

func TestResponseTripIDShapes(t *testing.T) {
	tests := []struct {
		name string
		resp billing.Response
		want string
		ok   bool
	}{
		{"top-level string", billing.Response{"trip_id": "T-1"}, "T-1", true},
		{"top-level number", billing.Response{"trip_id": float64(7)}, "7", true},
		{"nested", billing.Response{"data": map[string]any{"trip_id": "T-2"}}, "T-2", true},
		{"absent", billing.Response{"status": "ok"}, "", false},
		{"nil", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.resp.TripID()
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}
