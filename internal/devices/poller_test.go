package devices_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aegis-portal/aegis-portal/internal/devices"
	_ "github.com/aegis-portal/aegis-portal/testing"
)

func newCache(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestPollAllRecordsHealthyAndUnhealthy(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	poller := devices.NewPoller([]string{healthy.URL, broken.URL}, newCache(t), nil)
	require.NoError(t, poller.PollAll(context.Background()))

	statuses, err := poller.Statuses(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	byEndpoint := make(map[string]devices.Status)
	for _, status := range statuses {
		byEndpoint[status.Endpoint] = status
	}
	require.True(t, byEndpoint[healthy.URL].Healthy)
	require.False(t, byEndpoint[broken.URL].Healthy)
	require.NotEmpty(t, byEndpoint[broken.URL].Detail)
}

func TestPollAllUnreachableEndpointIsUnhealthy(t *testing.T) {
	poller := devices.NewPoller([]string{"http://127.0.0.1:1"}, newCache(t), nil)
	require.NoError(t, poller.PollAll(context.Background()))

	statuses, err := poller.Statuses(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.False(t, statuses[0].Healthy)
}

func TestStatusesBeforeFirstPoll(t *testing.T) {
	poller := devices.NewPoller([]string{"http://device.internal:9000"}, newCache(t), nil)

	statuses, err := poller.Statuses(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.False(t, statuses[0].Healthy)
	require.Equal(t, "no data", statuses[0].Detail)
}
