package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gap-monitor/internal/classify"
)

func sampleNotification() classify.Notification {
	return classify.Notification{
		Code:          "2330",
		Name:          "TSMC",
		Price:         1005,
		GapRatio:      0.021,
		PositionRatio: 0.87,
		VolumeLots:    12345,
		Amount:        1.2e10,
		HasDerivative: true,
	}
}

func TestLineSink_Notify(t *testing.T) {
	var got linePush
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewLineSink("channel-token", "user-1")
	sink.SetBaseURL(srv.URL)

	err := sink.Notify(context.Background(), sampleNotification())
	require.NoError(t, err)

	assert.Equal(t, "Bearer channel-token", auth)
	assert.Equal(t, "user-1", got.To)
	require.Len(t, got.Messages, 1)
	assert.Contains(t, got.Messages[0].Text, "2330 TSMC")
	assert.Contains(t, got.Messages[0].Text, "gap +2.10%")
	assert.Contains(t, got.Messages[0].Text, "futures listed")
}

func TestLineSink_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	sink := NewLineSink("bad-token", "user-1")
	sink.SetBaseURL(srv.URL)

	err := sink.Notify(context.Background(), sampleNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestLogSink_Notify(t *testing.T) {
	sink := NewLogSink(nil)
	assert.NoError(t, sink.Notify(context.Background(), sampleNotification()))
}
