package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"civilsite-backend-go/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardHubDeliversVisitEvents(t *testing.T) {
	hub := NewDashboardHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Add(conn)
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastVisits(models.VisitStats{TotalVisits: 12, UniqueVisitors: 4})

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event DashboardEvent
	require.NoError(t, client.ReadJSON(&event))
	assert.Equal(t, EventVisits, event.Type)
	require.NotNil(t, event.Visits)
	assert.Equal(t, int64(12), event.Visits.TotalVisits)
	assert.Nil(t, event.System)
}

func TestBroadcastDoesNotBlockWithoutRunner(t *testing.T) {
	hub := NewDashboardHub()
	for i := 0; i < 100; i++ {
		hub.BroadcastVisits(models.VisitStats{TotalVisits: int64(i)})
	}
	assert.Zero(t, hub.Len())
}

func TestCaptureSystemFillsTimestamp(t *testing.T) {
	snap := CaptureSystem(t.TempDir())
	assert.False(t, snap.CapturedAt.IsZero())
	assert.GreaterOrEqual(t, snap.DiskTotalBytes, int64(0))
}
