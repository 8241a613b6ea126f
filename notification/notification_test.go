package notification

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquibsayyed9/coin-analyze/logger"
	"github.com/aquibsayyed9/coin-analyze/types"
)

func TestManager_TrimsAndOrders(t *testing.T) {
	nm := NewNotificationManager(3)
	for i := 0; i < 5; i++ {
		nm.AddNotification(Notification{Title: fmt.Sprint(i)})
	}

	all := nm.GetNotifications()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"4", "3", "2"}, []string{all[0].Title, all[1].Title, all[2].Title})

	ids := map[string]bool{}
	for _, n := range all {
		assert.NotEmpty(t, n.ID)
		assert.False(t, n.Timestamp.IsZero())
		ids[n.ID] = true
	}
	assert.Len(t, ids, 3, "IDs are unique")
}

func TestFromEvent(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		event    types.RunEvent
		wantType NotificationType
		wantOK   bool
	}{
		{types.RunEvent{Type: types.EventProviderFailed, Provider: "coinmarketcap", Asset: "Bitcoin"}, TypeProviderFailed, true},
		{types.RunEvent{Type: types.EventProviderFallback, Provider: "binance", Asset: "Bitcoin"}, TypeProviderFallback, true},
		{types.RunEvent{Type: types.EventAssetNoData, Asset: "Bitcoin"}, TypeAssetNoData, true},
		{types.RunEvent{Type: types.EventRunCompleted}, TypeRunCompleted, true},
		{types.RunEvent{Type: types.EventRunAborted}, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.event.Type), func(t *testing.T) {
			tt.event.At = at
			n, ok := FromEvent(tt.event)
			assert.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantType, n.Type)
			assert.Equal(t, at, n.Timestamp)
			assert.NotEmpty(t, n.Title)
			if tt.event.Asset != "" {
				assert.Equal(t, tt.event.Asset, n.Metadata["asset"])
			}
		})
	}
}

func TestManager_Filters(t *testing.T) {
	nm := NewNotificationManager(10)
	nm.HandleEvent(types.RunEvent{Type: types.EventAssetNoData, Asset: "Solana", Message: "no volume data for Solana"})
	nm.HandleEvent(types.RunEvent{Type: types.EventProviderFallback, Asset: "Bitcoin", Provider: "binance"})
	nm.HandleEvent(types.RunEvent{Type: types.EventRunAborted})

	assert.Len(t, nm.GetNotifications(), 2)
	assert.Len(t, nm.GetNotificationsByType(TypeAssetNoData), 1)
	assert.Len(t, nm.GetNotificationsByAsset("bitcoin"), 1)
	assert.Empty(t, nm.GetNotificationsByAsset("Ethereum"))

	id := nm.GetNotifications()[0].ID
	assert.True(t, nm.MarkAsRead(id))
	assert.False(t, nm.MarkAsRead("missing"))
	assert.Len(t, nm.GetUnreadNotifications(), 1)

	assert.True(t, nm.DeleteNotification(id))
	assert.False(t, nm.DeleteNotification(id))
	nm.MarkAllAsRead()
	assert.Empty(t, nm.GetUnreadNotifications())
}

func newServer(t *testing.T) (*httptest.Server, *NotificationManager) {
	t.Helper()
	nm := NewNotificationManager(10)
	mux := http.NewServeMux()
	NewNotificationHandler(nm, logger.Discard()).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, nm
}

func TestHandler_ListAndFilter(t *testing.T) {
	srv, nm := newServer(t)
	nm.HandleEvent(types.RunEvent{Type: types.EventAssetNoData, Asset: "Solana"})
	nm.HandleEvent(types.RunEvent{Type: types.EventRunCompleted})

	tests := []struct {
		query string
		want  int
	}{
		{"", 2},
		{"?type=asset_no_data", 1},
		{"?asset=Solana", 1},
		{"?unread=true", 2},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + "/api/notifications" + tt.query)
		require.NoError(t, err)
		var got []Notification
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Len(t, got, tt.want, "query %q", tt.query)
	}
}

func TestHandler_Actions(t *testing.T) {
	srv, nm := newServer(t)

	resp, err := http.Post(srv.URL+"/api/notifications", "application/json",
		strings.NewReader(`{"title":"Redis down","message":"using memory cache"}`))
	require.NoError(t, err)
	var created map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	id := created["id"].(string)
	all := nm.GetNotifications()
	require.Len(t, all, 1)
	assert.Equal(t, TypeSystemAlert, all[0].Type)

	resp, err = http.Post(srv.URL+"/api/notifications/"+id+"/read", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, nm.GetUnreadNotifications())

	resp, err = http.Post(srv.URL+"/api/notifications/nope/read", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/notifications/"+id, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, nm.GetNotifications())

	resp, err = http.Post(srv.URL+"/api/notifications", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_ReadAllAndClear(t *testing.T) {
	srv, nm := newServer(t)
	nm.HandleEvent(types.RunEvent{Type: types.EventAssetNoData, Asset: "Solana"})
	nm.HandleEvent(types.RunEvent{Type: types.EventAssetNoData, Asset: "Tron"})

	resp, err := http.Post(srv.URL+"/api/notifications/read-all", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, nm.GetUnreadNotifications())

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/notifications", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, nm.GetNotifications())

	req, _ = http.NewRequest(http.MethodPut, srv.URL+"/api/notifications/read-all", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
