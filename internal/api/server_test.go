package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrapwatch/internal/config"
	"scrapwatch/internal/engine"
	"scrapwatch/internal/hub"
	"scrapwatch/internal/model"
)

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine, *hub.Hub) {
	t.Helper()
	h := hub.New(16, nil, nil)
	eng := engine.NewEngine(config.DefaultConfig(), nil, h, nil, nil)
	srv := httptest.NewServer(NewServer(eng, h, nil).Routes())
	t.Cleanup(srv.Close)
	return srv, eng, h
}

func TestHealthEndpoint(t *testing.T) {
	srv, eng, h := newTestServer(t)

	eng.Ingest(model.Event{MachineID: "A1", ScrapIndex: 1, Value: 1, Timestamp: time.Now().UTC()})
	obs := h.Register()
	defer h.Unregister(obs)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status        string `json:"status"`
		ObserverCount int    `json:"observerCount"`
		KnownKeyCount int    `json:"knownKeyCount"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.ObserverCount)
	assert.Equal(t, 1, body.KnownKeyCount)
}

func TestKeysEndpoint(t *testing.T) {
	srv, eng, _ := newTestServer(t)
	now := time.Now().UTC()
	eng.Ingest(model.Event{MachineID: "B1", ScrapIndex: 2, Value: 1, Timestamp: now})
	eng.Ingest(model.Event{MachineID: "A1", ScrapIndex: 1, Value: 1, Timestamp: now})

	resp, err := http.Get(srv.URL + "/api/keys")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Keys  []model.Key `json:"keys"`
		Count int         `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 2, body.Count)
	assert.Equal(t, model.Key{MachineID: "A1", ScrapIndex: 1}, body.Keys[0])
	assert.Equal(t, model.Key{MachineID: "B1", ScrapIndex: 2}, body.Keys[1])
}

func TestAggregatesEndpoint(t *testing.T) {
	srv, eng, _ := newTestServer(t)
	now := time.Now().UTC()
	eng.Ingest(model.Event{MachineID: "A1", ScrapIndex: 1, Value: 10, Timestamp: now})
	eng.Ingest(model.Event{MachineID: "A1", ScrapIndex: 1, Value: 15, Timestamp: now})

	resp, err := http.Get(srv.URL + "/api/aggregates")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Aggregates []snapshotPayload `json:"aggregates"`
		Count      int               `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, 25.0, body.Aggregates[0].Sum)
	assert.Equal(t, 12.5, body.Aggregates[0].Avg)
}

func TestWebSocketPushAndRounding(t *testing.T) {
	srv, _, h := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// registration happens inside the upgrade handler
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 10*time.Millisecond)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	h.Publish(model.Snapshot{
		MachineID:  "A1",
		ScrapIndex: 1,
		Sum:        10,
		Avg:        3.333333333,
		Count:      3,
		Timestamp:  ts,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var payload snapshotPayload
	require.NoError(t, conn.ReadJSON(&payload))
	assert.Equal(t, "A1", payload.MachineID)
	assert.Equal(t, 1, payload.ScrapIndex)
	assert.Equal(t, 10.0, payload.Sum)
	assert.Equal(t, 3.33, payload.Avg)
	assert.Equal(t, "2025-06-01T12:00:00Z", payload.Timestamp)
}

func TestWebSocketDisconnectUnregisters(t *testing.T) {
	srv, _, h := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	first, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	second, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer second.Close()
	require.Eventually(t, func() bool { return h.Count() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 10*time.Millisecond)

	// the surviving observer still receives publishes
	h.Publish(model.Snapshot{MachineID: "A1", ScrapIndex: 1, Sum: 7, Timestamp: time.Now().UTC()})
	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	var payload snapshotPayload
	require.NoError(t, second.ReadJSON(&payload))
	assert.Equal(t, 7.0, payload.Sum)
}

func TestHealthRejectsNonGet(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/health", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
