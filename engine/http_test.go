package engine

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
)

func TestHandleStatusReportsBackendInfo(t *testing.T) {
	e := newTestEngine(t)
	e.ReleaseVer = "42"

	srv := httptest.NewServer(e.NewHTTPRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status HTTPStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "test", status.Backend)
	assert.Equal(t, "42", status.ReleaseVer)
}

func TestHandleWatchStreamsJobEvents(t *testing.T) {
	e := newTestEngine(t)

	srv := httptest.NewServer(e.NewHTTPRouter())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/search-name?param=none&param=htop"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	sawPackage := false
	sawFinished := false
	deadline := time.Now().Add(2 * time.Second)
	for !sawFinished && time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		var ev wsEvent
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
		switch ev.Kind {
		case "package":
			sawPackage = true
		case "finished":
			sawFinished = true
		}
	}
	assert.True(t, sawPackage)
	assert.True(t, sawFinished)
}
