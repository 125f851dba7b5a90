package listener

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-pikul/contacts-rcs/config"
	"github.com/chris-pikul/contacts-rcs/simphoto"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server, chan simphoto.Event) {
	t.Helper()
	events := make(chan simphoto.Event, 8)
	handler := simphoto.HandlerFunc(func(_ context.Context, ev simphoto.Event) {
		events <- ev
	})

	s := NewServer(config.ListenerOptions{Port: 4100, MetricsPath: "/metrics"}, handler)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts, events
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var welcome Message
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, TypeWelcome, welcome.Type)
	return conn
}

func TestEventIsDeliveredAndAcked(t *testing.T) {
	_, ts, events := newTestServer(t)
	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"sim_photo_changed","sim_sub":1}`)))

	select {
	case ev := <-events:
		assert.Equal(t, simphoto.Sub2, ev.Subscription)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}

	var ack Message
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, TypeAck, ack.Type)
	assert.NotEmpty(t, ack.ID)
}

func TestOutOfRangeSubscriptionStillReachesHandler(t *testing.T) {
	_, ts, events := newTestServer(t)
	conn := dial(t, ts)

	//range checks belong to the handler, the transport only relays
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"sim_photo_changed","sim_sub":4}`)))

	select {
	case ev := <-events:
		assert.Equal(t, 4, ev.Subscription)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestBadFramesGetErrors(t *testing.T) {
	_, ts, events := newTestServer(t)
	conn := dial(t, ts)

	frames := map[string]string{
		`not json`:                     "",
		`{"type":"bind"}`:              ErrUnknownType.Error(),
		`{"type":"sim_photo_changed"}`: ErrMissingSubscription.Error(),
	}

	for frame, want := range frames {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))

		var reply Message
		require.NoError(t, conn.ReadJSON(&reply))
		assert.Equal(t, TypeError, reply.Type, frame)
		if want != "" {
			assert.Equal(t, want, reply.Error, frame)
		}
	}

	assert.Len(t, events, 0)
}

func TestPing(t *testing.T) {
	_, ts, _ := newTestServer(t)
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(Message{Type: TypePing, Ping: 42}))

	var pong Message
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, TypePong, pong.Type)
	assert.Equal(t, 42, pong.Ping)
}

func TestClientTrackingAndShutdown(t *testing.T) {
	s, ts, _ := newTestServer(t)
	conn := dial(t, ts)

	assert.Eventually(t, func() bool { return s.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "shutdown should disconnect clients")

	assert.Eventually(t, func() bool { return s.ClientCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestMetricsRoute(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "contacts_listener_clients")
}
