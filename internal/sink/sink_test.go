package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/internal/ports"
)

var (
	_ ports.ResultSink = (*Writer)(nil)
	_ ports.ResultSink = (*WebSocket)(nil)
	_ ports.ResultSink = (*HTTP)(nil)
	_ ports.ResultSink = (*Latest)(nil)
	_ ports.ResultSink = (*Multi)(nil)
)

func sampleResult(seq uint64) *domain.Result {
	return &domain.Result{
		Seq:  seq,
		Keys: 3,
		Kfs: domain.Matrix{
			{I: 1, J: 2}: 0.5,
			{I: 0, J: 1}: 1,
			{I: 0, J: 2}: 0.5,
		},
		SampleRate: 1000,
	}
}

func TestWriterJSONLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	ctx := context.Background()

	require.NoError(t, w.Publish(ctx, sampleResult(1)))
	require.NoError(t, w.Publish(ctx, sampleResult(2)))
	require.NoError(t, w.Close())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"keys":3,"kfs":[[[0,1],1],[[0,2],0.5],[[1,2],0.5]]`)

	var p struct {
		Keys int                  `json:"keys"`
		Kfs  [][2]json.RawMessage `json:"kfs"`
		Seq  uint64               `json:"seq"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &p))
	assert.Equal(t, 3, p.Keys)
	assert.Equal(t, uint64(2), p.Seq)
	assert.Len(t, p.Kfs, 3)
}

type failingSink struct{ calls int }

func (f *failingSink) Publish(context.Context, *domain.Result) error {
	f.calls++
	return errors.New("sink down")
}
func (f *failingSink) Close() error { return nil }

func TestMultiContinuesPastFailure(t *testing.T) {
	bad := &failingSink{}
	latest := NewLatest()
	m := NewMulti(nil, bad, nil, latest)
	assert.Equal(t, 2, m.Len())

	err := m.Publish(context.Background(), sampleResult(7))
	assert.Error(t, err)
	assert.Equal(t, 1, bad.calls)
	require.NotNil(t, latest.Get())
	assert.Equal(t, uint64(7), latest.Get().Seq)
	assert.NoError(t, m.Close())
}

func TestHTTPRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	h := NewHTTP(HTTPConfig{URL: srv.URL, AuthKey: "secret", MaxRetries: 5, RetryMin: time.Millisecond, RetryMax: 2 * time.Millisecond})
	defer h.Close()

	require.NoError(t, h.Publish(context.Background(), sampleResult(1)))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPPermanentFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	h := NewHTTP(HTTPConfig{URL: srv.URL, MaxRetries: 5, RetryMin: time.Millisecond})
	err := h.Publish(context.Background(), sampleResult(1))
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := NewHTTP(HTTPConfig{URL: srv.URL, MaxRetries: 2, RetryMin: time.Millisecond})
	assert.Error(t, h.Publish(context.Background(), sampleResult(1)))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebSocketBroadcast(t *testing.T) {
	ws := NewWebSocket(nil)
	srv := httptest.NewServer(ws)
	defer srv.Close()
	defer ws.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return ws.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, ws.Publish(context.Background(), sampleResult(4)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var p Payload
	require.NoError(t, json.Unmarshal(msg, &struct {
		Keys *int    `json:"keys"`
		Seq  *uint64 `json:"seq"`
	}{&p.Keys, &p.Seq}))
	assert.Equal(t, 3, p.Keys)
	assert.Equal(t, uint64(4), p.Seq)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return ws.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocketPublishWithoutClients(t *testing.T) {
	ws := NewWebSocket(nil)
	assert.NoError(t, ws.Publish(context.Background(), sampleResult(1)))
	assert.NoError(t, ws.Close())
}
