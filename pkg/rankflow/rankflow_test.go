package rankflow_test

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/pkg/lifecycle"
	"github.com/bft-labs/rankflow/pkg/nmc/nmctest"
	"github.com/bft-labs/rankflow/pkg/rankflow"
)

type collectSink struct {
	mu      sync.Mutex
	results []*rankflow.Result
	closed  bool
}

func (c *collectSink) Publish(_ context.Context, r *rankflow.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
	return nil
}

func (c *collectSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *collectSink) snapshot() ([]*rankflow.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*rankflow.Result(nil), c.results...), c.closed
}

type recordingHandler struct {
	rankflow.BaseEventHandler
	mu     sync.Mutex
	states []rankflow.State
}

func (h *recordingHandler) OnStateChange(e rankflow.StateChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, e.Current)
}

func (h *recordingHandler) States() []rankflow.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]rankflow.State(nil), h.states...)
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  rankflow.Config
	}{
		{"unknown mode", rankflow.Config{Mode: "serial", File: "x"}},
		{"window too small", rankflow.Config{Mode: "file", File: "x", Window: 1}},
		{"net without port", rankflow.Config{Mode: "net", Host: "127.0.0.1"}},
		{"unknown backend", rankflow.Config{Mode: "file", File: "x", Backend: "tpu"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rankflow.New(tt.cfg)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestFileRunToCompletion(t *testing.T) {
	path := writeInput(t, "0 2 1\n1 1 0\n2 0 2\n3 4 5\n4 3 4\n5 5 3\n")
	out := &collectSink{}
	handler := &recordingHandler{}

	rf, err := rankflow.New(rankflow.Config{Mode: "file", File: path, Window: 3, Backend: "cpu"},
		rankflow.WithSink(out),
		rankflow.WithEventHandler(handler),
	)
	require.NoError(t, err)
	assert.Equal(t, "cpu", rf.Backend())
	assert.Equal(t, rankflow.StateStopped, rf.Status())

	ctx := waitCtx(t)
	require.NoError(t, rf.Start(ctx))
	require.NoError(t, rf.Wait(ctx))

	results, closed := out.snapshot()
	require.Len(t, results, 2)
	assert.True(t, closed)
	assert.Equal(t, uint64(2), rf.Results())
	assert.Equal(t, uint64(2), rf.Latest().Seq)
	assert.InDelta(t, 1.0, results[0].Kfs[domain.Pair{I: 0, J: 1}], 1e-12)

	assert.Equal(t, rankflow.StateStopped, rf.Status())
	want := []rankflow.State{
		rankflow.StateStarting, rankflow.StateRunning, rankflow.StateStopping, rankflow.StateStopped,
	}
	// Handlers run just after the state is stored.
	assert.Eventually(t, func() bool { return assert.ObjectsAreEqual(want, handler.States()) },
		time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, rf.Stop(), domain.ErrNotRunning)
}

func TestFileCheckpointAcrossStarts(t *testing.T) {
	path := writeInput(t, "1 2\n2 1\n3 3\n4 4\n")
	stateDir := t.TempDir()
	cfg := rankflow.Config{Mode: "file", File: path, Window: 2, Backend: "cpu", StateDir: stateDir}

	rf, err := rankflow.New(cfg)
	require.NoError(t, err)
	ctx := waitCtx(t)
	require.NoError(t, rf.Start(ctx))
	require.NoError(t, rf.Wait(ctx))
	require.Equal(t, uint64(2), rf.Results())
	assert.FileExists(t, filepath.Join(stateDir, "status.json"))

	// The second run starts at the saved offset and finds nothing new.
	require.NoError(t, rf.Start(ctx))
	require.NoError(t, rf.Wait(ctx))
	assert.Equal(t, uint64(2), rf.Results())
}

func TestStopFollowingFile(t *testing.T) {
	path := writeInput(t, "1 2\n2 1\n")
	rf, err := rankflow.New(rankflow.Config{
		Mode: "file", File: path, Window: 2, Backend: "cpu",
		Follow: true, PollInterval: 10 * time.Millisecond,
		Listen: "127.0.0.1:0",
	})
	require.NoError(t, err)

	ctx := waitCtx(t)
	require.NoError(t, rf.Start(ctx))
	assert.ErrorIs(t, rf.Start(ctx), domain.ErrAlreadyRunning)

	require.Eventually(t, func() bool { return rf.Results() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, rankflow.StateRunning, rf.Status())

	resp, err := http.Get("http://" + rf.Addr() + "/healthz")
	require.NoError(t, err)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, "Running", body["status"])

	resp, err = http.Get("http://" + rf.Addr() + "/latest")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, rf.Stop())
	assert.Equal(t, rankflow.StateStopped, rf.Status())
	assert.Empty(t, rf.Addr())
	require.NoError(t, rf.Close())
}

func TestNetSessionEndsAtDisconnect(t *testing.T) {
	srv := nmctest.NewServer(t)
	out := &collectSink{}
	rf, err := rankflow.New(rankflow.Config{
		Mode: "net", Host: srv.Host(), Port: srv.Port(), Window: 24, Backend: "emulated",
	}, rankflow.WithSink(out))
	require.NoError(t, err)

	ctx := waitCtx(t)
	require.NoError(t, rf.Start(ctx))
	assert.Equal(t, "Spearman", srv.Accept(ctx))
	require.NoError(t, srv.SendFrame(nmctest.Frame(0)))
	require.NoError(t, srv.SendFrame(nmctest.Frame(100)))
	require.NoError(t, srv.SendDisconnect())

	require.NoError(t, rf.Wait(ctx))
	results, _ := out.snapshot()
	require.Len(t, results, 2)
	assert.Equal(t, domain.FrameChannels, results[0].Keys)
	assert.Equal(t, "gpu:emulated", results[1].Backend)
}

func TestNetReconnectsExhausted(t *testing.T) {
	srv := nmctest.NewServer(t)
	host, port := srv.Host(), srv.Port()
	srv.Close()

	rf, err := rankflow.New(rankflow.Config{
		Mode: "net", Host: host, Port: port, Backend: "cpu",
		Reconnect: true, MaxReconnects: 2,
		RetryMin: time.Millisecond, RetryMax: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx := waitCtx(t)
	require.NoError(t, rf.Start(ctx))
	err = rf.Wait(ctx)
	assert.ErrorIs(t, err, lifecycle.ErrReconnectsExhausted)
	assert.Equal(t, rankflow.StateCrashed, rf.Status())
}

func TestFileOpenFailureCrashes(t *testing.T) {
	rf, err := rankflow.New(rankflow.Config{
		Mode: "file", File: filepath.Join(t.TempDir(), "missing.txt"), Backend: "cpu",
	})
	require.NoError(t, err)

	ctx := waitCtx(t)
	require.NoError(t, rf.Start(ctx))
	assert.ErrorIs(t, rf.Wait(ctx), domain.ErrOpenFailed)
	assert.Equal(t, rankflow.StateCrashed, rf.Status())
}
