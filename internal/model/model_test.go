package model

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/rankflow/internal/compute"
	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/pkg/nmc/nmctest"
	"github.com/bft-labs/rankflow/pkg/state"
)

func writeSamples(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestStepFileSession(t *testing.T) {
	path := writeSamples(t, "0 2 1\n1 1 0\n2 0 2\n")
	m := New(compute.NewCPU(), nil)
	ctx := context.Background()

	require.NoError(t, m.StartSession(ctx, ModeFile, Params{Window: 3, Path: path}))
	defer m.StopSession()

	res, err := m.Step(ctx)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, uint64(1), res.Seq)
	assert.Equal(t, 3, res.Keys)
	assert.Equal(t, "cpu", res.Backend)
	assert.Equal(t, float64(domain.DefaultSampleRate), res.SampleRate)
	assert.InDelta(t, 1.0, res.Kfs[domain.Pair{I: 0, J: 1}], 1e-12)
	assert.InDelta(t, 0.5, res.Kfs[domain.Pair{I: 0, J: 2}], 1e-12)
	assert.InDelta(t, 0.5, res.Kfs[domain.Pair{I: 1, J: 2}], 1e-12)

	res, err = m.Step(ctx)
	require.NoError(t, err)
	assert.Nil(t, res)

	// Further steps keep reporting the end.
	res, err = m.Step(ctx)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestStepPartialWindow(t *testing.T) {
	path := writeSamples(t, "1 2\n2 1\n3 4\n")
	m := New(compute.NewCPU(), nil)
	ctx := context.Background()
	require.NoError(t, m.StartSession(ctx, ModeFile, Params{Window: 2, Path: path}))
	defer m.StopSession()

	res, err := m.Step(ctx)
	require.NoError(t, err)
	assert.False(t, res.Partial)

	res, err = m.Step(ctx)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Partial)
	assert.Equal(t, uint64(2), res.Seq)
}

func TestStartSessionConfigurationErrors(t *testing.T) {
	m := New(compute.NewCPU(), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		mode Mode
		p    Params
		want error
	}{
		{"unknown mode", Mode("serial"), Params{Window: 10}, domain.ErrUnknownMode},
		{"window one", ModeFile, Params{Window: 1, Path: "x"}, domain.ErrInvalidWindow},
		{"window zero net", ModeNet, Params{Window: 0, Host: "h", Port: 1}, domain.ErrInvalidWindow},
		{"missing host", ModeNet, Params{Window: 10, Port: 120}, domain.ErrConfiguration},
		{"bad port", ModeNet, Params{Window: 10, Host: "h", Port: 70000}, domain.ErrConfiguration},
		{"missing file", ModeFile, Params{Window: 10}, domain.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.StartSession(ctx, tt.mode, tt.p)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestStartSessionOpenFailed(t *testing.T) {
	m := New(compute.NewCPU(), nil)
	err := m.StartSession(context.Background(), ModeFile, Params{Window: 2, Path: filepath.Join(t.TempDir(), "none")})
	assert.ErrorIs(t, err, domain.ErrOpenFailed)

	_, err = m.Step(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoSession)
}

func TestStepWithoutSession(t *testing.T) {
	m := New(compute.NewCPU(), nil)
	_, err := m.Step(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoSession)
	assert.NoError(t, m.StopSession())
}

func TestChannelMismatchAcrossWindows(t *testing.T) {
	path := writeSamples(t, "1 2 3\n4 5 6\n1 2\n3 4\n")
	m := New(compute.NewCPU(), nil)
	ctx := context.Background()
	require.NoError(t, m.StartSession(ctx, ModeFile, Params{Window: 2, Path: path}))
	defer m.StopSession()

	_, err := m.Step(ctx)
	require.NoError(t, err)
	_, err = m.Step(ctx)
	assert.ErrorIs(t, err, domain.ErrChannelMismatch)
}

func TestCheckpointResume(t *testing.T) {
	path := writeSamples(t, "1 2\n2 1\n3 4\n4 3\n5 6\n6 5\n")
	repo := state.NewFileRepository(t.TempDir())
	ctx := context.Background()

	m := New(compute.NewCPU(), nil)
	require.NoError(t, m.StartSession(ctx, ModeFile, Params{Window: 2, Path: path, Checkpoints: repo}))
	_, err := m.Step(ctx)
	require.NoError(t, err)
	_, err = m.Step(ctx)
	require.NoError(t, err)
	require.NoError(t, m.StopSession())

	saved, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), saved.Windows)
	assert.Equal(t, int64(len("1 2\n2 1\n3 4\n4 3\n")), saved.Offset)

	require.NoError(t, m.StartSession(ctx, ModeFile, Params{Window: 2, Path: path, Checkpoints: repo, Resume: true}))
	defer m.StopSession()
	res, err := m.Step(ctx)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, uint64(3), res.Seq)

	res, err = m.Step(ctx)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestStepNetSession(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := nmctest.NewServer(t)
	m := New(compute.NewGPU(compute.NewEmulatedDevice()), nil)
	require.NoError(t, m.StartSession(ctx, ModeNet, Params{Window: 24, Host: srv.Host(), Port: srv.Port()}))
	defer m.StopSession()
	srv.Accept(ctx)

	require.NoError(t, srv.SendFrame(nmctest.Frame(0)))
	require.NoError(t, srv.SendDisconnect())

	res, err := m.Step(ctx)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, domain.FrameChannels, res.Keys)
	assert.Len(t, res.Kfs, domain.PairCount(domain.FrameChannels))
	assert.Equal(t, "gpu:emulated", res.Backend)
	// Every channel rises monotonically, so every pair is perfectly correlated.
	for p, v := range res.Kfs {
		assert.InDelta(t, 1.0, v, 1e-12, "pair %s", p)
	}

	res, err = m.Step(ctx)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestStartSessionConnectFailure(t *testing.T) {
	srv := nmctest.NewServer(t)
	host, port := srv.Host(), srv.Port()
	srv.Close()

	m := New(compute.NewCPU(), nil)
	err := m.StartSession(context.Background(), ModeNet, Params{Window: 10, Host: host, Port: port})
	assert.ErrorIs(t, err, domain.ErrConnectFailure)
}

func TestStopSessionInterruptsStep(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := nmctest.NewServer(t)
	m := New(compute.NewCPU(), nil)
	require.NoError(t, m.StartSession(ctx, ModeNet, Params{Window: 24, Host: srv.Host(), Port: srv.Port()}))
	srv.Accept(ctx)

	type stepResult struct {
		res *domain.Result
		err error
	}
	stepped := make(chan stepResult, 1)
	go func() {
		res, err := m.Step(ctx)
		stepped <- stepResult{res, err}
	}()

	// The server stays silent, so Step blocks waiting for rows.
	time.Sleep(50 * time.Millisecond)

	stopped := make(chan error, 1)
	go func() { stopped <- m.StopSession() }()

	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("StopSession blocked behind Step")
	}

	select {
	case r := <-stepped:
		assert.NoError(t, r.err)
		assert.Nil(t, r.res)
	case <-time.After(2 * time.Second):
		t.Fatal("Step did not return")
	}
	assert.Nil(t, m.Session())

	_, err := m.Step(ctx)
	assert.ErrorIs(t, err, domain.ErrNoSession)
}
