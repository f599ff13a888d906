package redis

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/flowengine/pkg/persistence"
	"github.com/dukex/flowengine/pkg/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, opts ...Option) (*Persistence, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := NewPersistence(t.Context(), logger, "redis://"+server.Addr(), opts...)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close(t.Context()) })

	return store, server
}

func TestPersistence_Contract(t *testing.T) {
	store, _ := newStore(t)

	persistencetest.Run(t, store)
}

func TestPersistence_TTLExpiresRuns(t *testing.T) {
	store, server := newStore(t, WithTTL(time.Minute))

	start := time.Now()
	require.NoError(t, store.SaveRun(t.Context(), persistencetest.NewRun("exec-1", "flow", start)))
	require.NoError(t, store.SaveRun(t.Context(), persistencetest.NewRun("exec-2", "flow", start.Add(time.Second))))

	assert.Equal(t, time.Minute, server.TTL(runKey("exec-1")))

	server.FastForward(2 * time.Minute)

	_, err := store.RunByID(t.Context(), "exec-1")
	require.True(t, persistence.IsRunNotFound(err))

	runs, err := store.RunsByFlow(t.Context(), "flow")
	require.NoError(t, err)
	assert.Empty(t, runs)

	members, err := server.ZMembers(flowKey("flow"))
	require.Error(t, err, "index is pruned once every run expired: %v", members)
}

func TestNewPersistence_InvalidURL(t *testing.T) {
	_, err := NewPersistence(t.Context(), slog.New(slog.NewTextHandler(io.Discard, nil)), "http://nope")
	require.Error(t, err)
}
