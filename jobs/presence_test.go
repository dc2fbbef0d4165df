package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"chat-service/presence"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/neilotoole/slogt"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu      sync.Mutex
	offline []string
}

func (f *fakeNotifier) Offline(users []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = append(f.offline, users...)
}

func TestPresence_Reconcile(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cli.Close()

	dead := presence.New(cli, "gw-dead", 5*time.Second)
	live := presence.New(cli, "gw-live", 30*time.Second)
	require.NoError(t, dead.Heartbeat(ctx))
	require.NoError(t, live.Heartbeat(ctx))

	_, err := dead.AddSocket(ctx, "alice", "s1")
	require.NoError(t, err)
	_, err = dead.AddSocket(ctx, "bob", "s2")
	require.NoError(t, err)
	_, err = live.AddSocket(ctx, "bob", "s3")
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	job := NewPresence(live, notifier, slogt.New(t), time.Second)

	users, err := job.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	// The dead instance stops beating; only alice loses her last socket.
	mr.FastForward(10 * time.Second)
	require.NoError(t, job.Heartbeat(ctx))

	users, err = job.Reconcile(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"alice"}, users); diff != "" {
		t.Errorf("Reconcile() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"alice"}, notifier.offline)

	online, err := live.IsOnline(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, online)
}

func TestStart(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cli.Close()

	// A previous process under the same id crashed with carol connected.
	crashed := presence.New(cli, "gw-1", 30*time.Second)
	require.NoError(t, crashed.Heartbeat(ctx))
	_, err := crashed.AddSocket(ctx, "carol", "s-old")
	require.NoError(t, err)

	registry := presence.New(cli, "gw-1", 30*time.Second)
	notifier := &fakeNotifier{}
	job := NewPresence(registry, notifier, slogt.New(t), time.Second)

	c, err := Start(ctx, job, Schedule{Heartbeat: 10 * time.Second, Reconcile: "@every 1m"}, slogt.New(t))
	require.NoError(t, err)
	defer c.Stop()

	assert.Len(t, c.Entries(), 2)
	assert.True(t, mr.Exists("presence:instance:gw-1:alive"))
	assert.Equal(t, []string{"carol"}, notifier.offline)

	online, err := registry.IsOnline(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, online)

	_, err = Start(ctx, job, Schedule{Heartbeat: time.Second, Reconcile: "not a schedule"}, slogt.New(t))
	require.Error(t, err)
}
