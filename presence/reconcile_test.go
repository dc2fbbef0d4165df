package presence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_ungracefulDisconnect(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cli.Close() })

	crashed := New(cli, "gw-crashed", 30*time.Second)
	healthy := New(cli, "gw-healthy", 30*time.Second)

	require.NoError(t, crashed.Heartbeat(ctx))
	require.NoError(t, healthy.Heartbeat(ctx))

	_, err := crashed.AddSocket(ctx, "u1", "s1")
	require.NoError(t, err)
	_, err = crashed.AddSocket(ctx, "u2", "s2")
	require.NoError(t, err)
	_, err = healthy.AddSocket(ctx, "u2", "s3")
	require.NoError(t, err)

	// The crashed instance never runs its disconnect handlers.
	mr.FastForward(20 * time.Second)
	require.NoError(t, healthy.Heartbeat(ctx))

	offline, err := healthy.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, offline)

	online, err := healthy.IsOnline(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, online, "stale entry stays until the heartbeat expires")

	mr.FastForward(20 * time.Second)
	require.NoError(t, healthy.Heartbeat(ctx))

	offline, err = healthy.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, offline)

	online, err = healthy.IsOnline(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, online)

	online, err = healthy.IsOnline(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, online, "u2 still has a socket on the healthy instance")

	instances, err := cli.SMembers(ctx, instancesKey).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"gw-healthy"}, instances)
}

func TestRelease_ownInstance(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t, "gw-1")

	_, err := r.AddSocket(ctx, "u1", "s1")
	require.NoError(t, err)
	_, err = r.AddSocket(ctx, "u1", "s2")
	require.NoError(t, err)

	offline, err := r.Release(ctx, r.InstanceID())
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, offline)

	count, err := r.SocketCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReclaim_restartWithSameInstanceID(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cli.Close() })

	before := New(cli, "host-1", 30*time.Second)
	require.NoError(t, before.Heartbeat(ctx))
	_, err := before.AddSocket(ctx, "u1", "s-old")
	require.NoError(t, err)

	// The process dies without releasing and comes back under the same id.
	after := New(cli, "host-1", 30*time.Second)
	offline, err := after.Reclaim(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, offline)
	require.NoError(t, after.Heartbeat(ctx))

	online, err := after.IsOnline(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, online)

	userID, err := after.UserForSocket(ctx, "s-old")
	require.NoError(t, err)
	assert.Empty(t, userID)

	instances, err := cli.SMembers(ctx, instancesKey).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"host-1"}, instances)

	// New sockets of the restarted process are untouched by later rounds.
	_, err = after.AddSocket(ctx, "u2", "s-new")
	require.NoError(t, err)
	peer := New(cli, "host-2", 30*time.Second)
	require.NoError(t, peer.Heartbeat(ctx))
	offline, err = peer.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, offline)

	online, err = after.IsOnline(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, online)
}

func TestReconcile_concurrentInstances(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cli.Close() })

	for trial := 0; trial < 20; trial++ {
		dead := New(cli, "gw-dead", time.Second)
		a := New(cli, "gw-a", time.Minute)
		b := New(cli, "gw-b", time.Minute)
		require.NoError(t, dead.Heartbeat(ctx))
		for i := 0; i < 20; i++ {
			_, err := dead.AddSocket(ctx, "u1", fmt.Sprintf("t%d-s%d", trial, i))
			require.NoError(t, err)
		}
		mr.FastForward(2 * time.Second)
		require.NoError(t, a.Heartbeat(ctx))
		require.NoError(t, b.Heartbeat(ctx))

		var (
			wg      sync.WaitGroup
			results [2][]string
		)
		for i, r := range []*Registry{a, b} {
			wg.Add(1)
			go func(i int, r *Registry) {
				defer wg.Done()
				users, err := r.Reconcile(ctx)
				assert.NoError(t, err)
				results[i] = users
			}(i, r)
		}
		wg.Wait()

		reported := append(results[0], results[1]...)
		assert.Equal(t, []string{"u1"}, reported, "trial %d: a=%v b=%v", trial, results[0], results[1])

		online, err := a.IsOnline(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, online)
	}
}
