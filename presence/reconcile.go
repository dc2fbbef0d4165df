package presence

import (
	"context"

	"chat-service/apperr"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Heartbeat marks this instance alive for the registry ttl.
func (r *Registry) Heartbeat(ctx context.Context) error {
	_, err := r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, aliveKey(r.instance), "1", r.ttl)
		pipe.SAdd(ctx, instancesKey, r.instance)
		return nil
	})
	if err != nil {
		return apperr.ErrPresenceUnavailable(errors.Wrap(err, "presence.Heartbeat"))
	}
	return nil
}

// Reconcile releases the sockets of every instance whose heartbeat expired and
// returns the users that went offline as a result. Connections dropped
// without a disconnect stay online until this runs.
func (r *Registry) Reconcile(ctx context.Context) ([]string, error) {
	instances, err := r.cli.SMembers(ctx, instancesKey).Result()
	if err != nil {
		return nil, apperr.ErrPresenceUnavailable(errors.Wrap(err, "presence.Reconcile.SMembers"))
	}

	var offline []string
	for _, instance := range instances {
		alive, err := r.cli.Exists(ctx, aliveKey(instance)).Result()
		if err != nil {
			return offline, apperr.ErrPresenceUnavailable(errors.Wrap(err, "presence.Reconcile.Exists"))
		}
		if alive > 0 {
			continue
		}

		users, err := r.Release(ctx, instance)
		offline = append(offline, users...)
		if err != nil {
			return offline, err
		}
	}
	return offline, nil
}

// Reclaim releases the sockets an earlier process left under this instance
// id. It must run before the first Heartbeat: once the id beats again,
// Reconcile treats those sockets as live.
func (r *Registry) Reclaim(ctx context.Context) ([]string, error) {
	return r.Release(ctx, r.instance)
}

// Release removes every socket owned by instanceID and forgets the instance.
// It returns the users whose last socket was removed by this call, so
// concurrent releases of the same instance never report a user twice.
func (r *Registry) Release(ctx context.Context, instanceID string) ([]string, error) {
	sockets, err := r.cli.SMembers(ctx, instanceKey(instanceID)).Result()
	if err != nil {
		return nil, apperr.ErrPresenceUnavailable(errors.Wrap(err, "presence.Release.SMembers"))
	}

	var offline []string
	for _, socketID := range sockets {
		userID, err := r.UserForSocket(ctx, socketID)
		if err != nil {
			return offline, err
		}
		if userID == "" {
			r.cli.SRem(ctx, instanceKey(instanceID), socketID)
			continue
		}

		n, err := r.removeSocket(ctx, instanceID, userID, socketID)
		if err != nil {
			return offline, err
		}
		if n == 0 {
			offline = append(offline, userID)
		}
	}

	if err := r.cli.SRem(ctx, instancesKey, instanceID).Err(); err != nil {
		return offline, apperr.ErrPresenceUnavailable(errors.Wrap(err, "presence.Release.SRem"))
	}
	return offline, nil
}
