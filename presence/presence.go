// Package presence tracks which users have live connections. State lives in
// Redis so every gateway instance sees the same picture; every mutation runs
// as a single Lua script.
package presence

import (
	"context"
	"fmt"
	"time"

	"chat-service/apperr"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "presence:"

func socketKey(socketID string) string {
	return fmt.Sprintf("%ssocket:%s", keyPrefix, socketID)
}

func userSocketsKey(userID string) string {
	return fmt.Sprintf("%suser:%s:sockets", keyPrefix, userID)
}

func onlineKey(userID string) string {
	return fmt.Sprintf("%suser:%s:online", keyPrefix, userID)
}

func instanceKey(instanceID string) string {
	return fmt.Sprintf("%sinstance:%s:sockets", keyPrefix, instanceID)
}

func aliveKey(instanceID string) string {
	return fmt.Sprintf("%sinstance:%s:alive", keyPrefix, instanceID)
}

const instancesKey = keyPrefix + "instances"

// KEYS: socket, user sockets, user online, instance sockets
// ARGV: user id, socket id, key prefix
var addScript = redis.NewScript(`
local prev = redis.call('GET', KEYS[1])
if prev and prev ~= ARGV[1] then
	local prevSockets = ARGV[3] .. 'user:' .. prev .. ':sockets'
	redis.call('SREM', prevSockets, ARGV[2])
	if redis.call('SCARD', prevSockets) == 0 then
		redis.call('DEL', ARGV[3] .. 'user:' .. prev .. ':online')
	end
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SADD', KEYS[2], ARGV[2])
redis.call('SET', KEYS[3], '1')
redis.call('SADD', KEYS[4], ARGV[2])
return redis.call('SCARD', KEYS[2])
`)

// NotRemoved is what RemoveSocket returns when the socket was already gone.
const NotRemoved int64 = -1

// KEYS: socket, user sockets, user online, instance sockets
// ARGV: user id, socket id
var removeScript = redis.NewScript(`
local removed = redis.call('SREM', KEYS[2], ARGV[2])
redis.call('SREM', KEYS[4], ARGV[2])
if redis.call('GET', KEYS[1]) == ARGV[1] then
	redis.call('DEL', KEYS[1])
end
if removed == 0 then
	return -1
end
local n = redis.call('SCARD', KEYS[2])
if n == 0 then
	redis.call('DEL', KEYS[3])
end
return n
`)

// Registry is the Redis-backed presence registry of one gateway instance.
type Registry struct {
	cli      *redis.Client
	instance string
	ttl      time.Duration
}

// New returns a registry for instanceID. ttl bounds how long the instance is
// considered alive after its last Heartbeat.
func New(cli *redis.Client, instanceID string, ttl time.Duration) *Registry {
	return &Registry{
		cli:      cli,
		instance: instanceID,
		ttl:      ttl,
	}
}

func (r *Registry) InstanceID() string {
	return r.instance
}

// AddSocket maps socketID to userID and returns the user's socket count after
// the change. A count of 1 means the user just came online.
func (r *Registry) AddSocket(ctx context.Context, userID, socketID string) (int64, error) {
	n, err := addScript.Run(ctx, r.cli,
		[]string{socketKey(socketID), userSocketsKey(userID), onlineKey(userID), instanceKey(r.instance)},
		userID, socketID, keyPrefix,
	).Int64()
	if err != nil {
		return 0, apperr.ErrPresenceUnavailable(errors.Wrap(err, "presence.AddSocket"))
	}
	return n, nil
}

// RemoveSocket drops socketID from userID and returns the remaining count. A
// count of 0 means the user just went offline; NotRemoved means another
// caller removed the socket first.
func (r *Registry) RemoveSocket(ctx context.Context, userID, socketID string) (int64, error) {
	return r.removeSocket(ctx, r.instance, userID, socketID)
}

func (r *Registry) removeSocket(ctx context.Context, instanceID, userID, socketID string) (int64, error) {
	n, err := removeScript.Run(ctx, r.cli,
		[]string{socketKey(socketID), userSocketsKey(userID), onlineKey(userID), instanceKey(instanceID)},
		userID, socketID,
	).Int64()
	if err != nil {
		return 0, apperr.ErrPresenceUnavailable(errors.Wrap(err, "presence.RemoveSocket"))
	}
	return n, nil
}

func (r *Registry) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := r.cli.Exists(ctx, onlineKey(userID)).Result()
	if err != nil {
		return false, apperr.ErrPresenceUnavailable(errors.Wrap(err, "presence.IsOnline"))
	}
	return n > 0, nil
}

func (r *Registry) SocketCount(ctx context.Context, userID string) (int64, error) {
	n, err := r.cli.SCard(ctx, userSocketsKey(userID)).Result()
	if err != nil {
		return 0, apperr.ErrPresenceUnavailable(errors.Wrap(err, "presence.SocketCount"))
	}
	return n, nil
}

func (r *Registry) MapSocket(ctx context.Context, socketID, userID string) error {
	if err := r.cli.Set(ctx, socketKey(socketID), userID, 0).Err(); err != nil {
		return apperr.ErrPresenceUnavailable(errors.Wrap(err, "presence.MapSocket"))
	}
	return nil
}

func (r *Registry) UnmapSocket(ctx context.Context, socketID string) error {
	if err := r.cli.Del(ctx, socketKey(socketID)).Err(); err != nil {
		return apperr.ErrPresenceUnavailable(errors.Wrap(err, "presence.UnmapSocket"))
	}
	return nil
}

// UserForSocket returns the user mapped to socketID, or "" if none.
func (r *Registry) UserForSocket(ctx context.Context, socketID string) (string, error) {
	userID, err := r.cli.Get(ctx, socketKey(socketID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", apperr.ErrPresenceUnavailable(errors.Wrap(err, "presence.UserForSocket"))
	}
	return userID, nil
}
