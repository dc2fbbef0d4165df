// Package jobs runs the periodic presence upkeep of a gateway instance.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Registry interface {
	Reclaim(ctx context.Context) ([]string, error)
	Heartbeat(ctx context.Context) error
	Reconcile(ctx context.Context) ([]string, error)
}

type Notifier interface {
	Offline(users []string)
}

// Presence keeps this instance's heartbeat fresh and releases the sockets of
// instances that stopped beating.
type Presence struct {
	registry Registry
	notifier Notifier
	log      *slog.Logger
	timeout  time.Duration
}

func NewPresence(registry Registry, notifier Notifier, log *slog.Logger, timeout time.Duration) *Presence {
	return &Presence{registry: registry, notifier: notifier, log: log, timeout: timeout}
}

func (p *Presence) Heartbeat(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.registry.Heartbeat(ctx)
}

// Reconcile broadcasts offline presence for every user whose last socket
// belonged to a dead instance and returns those users.
func (p *Presence) Reconcile(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	users, err := p.registry.Reconcile(ctx)
	if len(users) > 0 {
		p.notifier.Offline(users)
		p.log.Info("presence reconciled", "offline", len(users))
	}
	return users, err
}

// Reclaim clears sockets a previous process with the same instance id left
// behind and broadcasts offline presence for their users.
func (p *Presence) Reclaim(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	users, err := p.registry.Reclaim(ctx)
	if len(users) > 0 {
		p.notifier.Offline(users)
		p.log.Info("presence reclaimed from previous process", "offline", len(users))
	}
	return users, err
}

type Schedule struct {
	Heartbeat time.Duration
	Reconcile string
}

// Start schedules heartbeat and reconciliation. Before that it reclaims what
// an earlier process under the same instance id left, then beats once so the
// instance counts as alive immediately.
func Start(ctx context.Context, p *Presence, s Schedule, log *slog.Logger) (*cron.Cron, error) {
	if _, err := p.Reclaim(ctx); err != nil {
		log.Error("presence reclaim failed", "error", err)
	}
	if err := p.Heartbeat(ctx); err != nil {
		log.Error("presence heartbeat failed", "error", err)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if _, err := c.AddFunc("@every "+s.Heartbeat.String(), func() {
		if err := p.Heartbeat(ctx); err != nil {
			log.Error("presence heartbeat failed", "error", err)
		}
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc(s.Reconcile, func() {
		if _, err := p.Reconcile(ctx); err != nil {
			log.Error("presence reconcile failed", "error", err)
		}
	}); err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}
