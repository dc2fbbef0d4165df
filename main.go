package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-service/config"
	"chat-service/controller"
	"chat-service/database"
	"chat-service/event"
	"chat-service/event/listener"
	"chat-service/gateway"
	"chat-service/jobs"
	"chat-service/presence"
	"chat-service/profile"
	"chat-service/ratelimit"
	"chat-service/repository"
	"chat-service/router"
	"chat-service/service"
	"chat-service/socketio"
	"chat-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func newLogger(cfg *config.Settings) *slog.Logger {
	var handler slog.Handler
	if cfg.Production() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		level := slog.LevelInfo
		if cfg.Debug {
			level = slog.LevelDebug
		}
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With("service", "chat-service")
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := newLogger(cfg)

	if err := run(cfg, log); err != nil {
		log.Error("chat-service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Settings, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	rest := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         true,
		AppName:               "chat-service",
	})
	rest.Use(recover.New())
	rest.Use(cors.New())

	redisClients, err := database.RedisConnect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range redisClients {
			c.Close()
		}
	}()

	db, err := database.PostgresConnect(cfg, log)
	if err != nil {
		return err
	}
	enforcer, err := database.Casbin(db, cfg.AdminUserIDs)
	if err != nil {
		return err
	}

	amqpConn, amqpChannel, err := event.RabbitMQConnect(cfg, log, []string{
		event.QueueMessageCreated,
		event.QueueConversationStart,
	})
	if err != nil {
		return err
	}
	defer amqpConn.Close()
	defer amqpChannel.Close()

	publisher := event.NewPublisher(amqpChannel, event.NewOutbox(cfg.OutboxFile), cfg.EventMode, log)
	if cfg.EventMode == event.ModeOut {
		if _, err := publisher.Replay(ctx); err != nil {
			log.Error("outbox replay stopped", "error", err)
		}
	}

	registry := presence.New(redisClients[database.RedisPresence], cfg.InstanceID, cfg.PresenceTTL)
	profiles := &profile.Client{
		BaseURL: cfg.ProfileServiceURL,
		Timeout: cfg.HandlerTimeout,
		Cache:   redisClients[database.RedisPresence],
		TTL:     cfg.ProfileCacheTTL,
		Log:     log,
	}

	conversations := service.NewConversationService(repository.NewConversationRepository(db), profiles, registry, log, cfg.PreviewLength)
	messages := service.NewMessageService(repository.NewMessageRepository(db), conversations, log, cfg.EditWindow)

	server := socketio.Init(ctx, rest, cfg, redisClients[database.RedisAdapter])
	gw := gateway.New(gateway.Deps{
		Hub:           socketio.NewHub(server),
		Verifier:      utils.NewVerifier(cfg.JWTAccessKey),
		Presence:      registry,
		Limiter:       ratelimit.New(redisClients[database.RedisPresence], "message", cfg.RateLimitMessages, cfg.RateLimitWindow),
		Conversations: conversations,
		Messages:      messages,
		Publisher:     publisher,
		Profiles:      profiles,
		Log:           log,
		Timeout:       cfg.HandlerTimeout,
	})

	presenceJob := jobs.NewPresence(registry, gw, log, cfg.HandlerTimeout)
	scheduler, err := jobs.Start(ctx, presenceJob, jobs.Schedule{
		Heartbeat: cfg.PresenceHeartbeat,
		Reconcile: cfg.ReconcileSchedule,
	}, log)
	if err != nil {
		return err
	}

	deliveries, err := event.Subscribe(ctx, amqpChannel, event.QueueConversationStart, log)
	if err != nil {
		return err
	}
	go listener.ConversationStart(ctx, deliveries, conversations, log)

	router.Rest(rest, controller.New(conversations, messages, registry, presenceJob, gw, log), cfg.JWTAccessKey, enforcer)
	router.Socket(server, gw, log)

	go func() {
		if err := rest.Listen(fmt.Sprintf(":%s", cfg.ServerPort)); err != nil {
			log.Error("listen", "error", err)
			stop()
		}
	}()
	log.Info("chat-service started", "port", cfg.ServerPort, "instance", cfg.InstanceID)

	<-ctx.Done()
	log.Info("shutting down")

	<-scheduler.Stop().Done()
	server.Close(nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if users, err := registry.Release(shutdownCtx, cfg.InstanceID); err != nil {
		log.Error("presence release failed", "error", err)
	} else {
		gw.Offline(users)
	}

	gw.Wait()
	publisher.Wait()
	return rest.ShutdownWithContext(shutdownCtx)
}
