package database

import (
	"fmt"
	"log/slog"
	"time"

	"chat-service/config"
	"chat-service/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func PostgresConnect(cfg *config.Settings, log *slog.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.PostgresHost,
		cfg.PostgresPort,
		cfg.PostgresUser,
		cfg.PostgresPassword,
		cfg.PostgresDB,
	)

	gormConfig := &gorm.Config{NowFunc: NowUTC}
	if cfg.Debug {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	log.Info("Connection opened to Postgres")

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("Postgres database migrated")
	return db, nil
}

// NowUTC is the clock gorm stamps created_at and updated_at with.
func NowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Migrate creates or updates the chat tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Conversation{},
		&model.ConversationFlag{},
		&model.Message{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
