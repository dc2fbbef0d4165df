package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Settings holds every tunable of the chat service. Values come from the
// environment (prefix CHAT_) after an optional .env file has been loaded.
type Settings struct {
	Debug bool   `envconfig:"debug"`
	Env   string `envconfig:"app_env" default:"development"`

	ServerPort string `envconfig:"server_port" default:"3000"`
	InstanceID string `envconfig:"instance_id"`

	PostgresHost     string `envconfig:"postgres_host" default:"localhost"`
	PostgresPort     string `envconfig:"postgres_port" default:"5432"`
	PostgresUser     string `envconfig:"postgres_user"`
	PostgresPassword string `envconfig:"postgres_password"`
	PostgresDB       string `envconfig:"postgres_db"`

	RedisHost     string `envconfig:"redis_host" default:"localhost"`
	RedisPort     string `envconfig:"redis_port" default:"6379"`
	RedisPassword string `envconfig:"redis_password"`
	RedisDB       []int  `envconfig:"redis_db" default:"0,1"`

	RabbitMQUser     string `envconfig:"rabbitmq_user" default:"guest"`
	RabbitMQPassword string `envconfig:"rabbitmq_password" default:"guest"`
	RabbitMQHost     string `envconfig:"rabbitmq_host" default:"localhost"`
	RabbitMQPort     string `envconfig:"rabbitmq_port" default:"5672"`

	EventMode  string `envconfig:"event_mode"`
	OutboxFile string `envconfig:"outbox_file" default:"log/out.log"`

	JWTAccessKey string `envconfig:"jwt_access_key"`

	RateLimitMessages int64         `envconfig:"rate_limit_messages" default:"20"`
	RateLimitWindow   time.Duration `envconfig:"rate_limit_window" default:"10s"`

	PreviewLength  int           `envconfig:"preview_length" default:"100"`
	EditWindow     time.Duration `envconfig:"edit_window" default:"0"`
	HandlerTimeout time.Duration `envconfig:"handler_timeout" default:"10s"`

	PresenceHeartbeat time.Duration `envconfig:"presence_heartbeat" default:"10s"`
	PresenceTTL       time.Duration `envconfig:"presence_ttl" default:"30s"`
	ReconcileSchedule string        `envconfig:"reconcile_schedule" default:"@every 1m"`

	ProfileServiceURL string        `envconfig:"profile_service_url" default:"http://auth:3000"`
	ProfileCacheTTL   time.Duration `envconfig:"profile_cache_ttl" default:"5m"`

	AdminUserIDs []string `envconfig:"admin_user_ids"`
}

// Production reports whether the service runs with production defaults.
func (s *Settings) Production() bool {
	return s.Env == "production"
}

func Load() (*Settings, error) {
	if os.Getenv("CHAT_APP_ENV") != "production" {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("couldn't load .env, reading from system environment: %v", err)
		}
	}

	s := &Settings{}
	if err := envconfig.Process("chat", s); err != nil {
		return nil, err
	}
	if s.InstanceID == "" {
		host, _ := os.Hostname()
		s.InstanceID = host
	}
	return s, nil
}
