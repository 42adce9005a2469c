package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  int
	Env         string
	AppName     string
	FrontendURL string
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Reset       ResetConfig
	Login       LoginConfig
	MQ          MQConfig
	RabbitMQ    RabbitMQConfig
	PubSub      PubSubConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type ResetConfig struct {
	Secret string
	TTL    time.Duration
}

type LoginConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
}

type MQConfig struct {
	// Backend selects the notification transport: "rabbitmq" or "pubsub".
	Backend string
	Queue   string
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "nimbus"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "nimbus_auth"),
		UseSSL:   getEnvBool("DB_USE_SSL", false),
	}

	return Config{
		ServerPort:  getEnvInt("SERVER_PORT", 8080),
		Env:         getEnv("ENV", "dev"),
		AppName:     getEnv("APP_NAME", "nimbusnote"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		Database:    dbConfig,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			AccessSecret:  getEnv("JWT_SECRET", ""),
			RefreshSecret: getEnv("JWT_REFRESH_TOKEN_SECRET", ""),
			AccessTTL:     getEnvDuration("JWT_ACCESS_TTL", 4*time.Hour),
			RefreshTTL:    getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
		},
		Reset: ResetConfig{
			Secret: getEnv("HASH_SECRET", ""),
			TTL:    getEnvDuration("RESET_TOKEN_TTL", 24*time.Hour),
		},
		Login: LoginConfig{
			MaxAttempts: getEnvInt("LOGIN_MAX_ATTEMPTS", 10),
			Cooldown:    getEnvDuration("LOGIN_COOLDOWN", 15*time.Minute),
		},
		MQ: MQConfig{
			Backend: getEnv("MQ_BACKEND", "rabbitmq"),
			Queue:   getEnv("MQ_NOTIFICATION_QUEUE", "auth.notifications"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTODELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		return valueStr == "1" || valueStr == "true" || valueStr == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
