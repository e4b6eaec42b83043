package flow

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type AppConfig struct {
	Mode          string
	ApiPort       string
	ExportBaseURL string
	ExportDir     string
	SaveDebounce  time.Duration
	KVBackend     string
	SnapshotTTL   time.Duration
	AllowOrigins  []string
	MainDatabase  struct {
		Host         string
		Port         string
		User         string
		Password     string
		DatabaseName string
		SSLMode      string
	}
	JWTConfig struct {
		Secret string
	}
	RedisConfig struct {
		Host     string
		Port     string
		Password string
		DB       int
	}
	NatsConfig struct {
		URL      string
		TenantID string
	}
}

func (slf AppConfig) IsDev() bool {
	return slf.Mode == "dev"
}

// LoadConfig reads envfile, when present, and builds the configuration from the environment.
func LoadConfig(envfile string) AppConfig {
	if err := godotenv.Load(envfile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Error loading %s file: %s", envfile, err)
	}

	var config AppConfig
	config.Mode = GetEnv("RUN_MODE", "dev")
	config.ApiPort = GetEnv("API_PORT", ":8080")
	config.ExportBaseURL = GetEnv("EXPORT_BASE_URL", "http://localhost:8000")
	config.ExportDir = GetEnv("EXPORT_DIR", "")
	config.SaveDebounce = time.Duration(getIntEnvOrDefault("SAVE_DEBOUNCE_MS", 800)) * time.Millisecond
	config.KVBackend = strings.ToLower(GetEnv("KV_BACKEND", BackendRedis))
	config.SnapshotTTL = time.Duration(getIntEnvOrDefault("SNAPSHOT_TTL_HOURS", 0)) * time.Hour
	config.AllowOrigins = strings.Split(GetEnv("ALLOW_ORIGINS", "*"), ",")

	config.MainDatabase.Host = GetEnv("DB_HOSTNAME", "localhost")
	config.MainDatabase.Port = GetEnv("DB_PORT", "5432")
	config.MainDatabase.User = GetEnv("DB_USERNAME", "postgres")
	config.MainDatabase.Password = GetEnv("DB_PASSWORD", "")
	config.MainDatabase.DatabaseName = GetEnv("DB_NAME", "flow")
	config.MainDatabase.SSLMode = GetEnv("DB_SSL_MODE", "disable")

	if config.IsDev() {
		config.JWTConfig.Secret = GetEnv("JWT_SECRET", "")
	} else {
		config.JWTConfig.Secret = getEnvOrPanic("JWT_SECRET")
	}

	config.RedisConfig.Host = GetEnv("REDIS_HOST", "localhost")
	config.RedisConfig.Port = GetEnv("REDIS_PORT", "6379")
	config.RedisConfig.Password = GetEnv("REDIS_PASSWORD", "")
	config.RedisConfig.DB = getIntEnvOrDefault("REDIS_DB", 0)

	config.NatsConfig.URL = GetEnv("NATS_URL", "")
	config.NatsConfig.TenantID = GetEnv("TENANT_ID", "default")

	return config
}

func getEnvOrPanic(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("%s must be set", key)
	}
	return value
}

func GetEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

func NewLogger(mode string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
		NoColor:    mode != "dev",
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		},
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("  %s  ", i)
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("%s=", i)
		},
		FormatFieldValue: func(i interface{}) string {
			return fmt.Sprintf("%s", i)
		},
	}

	level := zerolog.InfoLevel
	if mode == "dev" {
		level = zerolog.DebugLevel
	}
	return zerolog.New(output).Level(level).With().Timestamp().Caller().Logger()
}

func ConnectToRedis(cfg AppConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisConfig.Host, cfg.RedisConfig.Port),
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func ConnectToPostgres(cfg AppConfig) (*gorm.DB, error) {
	db := cfg.MainDatabase
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		db.Host, db.User, db.Password, db.DatabaseName, db.Port, db.SSLMode)

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				SlowThreshold: 0,
				LogLevel:      logger.Error,
			},
		),
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return conn, nil
}
