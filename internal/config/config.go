package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Mongo     MongoConfig
	JWT       JWTConfig
	Kafka     KafkaConfig
	Scheduler SchedulerConfig
	Platform  PlatformConfig
	Logger    LoggerConfig
}

// ServerConfig содержит конфигурацию сервера
type ServerConfig struct {
	HTTPPort string
	GinMode  string
}

// DatabaseConfig содержит конфигурацию базы данных (хранилище профилей)
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// MongoConfig содержит конфигурацию MongoDB (хранилище сообщений чата)
type MongoConfig struct {
	URI         string
	Database    string
	Collection  string
	Timeout     time.Duration
	MaxPoolSize uint64
	MinPoolSize uint64
}

// JWTConfig содержит конфигурацию JWT
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// KafkaConfig содержит конфигурацию Kafka
type KafkaConfig struct {
	Brokers             []string
	Topic               string
	WithdrawalThreshold float64
}

// SchedulerConfig содержит интервалы фоновых процессов сессии
type SchedulerConfig struct {
	AccrualInterval    time.Duration
	SyncInterval       time.Duration
	UnreadInterval     time.Duration
	IdleCheckInterval  time.Duration
	SessionIdleTimeout time.Duration
}

// PlatformConfig содержит экономические параметры платформы
type PlatformConfig struct {
	MinDepositAmount     float64
	MinWithdrawalAmount  float64
	WithdrawalFeePercent float64
	ReferralBonusPercent float64
	WelcomeGiftPrice     float64
	WelcomeGiftHours     int
	WelcomeGiftDailyRate float64
}

// LoggerConfig содержит конфигурацию логгера
type LoggerConfig struct {
	Level string
}

// Load загружает конфигурацию из файла окружения
func Load(configPath string) (*Config, error) {
	// Загрузка переменных окружения из файла
	if configPath != "" {
		if err := godotenv.Load(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg := &Config{}

	// Server
	cfg.Server.HTTPPort = getEnv("HTTP_PORT", DefaultHTTPPort)
	cfg.Server.GinMode = getEnv("GIN_MODE", DefaultGinMode)

	// Database
	cfg.Database.Host = getEnv("DB_HOST", DefaultDBHost)
	cfg.Database.Port = getEnvInt("DB_PORT", DefaultDBPort)
	cfg.Database.User = getEnv("DB_USER", DefaultDBUser)
	cfg.Database.Password = getEnv("DB_PASSWORD", DefaultDBPassword)
	cfg.Database.DBName = getEnv("DB_NAME", DefaultDBName)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", DefaultDBSSLMode)
	cfg.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", DefaultDBMaxOpenConns)
	cfg.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", DefaultDBMaxIdleConns)
	cfg.Database.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", DefaultDBConnMaxLifetime)

	// MongoDB
	cfg.Mongo.URI = getEnv("MONGO_URI", DefaultMongoURI)
	cfg.Mongo.Database = getEnv("MONGO_DATABASE", DefaultMongoDatabase)
	cfg.Mongo.Collection = getEnv("MONGO_COLLECTION", DefaultMongoCollection)
	cfg.Mongo.Timeout = getEnvDuration("MONGO_TIMEOUT", DefaultMongoTimeout)
	cfg.Mongo.MaxPoolSize = uint64(getEnvInt("MONGO_MAX_POOL_SIZE", DefaultMongoMaxPoolSize))
	cfg.Mongo.MinPoolSize = uint64(getEnvInt("MONGO_MIN_POOL_SIZE", DefaultMongoMinPoolSize))

	// JWT
	cfg.JWT.Secret = getEnv("JWT_SECRET", DefaultJWTSecret)
	cfg.JWT.Expiration = getEnvDuration("JWT_EXPIRATION", DefaultJWTExpiration)

	// Kafka
	brokers := getEnv("KAFKA_BROKERS", DefaultKafkaBrokers)
	cfg.Kafka.Brokers = []string{brokers} // В продакшене можно разбить по запятой
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", DefaultKafkaTopic)
	cfg.Kafka.WithdrawalThreshold = getEnvFloat("KAFKA_WITHDRAWAL_THRESHOLD", DefaultKafkaWithdrawalThreshold)

	// Scheduler
	cfg.Scheduler.AccrualInterval = getEnvDuration("SCHEDULER_ACCRUAL_INTERVAL", DefaultAccrualInterval)
	cfg.Scheduler.SyncInterval = getEnvDuration("SCHEDULER_SYNC_INTERVAL", DefaultSyncInterval)
	cfg.Scheduler.UnreadInterval = getEnvDuration("SCHEDULER_UNREAD_INTERVAL", DefaultUnreadInterval)
	cfg.Scheduler.IdleCheckInterval = getEnvDuration("SCHEDULER_IDLE_CHECK_INTERVAL", DefaultIdleCheckInterval)
	cfg.Scheduler.SessionIdleTimeout = getEnvDuration("SESSION_IDLE_TIMEOUT", DefaultSessionIdleTimeout)

	// Platform economics
	cfg.Platform.MinDepositAmount = getEnvFloat("MIN_DEPOSIT_AMOUNT", DefaultMinDepositAmount)
	cfg.Platform.MinWithdrawalAmount = getEnvFloat("MIN_WITHDRAWAL_AMOUNT", DefaultMinWithdrawalAmount)
	cfg.Platform.WithdrawalFeePercent = getEnvFloat("WITHDRAWAL_FEE_PERCENT", DefaultWithdrawalFeePercent)
	cfg.Platform.ReferralBonusPercent = getEnvFloat("REFERRAL_BONUS_PERCENT", DefaultReferralBonusPercent)
	cfg.Platform.WelcomeGiftPrice = getEnvFloat("WELCOME_GIFT_PRICE", DefaultWelcomeGiftPrice)
	cfg.Platform.WelcomeGiftHours = getEnvInt("WELCOME_GIFT_HOURS", DefaultWelcomeGiftHours)
	cfg.Platform.WelcomeGiftDailyRate = getEnvFloat("WELCOME_GIFT_DAILY_RATE", DefaultWelcomeGiftDailyRate)

	// Logger
	cfg.Logger.Level = getEnv("LOG_LEVEL", DefaultLogLevel)

	return cfg, nil
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленную переменную окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat получает переменную окружения типа float64
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration получает переменную окружения типа duration
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Server.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	if c.Mongo.URI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}

	if c.JWT.Secret == "" || c.JWT.Secret == "your-super-secret-jwt-key-change-this-in-production" {
		return fmt.Errorf("JWT_SECRET must be set to a secure value")
	}

	if c.Platform.WithdrawalFeePercent < 0 || c.Platform.WithdrawalFeePercent >= 100 {
		return fmt.Errorf("WITHDRAWAL_FEE_PERCENT must be in [0, 100)")
	}

	if c.Scheduler.AccrualInterval <= 0 || c.Scheduler.SyncInterval <= 0 || c.Scheduler.UnreadInterval <= 0 {
		return fmt.Errorf("scheduler intervals must be positive")
	}

	// SESSION_IDLE_TIMEOUT равный нулю отключает закрытие по простою
	if c.Scheduler.SessionIdleTimeout > 0 && c.Scheduler.IdleCheckInterval <= 0 {
		return fmt.Errorf("SCHEDULER_IDLE_CHECK_INTERVAL must be positive when SESSION_IDLE_TIMEOUT is set")
	}

	if _, err := logrus.ParseLevel(c.Logger.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Logger.Level)
	}

	return nil
}
