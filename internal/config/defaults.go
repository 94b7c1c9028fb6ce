package config

import "time"

// Server defaults
const (
	DefaultHTTPPort = "8080"
	DefaultGinMode  = "release"
	DefaultLogLevel = "info"
)

// Database defaults
const (
	DefaultDBHost            = "localhost"
	DefaultDBPort            = 5432
	DefaultDBUser            = "minecloud_user"
	DefaultDBPassword        = "minecloud_password"
	DefaultDBName            = "minecloud_db"
	DefaultDBSSLMode         = "disable"
	DefaultDBMaxOpenConns    = 25
	DefaultDBMaxIdleConns    = 5
	DefaultDBConnMaxLifetime = 5 * time.Minute
)

// MongoDB defaults (хранилище сообщений чата поддержки)
const (
	DefaultMongoURI         = "mongodb://localhost:27017"
	DefaultMongoDatabase    = "minecloud"
	DefaultMongoCollection  = "global_chat"
	DefaultMongoTimeout     = 10 * time.Second
	DefaultMongoMaxPoolSize = 20
	DefaultMongoMinPoolSize = 2
)

// JWT defaults
const (
	DefaultJWTSecret     = "change-me-in-production"
	DefaultJWTExpiration = 24 * time.Hour
)

// Kafka defaults
const (
	DefaultKafkaBrokers             = "localhost:9092"
	DefaultKafkaTopic               = "platform-events"
	DefaultKafkaWithdrawalThreshold = 1000.0
)

// Scheduler defaults
const (
	DefaultAccrualInterval = 1 * time.Second
	DefaultSyncInterval    = 30 * time.Second
	DefaultUnreadInterval  = 1 * time.Second

	// Сессия без запросов дольше таймаута простоя закрывается,
	// чтобы не держать фоновые процессы ушедших пользователей
	DefaultIdleCheckInterval  = 1 * time.Minute
	DefaultSessionIdleTimeout = 30 * time.Minute
)

// Platform economics defaults.
// Значения соответствуют публичным правилам платформы.
const (
	DefaultMinDepositAmount     = 10.0
	DefaultMinWithdrawalAmount  = 10.0
	DefaultWithdrawalFeePercent = 3.0
	DefaultReferralBonusPercent = 5.0

	// Приветственный подарок: устройство за $5 на 24 часа со ставкой,
	// дающей ровно $5 прибыли за полный цикл.
	DefaultWelcomeGiftPrice     = 5.0
	DefaultWelcomeGiftHours     = 24
	DefaultWelcomeGiftDailyRate = 100.0
)
