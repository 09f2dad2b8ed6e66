package configs

import (
	"time"

	"github.com/banksys/balance-ledger/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds application configuration for ledger-worker.
type Config struct {
	MetricsAddr   string        `mapstructure:"METRICS_ADDR" validate:"required"`
	RedisAddr     string        `mapstructure:"REDIS_ADDR" validate:"required"`
	PrimaryDbAddr string        `mapstructure:"PRIMARY_DB_ADDR" validate:"required"`
	ReadDbAddr    string        `mapstructure:"READ_DB_ADDR"`
	MaxDbCons     int32         `mapstructure:"MAX_DB_CONNECTIONS" validate:"min=1"`
	MinDbCons     int32         `mapstructure:"MIN_DB_CONNECTIONS" validate:"min=1"`
	FlushInterval time.Duration `mapstructure:"FLUSH_INTERVAL" validate:"required"`
	SyncInterval  time.Duration `mapstructure:"SYNC_INTERVAL" validate:"required"`
	MaxFlushBatch int           `mapstructure:"MAX_FLUSH_BATCH" validate:"min=1"`
	MaxSyncBatch  int           `mapstructure:"MAX_SYNC_BATCH" validate:"min=1"`
	LockTTL       time.Duration `mapstructure:"LOCK_TTL" validate:"required"`
}

func Load(logger *zap.Logger) (*Config, error) {
	viper.SetEnvPrefix("app") // Prefix for env vars
	viper.AutomaticEnv()

	// Default values match the original deployment: 1s ticks, batch caps
	// of 2000 transaction records and 1000 balance snapshots per tick.
	viper.SetDefault("METRICS_ADDR", ":9100")
	viper.SetDefault("MAX_DB_CONNECTIONS", "10")
	viper.SetDefault("MIN_DB_CONNECTIONS", "2")
	viper.SetDefault("FLUSH_INTERVAL", "1s")
	viper.SetDefault("SYNC_INTERVAL", "1s")
	viper.SetDefault("MAX_FLUSH_BATCH", "2000")
	viper.SetDefault("MAX_SYNC_BATCH", "1000")
	viper.SetDefault("LOCK_TTL", "30s")

	var cfg Config
	if err := utils.ParseStructEnv(&cfg); err != nil {
		return nil, err
	}

	// Validate after unmarshal
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, utils.FormatConfigErrors(logger, err, cfg)
	}
	return &cfg, nil
}
