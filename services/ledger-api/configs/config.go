package configs

import (
	"time"

	"github.com/banksys/balance-ledger/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds application configuration for ledger-api.
type Config struct {
	Port              string        `mapstructure:"PORT" validate:"required"`
	RedisAddr         string        `mapstructure:"REDIS_ADDR" validate:"required"`
	PrimaryDbAddr     string        `mapstructure:"PRIMARY_DB_ADDR" validate:"required"`
	ReadDbAddr        string        `mapstructure:"READ_DB_ADDR"`
	MaxDbCons         int32         `mapstructure:"MAX_DB_CONNECTIONS" validate:"min=1"`
	MinDbCons         int32         `mapstructure:"MIN_DB_CONNECTIONS" validate:"min=1"`
	HistoryCacheTTL   time.Duration `mapstructure:"HISTORY_CACHE_TTL" validate:"required"`
	MutationRateLimit int           `mapstructure:"MUTATION_RATE_LIMIT" validate:"min=1"`
	MutationRateBurst int           `mapstructure:"MUTATION_RATE_BURST" validate:"min=1"`
}

func Load(logger *zap.Logger) (*Config, error) {
	viper.SetEnvPrefix("app") // Prefix for env vars
	viper.AutomaticEnv()

	// Default values
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("MAX_DB_CONNECTIONS", "10")
	viper.SetDefault("MIN_DB_CONNECTIONS", "2")
	viper.SetDefault("HISTORY_CACHE_TTL", "1h")
	viper.SetDefault("MUTATION_RATE_LIMIT", "100")
	viper.SetDefault("MUTATION_RATE_BURST", "200")

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
