package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"marketbill/pkg/db"
)

// AppConfig holds all application-wide configuration.
type AppConfig struct {
	ServerPort string
	DB         db.Config
	Billing    BillingConfig
}

// BillingConfig holds the billing-specific settings. PlatformUserID is the
// wallet owner that receives commission debits; a deployment without it
// cannot settle cancellations, so loading fails hard rather than deferring
// the error to the first cancelled order.
type BillingConfig struct {
	PlatformUserID  int64
	DefaultCurrency string
}

// LoadConfig reads configuration from configs/config.yaml (optional) with
// environment variables taking precedence. A local .env file is honored.
func LoadConfig() (*AppConfig, error) {
	godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile("configs/config.yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", "8080")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "marketbill")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("billing.default_currency", "IRT")

	// Config file is optional; env-only deployments are fine.
	_ = v.ReadInConfig()

	cfg := &AppConfig{
		ServerPort: v.GetString("server.port"),
		DB: db.Config{
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.name"),
			SSLMode:  v.GetString("database.sslmode"),
		},
		Billing: BillingConfig{
			PlatformUserID:  v.GetInt64("billing.platform_user_id"),
			DefaultCurrency: v.GetString("billing.default_currency"),
		},
	}

	if cfg.Billing.PlatformUserID == 0 {
		return nil, fmt.Errorf("billing.platform_user_id is required")
	}

	return cfg, nil
}
