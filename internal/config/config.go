package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL   string `env:"DATABASE_URL,required"`
	MigrationsURL string `env:"MIGRATIONS_URL" envDefault:"file://migrations"`
	JWTSecret     string `env:"JWT_SECRET,required"`
	Port          int    `env:"PORT" envDefault:"8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv        string `env:"APP_ENV" envDefault:"production"`

	// Fee rates are fractions of the amount; flat fees are minor units in the
	// source account's currency.
	FeeTransferOwnPct      float64 `env:"FEE_TRANSFER_OWN_PCT" envDefault:"0"`
	FeeTransferExternalPct float64 `env:"FEE_TRANSFER_EXTERNAL_PCT" envDefault:"0.01"`
	FeeServicePaymentFlat  int64   `env:"FEE_SERVICE_PAYMENT_FLAT" envDefault:"300"`

	// Risk thresholds in minor units of the local currency.
	HighValueThresholdCRC int64   `env:"HIGH_VALUE_THRESHOLD_CRC" envDefault:"1000000"`
	HighValueThresholdUSD int64   `env:"HIGH_VALUE_THRESHOLD_USD" envDefault:"2000"`
	CriticalThresholdCRC  int64   `env:"CRITICAL_THRESHOLD_CRC" envDefault:"5000000"`
	CriticalThresholdUSD  int64   `env:"CRITICAL_THRESHOLD_USD" envDefault:"10000"`
	CashThresholdCRC      int64   `env:"CASH_THRESHOLD_CRC" envDefault:"500000"`
	CashThresholdUSD      int64   `env:"CASH_THRESHOLD_USD" envDefault:"1000"`
	DailyVolumeMultiple   float64 `env:"DAILY_VOLUME_MULTIPLE" envDefault:"3"`
	VolumeLookbackDays    int     `env:"VOLUME_LOOKBACK_DAYS" envDefault:"90"`

	ScheduleHorizonDays int `env:"SCHEDULE_HORIZON_DAYS" envDefault:"90"`
	SchedulerIntervalS  int `env:"SCHEDULER_INTERVAL_S" envDefault:"60"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// HighValueThreshold returns the review threshold for the given currency, or
// 0 (review everything) for a currency with no configured threshold.
func (c *Config) HighValueThreshold(currency string) int64 {
	switch currency {
	case "CRC":
		return c.HighValueThresholdCRC
	case "USD":
		return c.HighValueThresholdUSD
	default:
		return 0
	}
}

func (c *Config) CriticalThreshold(currency string) int64 {
	switch currency {
	case "CRC":
		return c.CriticalThresholdCRC
	case "USD":
		return c.CriticalThresholdUSD
	default:
		return 0
	}
}

func (c *Config) CashThreshold(currency string) int64 {
	switch currency {
	case "CRC":
		return c.CashThresholdCRC
	case "USD":
		return c.CashThresholdUSD
	default:
		return 0
	}
}
