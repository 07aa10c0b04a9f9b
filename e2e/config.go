package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_TIMEOUT bounds every wait on the real-time channel
	Timeout time.Duration `envconfig:"E2E_TIMEOUT" default:"5s"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours  bool   `envconfig:"E2E_COLOURS" default:"true"`
	LogLevel string `envconfig:"E2E_LOG_LEVEL" default:"DEBUG"`
	// E2E_OUTBOUND_RATE paces emits like a production client would
	OutboundRate float64 `envconfig:"E2E_OUTBOUND_RATE" default:"50"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
