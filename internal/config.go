package internal

import (
	"fmt"
	"time"

	"chat-client/infrastructure/realtime"
)

const (
	PresenterTUI = "tui"
	PresenterCLI = "cli"
)

type Config struct {
	APIURL           string        `env:"API_URL,required=true"`
	WSURL            string        `env:"WS_URL,required=true"`
	LogLevel         string        `env:"LOG_LEVEL,default=INFO"`
	LogFile          string        `env:"LOG_FILE,default=chat-client.log"`
	BadgerFilepath   string        `env:"BADGER_FILEPATH,required=true"`
	Presenter        string        `env:"PRESENTER,default=tui"`
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT,default=10s"`
	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT,default=10s"`
	OutboundRate     float64       `env:"OUTBOUND_RATE,default=5"`
	OutboundBurst    int           `env:"OUTBOUND_BURST,default=10"`
	OutboundBuffer   int           `env:"OUTBOUND_BUFFER,default=64"`
	InboundBuffer    int           `env:"INBOUND_BUFFER,default=256"`
	PageLimit        int           `env:"PAGE_LIMIT,default=50"`
}

// Validate rejects values the environment parser accepts but the client cannot run with.
func (c Config) Validate() error {
	switch c.Presenter {
	case PresenterTUI, PresenterCLI:
	default:
		return fmt.Errorf("PRESENTER must be %q or %q, got %q", PresenterTUI, PresenterCLI, c.Presenter)
	}
	if c.OutboundBuffer < 1 || c.InboundBuffer < 1 {
		return fmt.Errorf("OUTBOUND_BUFFER and INBOUND_BUFFER must be positive")
	}
	if c.PageLimit < 1 {
		return fmt.Errorf("PAGE_LIMIT must be positive, got %d", c.PageLimit)
	}
	return nil
}

func (c Config) Transport() realtime.Config {
	return realtime.Config{
		URL:              c.WSURL,
		HandshakeTimeout: c.HandshakeTimeout,
		OutboundBuffer:   c.OutboundBuffer,
		InboundBuffer:    c.InboundBuffer,
		OutboundRate:     c.OutboundRate,
		OutboundBurst:    c.OutboundBurst,
	}
}
