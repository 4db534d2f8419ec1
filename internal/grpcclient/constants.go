// Package grpcclient provides a client for the remote text recognition service.
package grpcclient

import (
	"time"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/resilience"
)

// RecognizeMethod is the full gRPC method name of the recognition RPC.
const RecognizeMethod = "/reelwatch.ocr.v1.OCRService/Recognize"

// Client configuration defaults
const (
	DefaultAddr    = "localhost:50051"
	DefaultTimeout = 10 * time.Second

	// Keepalive configuration
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second
)

// Config holds recognition client settings.
type Config struct {
	Addr             string
	UseGPU           bool
	Timeout          time.Duration // per attempt
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	Breaker          resilience.Config
	Retry            resilience.RetryConfig
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Addr:             DefaultAddr,
		Timeout:          DefaultTimeout,
		KeepaliveTime:    DefaultKeepaliveTime,
		KeepaliveTimeout: DefaultKeepaliveTimeout,
		Breaker:          resilience.RecognizerConfig(),
		Retry:            resilience.RecognitionRetryConfig(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.KeepaliveTime <= 0 {
		c.KeepaliveTime = d.KeepaliveTime
	}
	if c.KeepaliveTimeout <= 0 {
		c.KeepaliveTimeout = d.KeepaliveTimeout
	}
	if c.Breaker == (resilience.Config{}) {
		c.Breaker = d.Breaker
	}
	if c.Retry.MaxRetries <= 0 {
		c.Retry = d.Retry
	}
	return c
}
