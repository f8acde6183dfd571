// Package transport owns one stream connection to the instrument: serializing writes, running a
// dedicated reader that delivers framed payloads upward, and detecting unexpected disconnects.
// It knows nothing about message semantics; see package wire for payload shapes and the root icc
// package for the protocol engine built on top of it.
package transport

import (
	"errors"
	"net"
	"time"

	"github.com/arloliu/icc/frame"
	"github.com/arloliu/icc/logger"
)

// Config holds the validated construction parameters of a Transport.
type Config struct {
	serverIP [4]byte
	port     int

	sendTimeout    time.Duration
	receiveTimeout time.Duration
	maxFrame       uint32

	logger logger.Logger
}

// NewConfig builds a Config for serverAddress, an IPv4 literal, and the given options. It
// rejects serverAddress with an invalid-argument error at construction time if it does not
// parse as an IPv4 literal, per §6.
func NewConfig(serverAddress string, opts ...Option) (*Config, error) {
	ip := net.ParseIP(serverAddress)
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, errors.New("transport: server address is not a valid IPv4 literal: " + serverAddress)
	}

	cfg := &Config{
		port:     8080,
		maxFrame: frame.DefaultMaxFrame,
		logger:   logger.Nop(),
	}
	copy(cfg.serverIP[:], ip4)

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Option configures a Config at construction time.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithPort overrides the default TCP port of 8080.
func WithPort(port int) Option {
	return optFunc(func(cfg *Config) error {
		if port < 1 || port > 65535 {
			return errors.New("transport: port out of range [1, 65535]")
		}
		cfg.port = port
		return nil
	})
}

// WithSendTimeout sets the deadline applied to each write. A value <= 0 disables the timeout,
// which is also the default.
func WithSendTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		cfg.sendTimeout = d
		return nil
	})
}

// WithReceiveTimeout sets the deadline applied to each read. A value <= 0 disables the timeout,
// which is also the default.
func WithReceiveTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		cfg.receiveTimeout = d
		return nil
	})
}

// WithMaxFrame overrides the default maximum frame payload length of 10 MiB.
func WithMaxFrame(n uint32) Option {
	return optFunc(func(cfg *Config) error {
		if n < frame.MinPayloadLen {
			return errors.New("transport: max frame too small")
		}
		cfg.maxFrame = n
		return nil
	})
}

// WithLogger sets the logger used for transport-level diagnostics. The default is a no-op sink.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("transport: logger is nil")
		}
		cfg.logger = l
		return nil
	})
}
