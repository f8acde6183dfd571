package icc

import (
	"errors"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/icc/frame"
	"github.com/arloliu/icc/logger"
	"github.com/arloliu/icc/wire"
)

const (
	// loginTimeout is the fixed wait for ACPT after sending LOGN (§4.E). The spec does not make
	// this configurable.
	loginTimeout = 10 * time.Second
	// reconnectInterval is the fixed delay between reconnect attempts (§4.E).
	reconnectInterval = 1 * time.Second
	// disconnectJoinTimeout records the reader-join bound (§4.B/§5). Transport.Disconnect applies
	// its own fixed 500 ms wait; if the reader has not exited by then it logs an error and returns
	// without waiting further. This constant is not read by the transport.
	disconnectJoinTimeout = 500 * time.Millisecond

	defaultWarningDelay = 5 * time.Second
	defaultErrorDelay   = 30 * time.Second
)

// config holds the validated construction parameters of a Client.
type config struct {
	serverAddress string
	port          int

	sendTimeout    time.Duration
	receiveTimeout time.Duration
	maxFrame       uint32

	username    string
	machineName string

	warningDelay time.Duration
	errorDelay   time.Duration

	logger logger.Logger

	metricsEnabled    bool
	metricsRegisterer prometheus.Registerer
	metricsNamespace  string
}

func newConfig(serverAddress string, opts ...ClientOption) (*config, error) {
	if ip := net.ParseIP(serverAddress); ip == nil || ip.To4() == nil {
		return nil, ErrInvalidServerAddress
	}

	cfg := &config{
		serverAddress: serverAddress,
		port:          8080,
		maxFrame:      frame.DefaultMaxFrame,
		warningDelay:  defaultWarningDelay,
		errorDelay:    defaultErrorDelay,
		logger:        logger.Nop(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// ClientOption configures a Client at construction time.
type ClientOption interface {
	apply(*config) error
}

type clientOptFunc func(*config) error

func (f clientOptFunc) apply(cfg *config) error { return f(cfg) }

// WithPort overrides the default TCP port of 8080.
func WithPort(port int) ClientOption {
	return clientOptFunc(func(cfg *config) error {
		if port < 1 || port > 65535 {
			return errors.New("icc: port out of range [1, 65535]")
		}
		cfg.port = port
		return nil
	})
}

// WithSendTimeout sets the write deadline applied to every outbound frame. A value <= 0
// (the default) disables the timeout.
func WithSendTimeout(d time.Duration) ClientOption {
	return clientOptFunc(func(cfg *config) error {
		cfg.sendTimeout = d
		return nil
	})
}

// WithReceiveTimeout sets the read deadline applied to every inbound frame. A value <= 0
// (the default) disables the timeout.
func WithReceiveTimeout(d time.Duration) ClientOption {
	return clientOptFunc(func(cfg *config) error {
		cfg.receiveTimeout = d
		return nil
	})
}

// WithMaxFrame overrides the default 10 MiB maximum frame payload length.
func WithMaxFrame(n uint32) ClientOption {
	return clientOptFunc(func(cfg *config) error {
		cfg.maxFrame = n
		return nil
	})
}

// WithCredentials sets the username and machine name sent in the LOGN frame. The default is the
// constrained-device profile (wire.ConstrainedDeviceUsername/MachineName).
func WithCredentials(username, machineName string) ClientOption {
	return clientOptFunc(func(cfg *config) error {
		cfg.username = username
		cfg.machineName = machineName
		return nil
	})
}

// WithLogger sets the logger used for client diagnostics. The default is a no-op sink (§9).
func WithLogger(l logger.Logger) ClientOption {
	return clientOptFunc(func(cfg *config) error {
		if l == nil {
			return errors.New("icc: logger is nil")
		}
		cfg.logger = l
		return nil
	})
}

// WithCommFailureTimeouts sets the initial warningDelay/errorDelay for the reconnect ladder
// (§4.E). Accepted only if warningDelay > 0 and errorDelay > warningDelay; this mirrors the
// acceptance rule SetCommFailureTimeouts applies at runtime.
func WithCommFailureTimeouts(warningDelay, errorDelay time.Duration) ClientOption {
	return clientOptFunc(func(cfg *config) error {
		if !validCommFailureTimeouts(warningDelay, errorDelay) {
			return errors.New("icc: warningDelay must be > 0 and errorDelay must be > warningDelay")
		}
		cfg.warningDelay = warningDelay
		cfg.errorDelay = errorDelay
		return nil
	})
}

func validCommFailureTimeouts(warningDelay, errorDelay time.Duration) bool {
	return warningDelay > 0 && errorDelay > warningDelay
}

// WithMetrics enables Prometheus metrics collection for this client, registered against reg
// under the given namespace. If reg is nil, prometheus.DefaultRegisterer is used.
func WithMetrics(namespace string, reg prometheus.Registerer) ClientOption {
	return clientOptFunc(func(cfg *config) error {
		cfg.metricsEnabled = true
		cfg.metricsNamespace = namespace
		cfg.metricsRegisterer = reg
		return nil
	})
}

func (cfg *config) effectiveUsername() string {
	if cfg.username != "" {
		return cfg.username
	}
	return wire.ConstrainedDeviceUsername
}

func (cfg *config) effectiveMachineName() string {
	if cfg.machineName != "" {
		return cfg.machineName
	}
	return wire.ConstrainedDeviceMachineName
}
