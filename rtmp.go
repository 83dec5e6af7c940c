// Package rtmp is an RTMP endpoint that turns a remote stream into an FLV byte
// stream and back. Dial plays a stream, DialPublish publishes one, and
// Listen accepts peers that play from or publish to us.
package rtmp

import (
	"github.com/torresjeff/rtmpflv/config"
	"go.uber.org/zap"
)

// Option configures a Conn, a Listener or a Server.
type Option func(*options)

type options struct {
	logger *zap.Logger
	cfg    *config.Config
}

// WithLogger sets the logger sessions log to. The default discards
// everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConfig sets queue size, caching delay and handshake timeout.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.cfg = cfg
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		cfg:    config.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
