package topology

import (
	"time"

	"github.com/kwil-collective/allgather/core/log"
	"github.com/kwil-collective/allgather/transport"
)

type options struct {
	logger       log.Logger
	kind         transport.Kind
	retryAttempts int
	retryBackoff time.Duration
	dialTimeout  time.Duration
}

// Option configures a Dial call. Grounded on the teacher's
// core/client.Option / node.Option functional-options pattern.
type Option func(*options)

// WithLogger sets the logger used for bootstrap diagnostics. Defaults
// to log.DiscardLogger.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTransport selects the PointLink implementation used for every
// link in the topology.
func WithTransport(kind transport.Kind) Option {
	return func(o *options) { o.kind = kind }
}

// WithRetry overrides the connect retry cap and backoff interval.
// Applied uniformly to both transports (spec §9 Open Questions: "a
// safe generalization is to apply the retry policy to both").
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(o *options) { o.retryAttempts = attempts; o.retryBackoff = backoff }
}

// WithDialTimeout bounds how long a single connect attempt (stream or
// secure) may take before it counts as a failed attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

const (
	defaultRetryAttempts = 100
	defaultRetryBackoff  = time.Second
	defaultDialTimeout   = 5 * time.Second
)

func defaultOptions() *options {
	return &options{
		logger:        log.DiscardLogger,
		kind:          transport.KindStream,
		retryAttempts: defaultRetryAttempts,
		retryBackoff:  defaultRetryBackoff,
		dialTimeout:   defaultDialTimeout,
	}
}
