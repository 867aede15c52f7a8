package gateway

import (
	"net"
	"time"

	"github.com/relaynet/gateway/internal/config"
	"github.com/relaynet/gateway/internal/messagebus"
	"github.com/relaynet/gateway/persistence/kv"
	"github.com/relaynet/gateway/persistence/objectstore"
	"github.com/relaynet/gateway/relaynet"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/slog"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
)

// FerriteRegistry is a registry of the environment variables used by the
// gateway.
//
// It can be used with the [ferrite] package.
var FerriteRegistry = config.FerriteRegistry

// An Option configures the behavior of a [Gateway].
type Option func(*config.Config)

// WithOptionsFromEnvironment is an option that configures the gateway using
// options specified via environment variables.
//
// Any explicit options passed to [New] take precedence over options from the
// environment.
func WithOptionsFromEnvironment() Option {
	return func(cfg *config.Config) {
		cfg.UseEnv = true
	}
}

// WithPublicAddress is an [Option] that sets the address at which peers reach
// the gateway. Cargo collection authorizations must be addressed to it.
func WithPublicAddress(addr string) Option {
	if addr == "" {
		panic("public address must not be empty")
	}

	return func(cfg *config.Config) {
		cfg.PublicAddress = addr
	}
}

// WithRelaynet is an [Option] that sets the message format and PKI
// implementations used by the gateway.
func WithRelaynet(
	codec relaynet.Codec,
	certs relaynet.CertificateStore,
	issuer relaynet.CertificateIssuer,
) Option {
	if codec == nil || certs == nil || issuer == nil {
		panic("relaynet implementations must not be nil")
	}

	return func(cfg *config.Config) {
		cfg.Relaynet.Codec = codec
		cfg.Relaynet.Certificates = certs
		cfg.Relaynet.Issuer = issuer
	}
}

// WithKeyValueStore is an [Option] that sets the key/value store that holds
// the collection ledger.
func WithKeyValueStore(s kv.Store) Option {
	return func(cfg *config.Config) {
		cfg.Persistence.Keyspaces = s
	}
}

// WithObjectStore is an [Option] that sets the object store that holds
// parcels.
func WithObjectStore(s objectstore.Store) Option {
	return func(cfg *config.Config) {
		cfg.Persistence.Objects = s
	}
}

// WithLedgerReapInterval is an [Option] that sets the interval at which
// expired collection ledger records are removed.
func WithLedgerReapInterval(d time.Duration) Option {
	if d <= 0 {
		panic("reap interval must be positive")
	}

	return func(cfg *config.Config) {
		cfg.Persistence.ReapInterval = d
	}
}

// WithMessageBus is an [Option] that sets the connector used to reach the
// message broker.
func WithMessageBus(c messagebus.Connector) Option {
	if c == nil {
		panic("connector must not be nil")
	}

	return func(cfg *config.Config) {
		cfg.Bus.Connector = c
	}
}

// WithDeliveryRateLimit is an [Option] that limits the number of parcel
// deliveries to the Internet per second.
func WithDeliveryRateLimit(limit float64) Option {
	if limit <= 0 {
		panic("rate limit must be positive")
	}

	return func(cfg *config.Config) {
		cfg.Delivery.RateLimit = rate.Limit(limit)
	}
}

// WithGRPCListenAddress is an [Option] that sets the network address on which
// the cargo relay server listens.
func WithGRPCListenAddress(addr string) Option {
	return func(cfg *config.Config) {
		cfg.GRPC.ListenAddress = addr
	}
}

// WithGRPCListener is an [Option] that sets the listener on which the cargo
// relay server accepts connections.
func WithGRPCListener(lis net.Listener) Option {
	if lis == nil {
		panic("listener must not be nil")
	}

	return func(cfg *config.Config) {
		cfg.GRPC.Listener = lis
	}
}

// WithGRPCServerOptions is an [Option] that sets the gRPC options to use when
// starting the cargo relay server.
func WithGRPCServerOptions(options ...grpc.ServerOption) Option {
	return func(cfg *config.Config) {
		cfg.GRPC.ServerOptions = append(cfg.GRPC.ServerOptions, options...)
	}
}

// WithTracerProvider is an [Option] that sets the OpenTelemetry tracer
// provider used by the gateway.
func WithTracerProvider(p trace.TracerProvider) Option {
	if p == nil {
		panic("tracer provider must not be nil")
	}

	return func(cfg *config.Config) {
		cfg.Telemetry.TracerProvider = p
	}
}

// WithMetricProvider is an [Option] that sets the OpenTelemetry meter provider
// used by the gateway.
func WithMetricProvider(p metric.MeterProvider) Option {
	if p == nil {
		panic("metric provider must not be nil")
	}

	return func(cfg *config.Config) {
		cfg.Telemetry.MeterProvider = p
	}
}

// WithLogger is an [Option] that sets the logger used by the gateway.
func WithLogger(l *slog.Logger) Option {
	if l == nil {
		panic("logger must not be nil")
	}

	return func(cfg *config.Config) {
		cfg.Telemetry.Logger = l
	}
}
