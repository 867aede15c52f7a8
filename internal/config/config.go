// Package config builds the configuration of a gateway from functional options
// and environment variables.
package config

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/dogmatiq/ferrite"
	"github.com/relaynet/gateway/internal/delivery"
	"github.com/relaynet/gateway/internal/messagebus"
	"github.com/relaynet/gateway/internal/telemetry"
	"github.com/relaynet/gateway/persistence/kv"
	"github.com/relaynet/gateway/persistence/objectstore"
	"github.com/relaynet/gateway/relaynet"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
)

// FerriteRegistry is a registry of the environment variables used by the
// gateway.
var FerriteRegistry = ferrite.NewRegistry(
	"relaynet.gateway",
	"Relaynet Gateway",
	ferrite.WithDocumentationURL("https://github.com/relaynet/gateway#readme"),
)

// Config encapsulates the configuration of a gateway, built by applying
// functional options and, optionally, reading environment variables.
type Config struct {
	UseEnv    bool
	Telemetry *telemetry.Provider

	// PublicAddress is the address at which peers reach the gateway.
	PublicAddress string

	Relaynet struct {
		Codec        relaynet.Codec
		Certificates relaynet.CertificateStore
		Issuer       relaynet.CertificateIssuer
	}

	Persistence struct {
		Keyspaces kv.Store
		Objects   objectstore.Store

		// CreateSchema creates the schema required by the configured
		// key/value store, if any.
		CreateSchema func(context.Context) error

		// ReapInterval is the interval at which expired ledger records are
		// removed.
		ReapInterval time.Duration

		// Close releases resources held by the configured stores.
		Close func() error
	}

	Bus struct {
		Connector      messagebus.Connector
		ClientIDPrefix string
	}

	GRPC struct {
		ServerOptions []grpc.ServerOption
		ListenAddress string

		// Listener, if non-nil, is used instead of listening on
		// ListenAddress.
		Listener net.Listener
	}

	Delivery struct {
		Deliverer delivery.Deliverer
		RateLimit rate.Limit
	}
}

// New returns a new configuration built from the given options.
func New[Option ~func(*Config)](
	ctx context.Context,
	options []Option,
) (Config, error) {
	c := Config{
		Telemetry: &telemetry.Provider{},
	}

	for _, opt := range options {
		opt(&c)
	}

	if err := c.finalize(ctx); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Close releases any resources held by the configuration.
func (c *Config) Close() error {
	if c.Persistence.Close != nil {
		return c.Persistence.Close()
	}
	return nil
}

func (c *Config) finalize(ctx context.Context) error {
	c.finalizePublicAddress()
	c.finalizeTelemetry()

	if err := c.finalizeRelaynet(); err != nil {
		return err
	}

	if err := c.finalizePersistence(ctx); err != nil {
		return err
	}

	c.finalizeBus()
	c.finalizeGRPC()
	c.finalizeDelivery()

	return nil
}

var publicAddress = ferrite.
	String("GATEWAY_PUBLIC_ADDRESS", "the public address at which peers reach the gateway").
	WithDefault("https://localhost").
	Required(ferrite.WithRegistry(FerriteRegistry))

func (c *Config) finalizePublicAddress() {
	if c.PublicAddress == "" && c.UseEnv {
		c.PublicAddress = publicAddress.Value()
	}
}

// errNoMessageFormat is returned when no [relaynet.Codec] is configured.
var errNoMessageFormat = errors.New("no message format configured, provide the WithRelaynet() option or set GATEWAY_INSECURE_DEVELOPMENT_CODEC")
