package config

import (
	"net"

	"github.com/dogmatiq/ferrite"
)

// DefaultGRPCListenAddress is the default address on which the cargo relay
// server listens.
const DefaultGRPCListenAddress = ":8081"

var grpcListenAddress = ferrite.
	String("GATEWAY_GRPC_LISTEN_ADDRESS", "the address on which the cargo relay gRPC server listens").
	WithDefault(DefaultGRPCListenAddress).
	WithConstraint(
		"must be a network address",
		isNetworkAddress,
	).
	Required(ferrite.WithRegistry(FerriteRegistry))

func isNetworkAddress(v string) bool {
	_, port, err := net.SplitHostPort(v)
	return err == nil && port != ""
}

func (c *Config) finalizeGRPC() {
	if c.GRPC.ListenAddress == "" {
		if c.UseEnv {
			c.GRPC.ListenAddress = grpcListenAddress.Value()
		} else {
			c.GRPC.ListenAddress = DefaultGRPCListenAddress
		}
	}
}
