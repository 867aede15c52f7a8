package config

import (
	"github.com/dogmatiq/ferrite"
	"github.com/relaynet/gateway/internal/messagebus"
	"github.com/relaynet/gateway/internal/messagebus/memorybus"
)

var (
	natsServerURL = ferrite.
			URL("GATEWAY_NATS_SERVER_URL", "the URL of the NATS Streaming server, an in-process broker is used if it is not set").
			Optional(ferrite.WithRegistry(FerriteRegistry))

	natsClusterID = ferrite.
			String("GATEWAY_NATS_CLUSTER_ID", "the ID of the NATS Streaming cluster").
			WithDefault("test-cluster").
			Required(ferrite.WithRegistry(FerriteRegistry))

	natsClientID = ferrite.
			String("GATEWAY_NATS_CLIENT_ID", "the prefix of the client IDs used to connect to NATS Streaming").
			WithDefault("gateway").
			Required(ferrite.WithRegistry(FerriteRegistry))
)

func (c *Config) finalizeBus() {
	if c.Bus.Connector == nil && c.UseEnv {
		if u, ok := natsServerURL.Value(); ok {
			c.Bus.Connector = &messagebus.STANConnector{
				ServerURL: u.String(),
				ClusterID: natsClusterID.Value(),
			}
		}
	}

	if c.Bus.ClientIDPrefix == "" {
		if c.UseEnv {
			c.Bus.ClientIDPrefix = natsClientID.Value()
		} else {
			c.Bus.ClientIDPrefix = "gateway"
		}
	}

	if c.Bus.Connector == nil {
		c.Telemetry.Logger.Warn("no message broker is configured, using an in-process broker")
		c.Bus.Connector = &memorybus.Broker{}
	}
}
