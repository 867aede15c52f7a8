package config

import (
	"time"

	"github.com/dogmatiq/ferrite"
	"github.com/relaynet/gateway/relaynet/relaynettest"
)

var (
	insecureDevelopmentCodec = ferrite.
					Bool("GATEWAY_INSECURE_DEVELOPMENT_CODEC", "use an unencrypted JSON message format, for development only").
					WithDefault(false).
					Required(ferrite.WithRegistry(FerriteRegistry))

	developmentPrivateAddress = ferrite.
					String("GATEWAY_DEVELOPMENT_PRIVATE_ADDRESS", "the private address of the gateway when using the development message format").
					WithDefault("0development-gateway").
					Required(ferrite.WithRegistry(FerriteRegistry))
)

func (c *Config) finalizeRelaynet() error {
	if c.Relaynet.Codec == nil && c.UseEnv && insecureDevelopmentCodec.Value() {
		codec := &relaynettest.Codec{
			Identity: relaynettest.NewCertificate(
				developmentPrivateAddress.Value(),
				nil,
				time.Now().Add(10*365*24*time.Hour),
			),
		}

		c.Relaynet.Codec = codec
		c.Relaynet.Certificates = codec
		c.Relaynet.Issuer = codec

		c.Telemetry.Logger.Warn(
			"using the insecure development message format",
			"private_address", codec.Identity.Address,
		)
	}

	if c.Relaynet.Codec == nil || c.Relaynet.Certificates == nil || c.Relaynet.Issuer == nil {
		return errNoMessageFormat
	}

	return nil
}
