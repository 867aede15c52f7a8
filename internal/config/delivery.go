package config

import (
	"net/http"

	"github.com/dogmatiq/ferrite"
	"github.com/relaynet/gateway/internal/pohttp"
	"golang.org/x/time/rate"
)

var deliveryRateLimit = ferrite.
	Float[float64]("GATEWAY_DELIVERY_RATE_LIMIT", "the maximum number of parcel deliveries to the Internet per second, unlimited if it is not set").
	WithMinimum(0).
	Optional(ferrite.WithRegistry(FerriteRegistry))

func (c *Config) finalizeDelivery() {
	if c.Delivery.Deliverer == nil {
		c.Delivery.Deliverer = &pohttp.Client{
			HTTP:           &http.Client{Timeout: pohttp.DefaultTimeout},
			GatewayAddress: c.PublicAddress,
		}
	}

	if c.Delivery.RateLimit == 0 {
		c.Delivery.RateLimit = rate.Inf

		if c.UseEnv {
			if v, ok := deliveryRateLimit.Value(); ok && v > 0 {
				c.Delivery.RateLimit = rate.Limit(v)
			}
		}
	}
}
