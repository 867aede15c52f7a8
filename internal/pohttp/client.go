// Package pohttp delivers parcels to endpoints on the Internet over HTTP.
package pohttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// ContentType is the media type of a serialized parcel.
	ContentType = "application/vnd.awala.parcel"

	// GatewayHeader is the request header that carries the public address of
	// the gateway delivering the parcel.
	GatewayHeader = "X-Awala-Gateway"

	// DefaultTimeout is the maximum time to wait for an endpoint to accept a
	// parcel when no HTTP client is configured.
	DefaultTimeout = 30 * time.Second
)

// Client delivers parcels to Internet endpoints.
type Client struct {
	// HTTP is the client used to make requests. If it is nil, a client with a
	// timeout of Timeout is used.
	HTTP *http.Client

	// Timeout is the request timeout used when HTTP is nil. If it is zero,
	// [DefaultTimeout] is used.
	Timeout time.Duration

	// GatewayAddress is the public address of the delivering gateway.
	GatewayAddress string
}

// Deliver sends a serialized parcel to the endpoint at recipientURL.
//
// It returns an [InvalidParcelError] if the endpoint refuses the parcel, a
// [BindingError] if the endpoint reports a protocol violation, or a
// [TransientError] if the delivery may succeed when retried.
func (c *Client) Deliver(ctx context.Context, recipientURL string, parcel []byte) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		recipientURL,
		bytes.NewReader(parcel),
	)
	if err != nil {
		return BindingError{fmt.Sprintf("invalid recipient address: %s", err)}
	}

	req.Header.Set("Content-Type", ContentType)
	if c.GatewayAddress != "" {
		req.Header.Set(GatewayHeader, c.GatewayAddress)
	}

	client := c.HTTP
	if client == nil {
		timeout := c.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	res, err := client.Do(req)
	if err != nil {
		return TransientError{err}
	}
	defer res.Body.Close()

	// Read a short excerpt of the body to include in errors.
	body, _ := io.ReadAll(io.LimitReader(res.Body, 512))

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return nil
	case res.StatusCode == http.StatusForbidden:
		return InvalidParcelError{string(body)}
	case res.StatusCode >= 500:
		return TransientError{fmt.Errorf("server responded with %s", res.Status)}
	default:
		return BindingError{fmt.Sprintf("server responded with %s: %s", res.Status, body)}
	}
}
