package parcelstore_test

import (
	"strconv"
	"strings"
	"testing"
	"time"

	. "github.com/relaynet/gateway/internal/parcelstore"
	"pgregory.net/rapid"
)

func TestGatewayBoundKey(t *testing.T) {
	address := rapid.StringMatching(`0[0-9a-f]{8,64}`)

	rapid.Check(t, func(t *rapid.T) {
		peer := address.Draw(t, "peer")
		recipient := address.Draw(t, "recipient")
		sender := address.Draw(t, "sender")
		id := rapid.String().Draw(t, "id")
		otherID := rapid.String().Filter(func(s string) bool { return s != id }).Draw(t, "other id")

		key := GatewayBoundKey(peer, recipient, sender, id)

		if key != GatewayBoundKey(peer, recipient, sender, id) {
			t.Fatal("key is not deterministic")
		}

		if key == GatewayBoundKey(peer, recipient, sender, otherID) {
			t.Fatal("distinct message IDs produced the same key")
		}

		prefix := "parcels/gateway-bound/" + peer + "/" + recipient + "/" + sender + "/"
		if !strings.HasPrefix(key, prefix) {
			t.Fatalf("key %q does not have prefix %q", key, prefix)
		}

		if IsEndpointBoundKey(key) {
			t.Fatal("gateway-bound key was classified as endpoint-bound")
		}
	})
}

func TestGatewayBoundKey_addressesAreNotCleaned(t *testing.T) {
	cases := []struct {
		Desc      string
		Recipient string
		Sender    string
	}{
		{"parent directory in recipient", "../0victim/0recipient", "0sender"},
		{"parent directory in sender", "0recipient", "../../0victim"},
		{"empty recipient", "", "0sender"},
	}

	for _, c := range cases {
		c := c
		t.Run(c.Desc, func(t *testing.T) {
			key := GatewayBoundKey("0peer", c.Recipient, c.Sender, "<id>")

			prefix := "parcels/gateway-bound/0peer/" + c.Recipient + "/" + c.Sender + "/"
			if !strings.HasPrefix(key, prefix) {
				t.Fatalf("key %q does not have prefix %q", key, prefix)
			}
		})
	}
}

func formatUnix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
