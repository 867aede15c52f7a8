package pohttp_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/relaynet/gateway/internal/pohttp"
	"github.com/relaynet/gateway/internal/test"
)

func TestClient_Deliver(t *testing.T) {
	t.Run("it posts the parcel to the recipient", func(t *testing.T) {
		ctx, _ := test.ContextWithTimeout(t, 5*time.Second)

		type request struct {
			Method      string
			ContentType string
			Gateway     string
			Body        string
		}

		received := make(chan request, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			received <- request{
				Method:      r.Method,
				ContentType: r.Header.Get("Content-Type"),
				Gateway:     r.Header.Get(GatewayHeader),
				Body:        string(body),
			}
			w.WriteHeader(http.StatusAccepted)
		}))
		t.Cleanup(server.Close)

		client := &Client{GatewayAddress: "https://gateway.example"}

		if err := client.Deliver(ctx, server.URL, []byte("<parcel>")); err != nil {
			t.Fatal(err)
		}

		test.Expect(
			t,
			"unexpected request",
			<-received,
			request{
				Method:      http.MethodPost,
				ContentType: ContentType,
				Gateway:     "https://gateway.example",
				Body:        "<parcel>",
			},
		)
	})

	cases := []struct {
		Desc   string
		Status int
		Check  func(error) bool
	}{
		{
			"it returns an InvalidParcelError when the parcel is refused",
			http.StatusForbidden,
			func(err error) bool {
				var target InvalidParcelError
				return errors.As(err, &target)
			},
		},
		{
			"it returns a BindingError for other client errors",
			http.StatusBadRequest,
			func(err error) bool {
				var target BindingError
				return errors.As(err, &target)
			},
		},
		{
			"it returns a TransientError for server errors",
			http.StatusServiceUnavailable,
			func(err error) bool {
				var target TransientError
				return errors.As(err, &target)
			},
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.Desc, func(t *testing.T) {
			ctx, _ := test.ContextWithTimeout(t, 5*time.Second)

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.Status)
			}))
			t.Cleanup(server.Close)

			err := (&Client{}).Deliver(ctx, server.URL, []byte("<parcel>"))
			if !c.Check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}

	t.Run("it returns a TransientError when the recipient is unreachable", func(t *testing.T) {
		ctx, _ := test.ContextWithTimeout(t, 5*time.Second)

		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		err := (&Client{}).Deliver(ctx, url, []byte("<parcel>"))

		var target TransientError
		if !errors.As(err, &target) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("it returns a TransientError when the recipient does not respond in time", func(t *testing.T) {
		ctx, _ := test.ContextWithTimeout(t, 5*time.Second)

		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		t.Cleanup(server.Close)
		t.Cleanup(func() { close(release) })

		client := &Client{Timeout: 50 * time.Millisecond}
		err := client.Deliver(ctx, server.URL, []byte("<parcel>"))

		var target TransientError
		if !errors.As(err, &target) {
			t.Fatalf("unexpected error: %v", err)
		}

		if ctx.Err() != nil {
			t.Fatal("the request was not bounded by the client timeout")
		}
	})

	t.Run("it returns a BindingError when the recipient address is not a URL", func(t *testing.T) {
		err := (&Client{}).Deliver(context.Background(), "://", []byte("<parcel>"))

		var target BindingError
		if !errors.As(err, &target) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
