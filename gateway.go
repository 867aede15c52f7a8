// Package gateway is a store-and-forward relay that exchanges cargo with peer
// gateways and delivers parcels to endpoints on the Internet.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/relaynet/gateway/internal/cargorelay"
	"github.com/relaynet/gateway/internal/cargorelay/cargorelaypb"
	"github.com/relaynet/gateway/internal/config"
	"github.com/relaynet/gateway/internal/delivery"
	"github.com/relaynet/gateway/internal/ledger"
	"github.com/relaynet/gateway/internal/messagebus"
	"github.com/relaynet/gateway/internal/parcelstore"
	"github.com/relaynet/gateway/persistence/kv"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
)

const defaultShutdownTimeout = 15 * time.Second

// maxGRPCMessageSize is the largest gRPC message accepted by the server. It
// allows for the largest possible cargo plus the delivery's own framing.
const maxGRPCMessageSize = cargorelay.MaxCargoLength + 1024

// Gateway is a Relaynet gateway.
type Gateway struct {
	cfg config.Config

	bus      *messagebus.Bus
	ledger   *ledger.Ledger
	parcels  *parcelstore.Repository
	service  *cargorelay.Service
	unpacker *cargorelay.Unpacker
	worker   *delivery.Worker
	reaper   *ledger.Reaper
}

// New returns a new gateway configured by the given options.
func New(ctx context.Context, options ...Option) (*Gateway, error) {
	cfg, err := config.New(ctx, options)
	if err != nil {
		return nil, err
	}

	g := &Gateway{cfg: cfg}

	g.bus = &messagebus.Bus{
		Connector:      cfg.Bus.Connector,
		ClientIDPrefix: cfg.Bus.ClientIDPrefix,
		Telemetry:      cfg.Telemetry,
	}

	g.ledger = &ledger.Ledger{
		Keyspaces: cfg.Persistence.Keyspaces,
		Codec:     cfg.Relaynet.Codec,
		Telemetry: cfg.Telemetry,
	}

	g.parcels = &parcelstore.Repository{
		Objects:      cfg.Persistence.Objects,
		Ledger:       g.ledger,
		Bus:          g.bus,
		Codec:        cfg.Relaynet.Codec,
		Certificates: cfg.Relaynet.Certificates,
		Telemetry:    cfg.Telemetry,
	}

	g.service = &cargorelay.Service{
		PublicAddress: cfg.PublicAddress,
		Bus:           g.bus,
		Parcels:       g.parcels,
		Ledger:        g.ledger,
		Codec:         cfg.Relaynet.Codec,
		Certificates:  cfg.Relaynet.Certificates,
		Issuer:        cfg.Relaynet.Issuer,
		Telemetry:     cfg.Telemetry,
	}

	g.unpacker = &cargorelay.Unpacker{
		Bus:       g.bus,
		Parcels:   g.parcels,
		Codec:     cfg.Relaynet.Codec,
		Telemetry: cfg.Telemetry,
	}

	g.worker = &delivery.Worker{
		Bus:       g.bus,
		Parcels:   g.parcels,
		Deliverer: cfg.Delivery.Deliverer,
		Telemetry: cfg.Telemetry,
	}

	if cfg.Delivery.RateLimit != rate.Inf {
		g.worker.Limiter = rate.NewLimiter(cfg.Delivery.RateLimit, 1)
	}

	if p, ok := cfg.Persistence.Keyspaces.(kv.Purger); ok {
		g.reaper = &ledger.Reaper{
			Purger:    p,
			Interval:  cfg.Persistence.ReapInterval,
			Telemetry: cfg.Telemetry,
		}
	}

	return g, nil
}

// Run runs the cargo relay server and all of the gateway's background workers.
//
// It blocks until ctx is canceled or an error occurs.
func (g *Gateway) Run(ctx context.Context) error {
	g.cfg.Telemetry.Logger.Info(
		"gateway starting",
		"public_address", g.cfg.PublicAddress,
		"listen_address", g.cfg.GRPC.ListenAddress,
	)

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error { return g.serve(ctx) })
	eg.Go(func() error { return g.unpacker.Run(ctx) })
	eg.Go(func() error { return g.worker.Run(ctx) })

	if g.reaper != nil {
		eg.Go(func() error { return g.reaper.Run(ctx) })
	}

	return eg.Wait()
}

// RunDeliveryWorker runs only the worker that delivers parcels to endpoints on
// the Internet.
//
// It blocks until ctx is canceled or an error occurs.
func (g *Gateway) RunDeliveryWorker(ctx context.Context) error {
	g.cfg.Telemetry.Logger.Info("delivery worker starting")
	return g.worker.Run(ctx)
}

// CreateSchema creates the tables, buckets and other schema elements required
// by the configured stores.
func (g *Gateway) CreateSchema(ctx context.Context) error {
	if g.cfg.Persistence.CreateSchema == nil {
		g.cfg.Telemetry.Logger.Info("the configured stores do not require a schema")
		return nil
	}

	if err := g.cfg.Persistence.CreateSchema(ctx); err != nil {
		return fmt.Errorf("unable to create schema: %w", err)
	}

	g.cfg.Telemetry.Logger.Info("schema created")
	return nil
}

// Close releases the resources held by the gateway.
func (g *Gateway) Close() error {
	return g.cfg.Close()
}

func (g *Gateway) serve(ctx context.Context) error {
	lis := g.cfg.GRPC.Listener
	if lis == nil {
		var err error
		lis, err = net.Listen("tcp", g.cfg.GRPC.ListenAddress)
		if err != nil {
			return fmt.Errorf("unable to listen on %q: %w", g.cfg.GRPC.ListenAddress, err)
		}
	}

	server := grpc.NewServer(
		append(
			[]grpc.ServerOption{
				grpc.MaxRecvMsgSize(maxGRPCMessageSize),
			},
			g.cfg.GRPC.ServerOptions...,
		)...,
	)
	cargorelaypb.RegisterCargoRelayServer(server, g.service)

	result := make(chan error, 1)
	go func() {
		result <- server.Serve(lis)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
	}

	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(defaultShutdownTimeout):
		// Keep-alive collections only end when their peer disconnects.
		server.Stop()
		<-stopped
	}

	if err := <-result; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	return ctx.Err()
}
