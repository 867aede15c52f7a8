package test

import (
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// RunGRPCServer starts a gRPC server that listens on a random port and returns a
// client connection to it.
//
// reg is called to register the server's gRPC services.
func RunGRPCServer(
	t *testing.T,
	reg func(grpc.ServiceRegistrar),
) *grpc.ClientConn {
	t.Helper()

	server := grpc.NewServer()
	reg(server)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	result := make(chan error, 1)
	go func() {
		result <- server.Serve(lis)
	}()

	t.Cleanup(func() {
		server.Stop()
		if err := <-result; err != nil && err != grpc.ErrServerStopped {
			t.Error(err)
		}
	})

	conn, err := grpc.Dial(
		lis.Addr().String(),
		grpc.WithTransportCredentials(
			insecure.NewCredentials(),
		),
	)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		conn.Close()
	})

	return conn
}
