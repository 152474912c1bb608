// Package grpc exposes a read-only admin view of the chat server over gRPC.
// Every call must carry an admin JWT in the access_token metadata.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/registry"
	"google.golang.org/grpc"
)

// Source is what the admin endpoint reports on.
type Source interface {
	Snapshot() []registry.Info
	Stats() registry.Stats
}

type GRPCServer struct {
	address   string
	source    Source
	logger    logging.Logger
	jwtSecret []byte
}

var _ AdminServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, src Source, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		source:    src,
		jwtSecret: []byte(secretKey),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve runs the admin service on listen until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	RegisterAdminServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	return srv.Serve(listen)
}
