package flight

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"

	"github.com/hugr-lab/arrowlayer-go/auth"
)

// ErrInvalidConfig is returned by Register when the ServerConfig is unusable.
var ErrInvalidConfig = errors.New("invalid server config")

// ServerConfig configures the Flight service registered by Register.
type ServerConfig struct {
	// Provider resolves layer names to layers. REQUIRED.
	Provider LayerProvider

	// Auth validates bearer tokens on incoming requests.
	// Only consulted by ServerOptions; nil disables authentication.
	// OPTIONAL.
	Auth auth.Authenticator

	// Allocator is used for schema serialization and record building.
	// Defaults to memory.DefaultAllocator. OPTIONAL.
	Allocator memory.Allocator

	// Logger receives structured server logs. Defaults to slog.Default().
	// OPTIONAL.
	Logger *slog.Logger

	// Address is the server's public address, advertised in FlightEndpoint
	// locations. OPTIONAL.
	Address string

	// MaxMessageSize caps gRPC message sizes when building ServerOptions.
	// Zero keeps the gRPC defaults. OPTIONAL.
	MaxMessageSize int
}

// Register registers the layer Flight service handlers on the provided gRPC server.
//
// The function:
//  1. Validates the ServerConfig
//  2. Creates the Flight service implementation
//  3. Registers it on grpcServer
//
// Returns error if config is invalid (e.g., nil Provider).
// Does NOT start the gRPC server - user controls lifecycle via grpcServer.Serve().
//
// For authentication, use ServerOptions() to create a gRPC server with auth interceptors:
//
//	opts := flight.ServerOptions(config)
//	grpcServer := grpc.NewServer(opts...)
//	err := flight.Register(grpcServer, config)
//
// Basic example without authentication:
//
//	layers := flight.NewStaticSet()
//	layers.Add("roads", source, arrowlayer.Config{})
//
//	grpcServer := grpc.NewServer()
//	err := flight.Register(grpcServer, flight.ServerConfig{
//	    Provider: layers,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	lis, _ := net.Listen("tcp", ":50051")
//	grpcServer.Serve(lis)
func Register(grpcServer *grpc.Server, config ServerConfig) error {
	if config.Provider == nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, ErrNilProvider)
	}

	// Use defaults for optional fields
	allocator := config.Allocator
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	flightServer := NewServer(config.Provider, allocator, logger, config.Address)
	RegisterFlightServer(grpcServer, flightServer)

	logger.Info("Layer Flight server registered",
		"has_auth", config.Auth != nil,
		"max_message_size", config.MaxMessageSize,
	)

	return nil
}

// ServerOptions returns gRPC server options with authentication interceptors.
// Use this when creating a gRPC server if you want authentication enabled.
//
// Example:
//
//	config := flight.ServerConfig{
//	    Provider: layers,
//	    Auth:     auth.BearerAuth(validateToken),
//	}
//	opts := flight.ServerOptions(config)
//	grpcServer := grpc.NewServer(opts...)
//	flight.Register(grpcServer, config)
func ServerOptions(config ServerConfig) []grpc.ServerOption {
	var opts []grpc.ServerOption

	// Add auth interceptors if authenticator is provided
	if config.Auth != nil {
		opts = append(opts,
			grpc.UnaryInterceptor(UnaryServerInterceptor(config.Auth)),
			grpc.StreamInterceptor(StreamServerInterceptor(config.Auth)),
		)
	}

	// Add max message size if specified
	if config.MaxMessageSize > 0 {
		opts = append(opts,
			grpc.MaxRecvMsgSize(config.MaxMessageSize),
			grpc.MaxSendMsgSize(config.MaxMessageSize),
		)
	}

	return opts
}
