package flight

import (
	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/arrowlayer-go/internal/recovery"
)

// ListFlights enumerates the layers this server exposes.
// This RPC allows clients to discover layers without fetching data.
//
// The response contains one FlightInfo per layer with the export schema,
// a ready-to-use ticket and the compressed layer snapshot as app metadata.
//
// Criteria parameter is currently ignored (returns all layers).
func (s *Server) ListFlights(criteria *flight.Criteria, stream flight.FlightService_ListFlightsServer) error {
	ctx := EnrichContextMetadata(stream.Context())

	s.logger.Debug("ListFlights called")

	names, err := recovery.RecoverToValue(s.logger, "LayerNames", func() ([]string, error) {
		return s.provider.LayerNames(ctx)
	})
	if err != nil {
		s.logger.Error("Failed to list layers", "error", err)
		return status.Errorf(codes.Internal, "failed to list layers: %v", err)
	}

	for _, name := range names {
		desc := &flight.FlightDescriptor{
			Type: flight.DescriptorPATH,
			Path: []string{name},
		}

		info, err := s.layerFlightInfo(ctx, name, desc)
		if err != nil {
			return err // Error already formatted
		}

		if err := stream.Send(info); err != nil {
			s.logger.Error("Failed to send FlightInfo",
				"layer", name,
				"error", err,
			)
			return status.Errorf(codes.Internal, "failed to send flight info: %v", err)
		}
	}

	s.logger.Debug("ListFlights completed successfully", "layers", len(names))

	return nil
}
