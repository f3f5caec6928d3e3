package flight

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	arrowlayer "github.com/hugr-lab/arrowlayer-go"
	"github.com/hugr-lab/arrowlayer-go/internal/serialize"
	"github.com/hugr-lab/arrowlayer-go/schema"
)

// GetFlightInfo returns schema metadata and a ticket for a layer.
// This RPC allows clients to discover layer schemas before fetching data.
//
// The descriptor.Path should contain [layer_name].
// Returns FlightInfo with:
//   - Schema: Arrow schema of the layer's export stream
//   - Ticket: Opaque byte slice encoding the layer name
//   - AppMetadata: compressed layer snapshot (fields, geometry columns, extent)
func (s *Server) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	ctx = EnrichContextMetadata(ctx)

	s.logger.Debug("GetFlightInfo called",
		"type", desc.GetType(),
		"path_length", len(desc.GetPath()),
	)

	// Validate descriptor
	if desc.GetType() != flight.DescriptorPATH {
		return nil, status.Error(codes.InvalidArgument, "descriptor must be PATH type")
	}

	path := desc.GetPath()
	if len(path) != 1 {
		return nil, status.Error(codes.InvalidArgument, "path must contain exactly 1 element: [layer_name]")
	}

	layerName := path[0]

	s.logger.Debug("GetFlightInfo request", "layer", layerName)

	info, err := s.layerFlightInfo(ctx, layerName, desc)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("GetFlightInfo successful", "layer", layerName)

	return info, nil
}

// layerFlightInfo assembles the FlightInfo for one layer. Shared by
// GetFlightInfo and ListFlights. Stays scan-free: the export schema comes
// from a reader released before any batch is read, and the snapshot from
// declared metadata only.
func (s *Server) layerFlightInfo(ctx context.Context, name string, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	layer, err := s.openLayer(ctx, name)
	if err != nil {
		return nil, err // Error already formatted
	}

	// The reader reports its schema without touching the source.
	reader, err := layer.Reader(ctx, &arrowlayer.StreamOptions{})
	if err != nil {
		s.logger.Error("Failed to open layer reader",
			"layer", name,
			"error", err,
		)
		return nil, status.Errorf(codes.Internal, "failed to open reader: %v", err)
	}
	arrowSchema := reader.Schema()
	serialized := flight.SerializeSchema(arrowSchema, s.allocator)
	reader.Release()

	ticket, err := EncodeTicket(&TicketData{Layer: name})
	if err != nil {
		s.logger.Error("Failed to encode ticket",
			"layer", name,
			"error", err,
		)
		return nil, status.Errorf(codes.Internal, "failed to encode ticket: %v", err)
	}

	appMetadata, err := serialize.EncodeSnapshot(layerSnapshot(name, layer.Definition()))
	if err != nil {
		// The snapshot is advisory; the schema and ticket still serve.
		s.logger.Warn("Failed to encode layer snapshot",
			"layer", name,
			"error", err,
		)
		appMetadata = nil
	}

	return &flight.FlightInfo{
		Schema:           serialized,
		FlightDescriptor: desc,
		Endpoint: []*flight.FlightEndpoint{
			{
				Ticket: &flight.Ticket{
					Ticket: ticket,
				},
			},
		},
		AppMetadata:  appMetadata,
		TotalRecords: -1, // Unknown until scan
		TotalBytes:   -1, // Unknown until scan
	}, nil
}

// layerSnapshot describes a layer from its definition. Feature count and
// undeclared extents stay unknown; counting them would scan the source.
func layerSnapshot(name string, def *schema.Definition) *serialize.LayerSnapshot {
	snap := &serialize.LayerSnapshot{
		Name:         name,
		FID:          def.FID(),
		FeatureCount: -1,
	}

	for i := range def.Fields {
		f := &def.Fields[i]
		snap.Fields = append(snap.Fields, serialize.FieldSnapshot{
			Name:     f.Name,
			Type:     string(f.Type),
			Subtype:  string(f.Subtype),
			Nullable: f.Nullable,
		})
	}

	for i := range def.GeomFields {
		g := &def.GeomFields[i]
		gs := serialize.GeomFieldSnapshot{
			Name:     g.Name,
			Encoding: string(g.Encoding),
			Kind:     string(g.Kind),
			Nullable: g.Nullable,
		}
		if g.Extent != nil {
			gs.Extent = []float64{g.Extent.MinX, g.Extent.MinY, g.Extent.MaxX, g.Extent.MaxY}
		}
		snap.GeomFields = append(snap.GeomFields, gs)
	}

	return snap
}
