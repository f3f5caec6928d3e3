package flight

import (
	"context"
	"errors"
	"io"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/twpayne/go-geom"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	arrowlayer "github.com/hugr-lab/arrowlayer-go"
	"github.com/hugr-lab/arrowlayer-go/geometry"
	"github.com/hugr-lab/arrowlayer-go/internal/recovery"
)

// DoGet streams Arrow record batches for a layer read.
// This is the core RPC for fetching vector data.
//
// The ticket must be encoded using EncodeTicket.
// The handler:
//  1. Decodes the ticket (layer name, columns, filters, encoding)
//  2. Opens the layer through the provider
//  3. Installs the spatial and attribute filters and column selection
//  4. Streams the layer's export reader using Arrow IPC format
//  5. Respects context cancellation
//  6. Propagates errors from the source
func (s *Server) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	ctx := EnrichContextMetadata(stream.Context())

	s.logger.Debug("DoGet called", "ticket_size", len(ticket.GetTicket()))

	ticketData, err := DecodeTicket(ticket.GetTicket())
	if err != nil {
		s.logger.Error("Failed to decode ticket", "error", err)
		return status.Errorf(codes.InvalidArgument, "invalid ticket: %v", err)
	}

	s.logger.Debug("DoGet request",
		"layer", ticketData.Layer,
		"columns", len(ticketData.Columns),
		"has_filter", len(ticketData.Filter) > 0,
		"has_bbox", len(ticketData.BBox) == 4,
		"encoding", ticketData.Encoding,
	)

	layer, err := s.openLayer(ctx, ticketData.Layer)
	if err != nil {
		return err // Error already formatted
	}

	reader, err := s.openStream(ctx, layer, ticketData)
	if err != nil {
		return err // Error already formatted
	}
	defer reader.Release()

	readerSchema := reader.Schema()

	s.logger.Debug("Starting record streaming",
		"layer", ticketData.Layer,
		"num_fields", readerSchema.NumFields(),
	)

	// Stream record batches using Arrow IPC format
	writer := flight.NewRecordWriter(stream, ipc.WithSchema(readerSchema))
	defer writer.Close()

	batchCount := 0
	totalRows := int64(0)

	for reader.Next() {
		// Check context cancellation
		select {
		case <-ctx.Done():
			s.logger.Debug("DoGet cancelled by client",
				"layer", ticketData.Layer,
				"batches_sent", batchCount,
				"rows_sent", totalRows,
			)
			return status.Error(codes.Canceled, "request cancelled")
		default:
		}

		record := reader.RecordBatch()
		batchCount++
		totalRows += record.NumRows()

		// Write batch to stream
		if err := writer.Write(record); err != nil {
			s.logger.Error("Failed to write record batch",
				"layer", ticketData.Layer,
				"batch", batchCount,
				"error", err,
			)
			return status.Errorf(codes.Internal, "failed to write batch %d: %v", batchCount, err)
		}

		s.logger.Debug("Sent record batch",
			"layer", ticketData.Layer,
			"batch", batchCount,
			"rows_in_batch", record.NumRows(),
			"total_rows", totalRows,
		)
	}

	// Check for errors during iteration
	if err := reader.Err(); err != nil {
		// Check if error is EOF (normal termination)
		if err == io.EOF {
			s.logger.Debug("DoGet completed (EOF)",
				"layer", ticketData.Layer,
				"batches_sent", batchCount,
				"total_rows", totalRows,
			)
		} else {
			s.logger.Error("RecordReader error during iteration",
				"layer", ticketData.Layer,
				"batch", batchCount,
				"error", err,
			)
			return status.Errorf(codes.Internal, "read error after batch %d: %v", batchCount, err)
		}
	}

	s.logger.Debug("DoGet completed successfully",
		"layer", ticketData.Layer,
		"batches_sent", batchCount,
		"total_rows", totalRows,
	)

	return nil
}

// openLayer resolves a layer through the provider with panic recovery and
// maps failures to gRPC status codes.
func (s *Server) openLayer(ctx context.Context, name string) (*arrowlayer.Layer, error) {
	layer, err := recovery.RecoverToValue(s.logger, "OpenLayer", func() (*arrowlayer.Layer, error) {
		return s.provider.OpenLayer(ctx, name)
	})
	if err != nil {
		if errors.Is(err, ErrLayerNotFound) {
			return nil, status.Errorf(codes.NotFound, "layer not found: %s", name)
		}
		s.logger.Error("Failed to open layer",
			"layer", name,
			"error", err,
		)
		return nil, status.Errorf(codes.Internal, "failed to open layer: %v", err)
	}
	if layer == nil {
		return nil, status.Errorf(codes.NotFound, "layer not found: %s", name)
	}
	return layer, nil
}

// openStream installs the ticket's filters and column selection on the layer
// and returns its export reader.
func (s *Server) openStream(ctx context.Context, layer *arrowlayer.Layer, ticketData *TicketData) (array.RecordReader, error) {
	if len(ticketData.BBox) == 4 {
		layer.SetSpatialFilter(bboxPolygon(ticketData.BBox))
	}

	if len(ticketData.Filter) > 0 {
		if err := layer.SetAttributeFilterJSON(ticketData.Filter); err != nil {
			s.logger.Error("Invalid attribute filter",
				"layer", ticketData.Layer,
				"error", err,
			)
			return nil, status.Errorf(codes.InvalidArgument, "invalid filter: %v", err)
		}
	}

	if len(ticketData.Columns) > 0 {
		ignored, err := ignoredFromColumns(layer, ticketData.Columns)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid column selection: %v", err)
		}
		if err := layer.SetIgnoredFields(ignored...); err != nil {
			return nil, status.Errorf(codes.Internal, "failed to apply column selection: %v", err)
		}
	}

	reader, err := layer.Reader(ctx, &arrowlayer.StreamOptions{
		Encoding: geometry.Encoding(ticketData.Encoding),
	})
	if err != nil {
		s.logger.Error("Failed to open layer reader",
			"layer", ticketData.Layer,
			"error", err,
		)
		return nil, status.Errorf(codes.Internal, "failed to open reader: %v", err)
	}

	return reader, nil
}

// ignoredFromColumns inverts a keep-list of column names into the layer's
// ignore-list. Every requested name must name a field the layer exposes.
func ignoredFromColumns(layer *arrowlayer.Layer, columns []string) ([]string, error) {
	def := layer.Definition()

	keep := make(map[string]bool, len(columns))
	for _, name := range columns {
		if def.FieldIndex(name) < 0 && def.GeomFieldIndex(name) < 0 && name != def.FID() {
			return nil, errors.New("unknown column: " + name)
		}
		keep[name] = true
	}

	var ignored []string
	for i := range def.Fields {
		if !keep[def.Fields[i].Name] {
			ignored = append(ignored, def.Fields[i].Name)
		}
	}
	for i := range def.GeomFields {
		if !keep[def.GeomFields[i].Name] {
			ignored = append(ignored, def.GeomFields[i].Name)
		}
	}
	return ignored, nil
}

// bboxPolygon builds the closed rectangle ring for a [minx, miny, maxx, maxy] box.
func bboxPolygon(b []float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		b[0], b[1],
		b[2], b[1],
		b[2], b[3],
		b[0], b[3],
		b[0], b[1],
	}, []int{10})
}
