// Package arrowlayer exposes columnar Arrow record batches as row-oriented
// geospatial features.
//
// A Layer wraps a BatchSource (schema plus re-openable record reader) and
// presents its batches as a sequence of features: scalar and list attribute
// values plus go-geom geometry values. Spatial and attribute filters push
// down into the columnar data, so rows that will be discarded are never
// materialized.
//
// # Quick Start
//
//	source := arrowlayer.NewRecordSource(schema, records...)
//	defer source.Release()
//
//	layer, err := arrowlayer.New(source, arrowlayer.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	layer.SetSpatialFilter(searchArea)
//	layer.SetAttributeFilter(filter.Gt(filter.Col("population"), filter.Lit(100000)))
//
//	for layer.Next(ctx) {
//	    f := layer.Feature()
//	    fmt.Println(f.FID(), f.Geometry(0))
//	}
//	if err := layer.Err(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Schema Mapping
//
// The schema package maps each arrow field to a driver-neutral attribute
// type. Geometry columns are recognized by their extension metadata: WKB and
// WKT serializations plus the six geoarrow coordinate encodings. Struct
// columns flatten to dot-joined field names, dictionaries become coded-value
// domains, and four double columns named bbox.minx through bbox.maxy
// accelerate spatial filtering.
//
// # Filter Pushdown
//
// Attribute filters are expression trees (package filter), built
// programmatically or parsed from JSON. The pushdown-eligible part compiles
// to flat per-column constraints evaluated directly against column buffers;
// the rest of the expression is evaluated against materialized features.
// Spatial filters evaluate envelope intersection through per-row bbox
// columns, WKB header scans or raw coordinate scans before any geometry is
// decoded.
//
// # Streaming Export
//
// Layer.Reader streams the filtered layer back out as record batches. When
// the installed filters compile completely and field visibility aligns with
// columns, source batches pass through with projection and row compaction
// only; otherwise batches are rebuilt from materialized features. The flight
// package serves layers over Arrow Flight.
//
// # Memory Management
//
// Arrow uses manual reference counting. Callers MUST call Release() on
// readers returned by Layer.Reader and on sources they create. Features
// returned by Layer.Feature are plain Go values and need no release, but
// are only valid until the next call to Next.
package arrowlayer
