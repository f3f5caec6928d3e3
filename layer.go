package arrowlayer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/twpayne/go-geom"

	"github.com/hugr-lab/arrowlayer-go/filter"
	"github.com/hugr-lab/arrowlayer-go/geometry"
	"github.com/hugr-lab/arrowlayer-go/schema"
)

type layerState int

const (
	stateNoBatch layerState = iota
	stateInBatch
	stateExhausted
)

// Layer is a row-oriented cursor over the record batches of a BatchSource.
// Spatial and attribute filters push down into the columnar data so rejected
// rows are never materialized. A layer is not safe for concurrent use.
type Layer struct {
	source BatchSource
	def    *schema.Definition
	cfg    Config
	mem    memory.Allocator
	logger *slog.Logger

	codecs []*geometry.Codec

	state      layerState
	reader     array.RecordReader
	batch      arrow.Record
	row        int
	rowsBefore int64
	started    bool
	err        error
	feature    *Feature

	spatial    *geometry.Envelope
	spatialIdx int

	attrExpr    filter.Expression
	constraints *filter.Constraints
	residual    filter.Expression

	ignored     map[int]bool // attribute field indexes
	ignoredGeom map[int]bool // geometry field indexes
	ignoredCols map[int]bool // top-level columns with every field ignored

	extents []*geometry.Envelope
}

// New builds a layer over source. The source schema is mapped once; fields
// the mapping rejects are dropped with a warning and do not appear in the
// definition.
func New(source BatchSource, cfg Config) (*Layer, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	logger := cfg.logger()
	def, err := schema.BuildDefinition(source.Schema(), &schema.BuildOptions{
		Overlay:            cfg.Overlay,
		DisableOverlay:     cfg.DisableSchemaOverlay,
		DisableBBoxColumns: cfg.DisableBBoxAcceleration,
		Logger:             logger,
	})
	if err != nil {
		return nil, err
	}
	l := &Layer{
		source:  source,
		def:     def,
		cfg:     cfg,
		mem:     cfg.allocator(),
		logger:  logger,
		extents: make([]*geometry.Envelope, len(def.GeomFields)),
	}
	for _, g := range def.GeomFields {
		l.codecs = append(l.codecs, geometry.NewCodec(g.Encoding, g.Kind, g.Layout))
	}
	return l, nil
}

// Definition returns the layer's field definition.
func (l *Layer) Definition() *schema.Definition { return l.def }

// ArrowSchema returns the source arrow schema.
func (l *Layer) ArrowSchema() *arrow.Schema { return l.def.Source }

// Err returns the first error hit during iteration.
func (l *Layer) Err() error { return l.err }

// Feature returns the feature produced by the last successful Next.
func (l *Layer) Feature() *Feature { return l.feature }

// Next advances to the next feature passing the installed filters. It
// returns false when the source is exhausted, the context is done or an
// error occurred; Err distinguishes the cases.
func (l *Layer) Next(ctx context.Context) bool {
	l.feature = nil
	if l.err != nil || l.state == stateExhausted {
		return false
	}
	if !l.started {
		l.started = true
		if l.spatial != nil && l.disjointExtent() {
			l.exhaust()
			return false
		}
	}
	for {
		if err := ctx.Err(); err != nil {
			l.err = err
			return false
		}
		if l.state == stateNoBatch && !l.advance(ctx) {
			return false
		}
		for l.row < int(l.batch.NumRows()) {
			row := l.row
			l.row++
			fid := l.fidAt(l.batch, row, l.rowsBefore+int64(row))
			if !l.admit(l.batch, row, fid) {
				continue
			}
			f, err := l.materialize(l.batch, row, fid)
			if err != nil {
				l.err = err
				return false
			}
			if l.residual != nil && !filter.Match(l.residual, l.getter(f)) {
				continue
			}
			l.feature = f
			return true
		}
		l.rowsBefore += l.batch.NumRows()
		l.releaseBatch()
		l.state = stateNoBatch
	}
}

// advance pulls the next batch, opening the source reader on first use.
func (l *Layer) advance(ctx context.Context) bool {
	if l.reader == nil {
		r, err := l.source.Open(ctx)
		if err != nil {
			l.err = err
			l.state = stateExhausted
			return false
		}
		l.reader = r
	}
	if !l.reader.Next() {
		l.err = l.reader.Err()
		l.exhaust()
		return false
	}
	l.batch = l.reader.Record()
	l.batch.Retain()
	l.row = 0
	l.state = stateInBatch
	return true
}

// admit applies the row filters in their fixed order: geometry null check,
// bounding box intersection, compiled constraints. The residual predicate
// runs later, on the materialized feature.
func (l *Layer) admit(rec arrow.Record, row int, fid int64) bool {
	if l.spatial != nil {
		col := rec.Column(l.def.GeomFields[l.spatialIdx].Column)
		if col.IsNull(row) {
			return false
		}
		env, ok := l.rowBBox(rec, row)
		if !ok {
			e, err := l.codecs[l.spatialIdx].Envelope(col, row)
			if err != nil {
				l.logger.Debug("skipping row with unreadable geometry", "fid", fid, "error", err)
				return false
			}
			env = e
		}
		if !env.Intersects(*l.spatial) {
			return false
		}
	}
	if l.constraints != nil && l.constraints.Skip(rec, row, fid) {
		return false
	}
	return true
}

// rowBBox reads the precomputed bounds columns for the first geometry
// field. Reports false when the columns are absent, disabled, belong to
// another geometry field or hold a null.
func (l *Layer) rowBBox(rec arrow.Record, row int) (geometry.Envelope, bool) {
	bb := l.def.BBox
	if bb == nil || l.spatialIdx != 0 || l.cfg.DisableBBoxAcceleration {
		return geometry.Envelope{}, false
	}
	read := func(field int) (float64, bool) {
		col, ok := rec.Column(l.def.Fields[field].Column()).(*array.Float64)
		if !ok || col.IsNull(row) {
			return 0, false
		}
		return col.Value(row), true
	}
	minx, ok1 := read(bb.MinX)
	miny, ok2 := read(bb.MinY)
	maxx, ok3 := read(bb.MaxX)
	maxy, ok4 := read(bb.MaxY)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return geometry.Envelope{}, false
	}
	return geometry.Envelope{MinX: minx, MinY: miny, MaxX: maxx, MaxY: maxy}, true
}

// fidAt reads the identifier column, falling back to the sequential row
// counter for synthetic identifiers and null values.
func (l *Layer) fidAt(rec arrow.Record, row int, virtual int64) int64 {
	if l.def.FIDColumn < 0 {
		return virtual
	}
	col := rec.Column(l.def.FIDColumn)
	if col.IsNull(row) {
		return virtual
	}
	switch a := col.(type) {
	case *array.Int64:
		return a.Value(row)
	case *array.Int32:
		return int64(a.Value(row))
	}
	return virtual
}

// getter adapts a feature for residual predicate evaluation.
func (l *Layer) getter(f *Feature) func(name string) (any, bool) {
	return func(name string) (any, bool) {
		if name == l.def.FID() && l.def.FieldIndex(name) < 0 {
			return f.fid, true
		}
		idx := l.def.FieldIndex(name)
		if idx < 0 {
			return nil, false
		}
		return f.values[idx], true
	}
}

// Reset returns the cursor to the position before the first row. It is a
// no-op when the layer has not read anything yet; while the cursor is still
// inside the first batch it rewinds in place instead of reloading.
func (l *Layer) Reset() {
	if l.reader == nil && l.state == stateNoBatch && l.err == nil {
		return
	}
	if l.err == nil && l.state == stateInBatch && l.rowsBefore == 0 {
		l.row = 0
		l.feature = nil
		return
	}
	l.releaseBatch()
	if l.reader != nil {
		l.reader.Release()
		l.reader = nil
	}
	l.state = stateNoBatch
	l.row = 0
	l.rowsBefore = 0
	l.started = false
	l.err = nil
	l.feature = nil
}

// SetSpatialFilter installs g as the spatial filter on the first geometry
// field; nil clears it. Only the envelope of g is evaluated.
func (l *Layer) SetSpatialFilter(g geom.T) {
	if len(l.def.GeomFields) == 0 {
		if g != nil {
			l.logger.Warn("spatial filter ignored, layer has no geometry fields")
		}
		return
	}
	_ = l.SetSpatialFilterField(0, g)
}

// SetSpatialFilterField installs g as the spatial filter on geometry field
// idx. Replacing an existing filter drops cached extents.
func (l *Layer) SetSpatialFilterField(idx int, g geom.T) error {
	if idx < 0 || idx >= len(l.def.GeomFields) {
		return fmt.Errorf("%w: geometry field %d", ErrUnknownField, idx)
	}
	if g == nil {
		l.spatial = nil
		return nil
	}
	if l.spatial != nil {
		l.extents = make([]*geometry.Envelope, len(l.def.GeomFields))
	}
	env := geometry.EnvelopeOf(g)
	l.spatial = &env
	l.spatialIdx = idx
	return nil
}

// SetAttributeFilter installs expr as the attribute filter; nil clears it.
// The pushdown-eligible part compiles to per-column constraints; when
// compilation does not cover the whole expression (or pushdown is disabled)
// the expression is also evaluated against materialized features.
func (l *Layer) SetAttributeFilter(expr filter.Expression) {
	l.attrExpr = expr
	l.constraints = nil
	l.residual = nil
	if expr == nil {
		return
	}
	if l.cfg.DisableFilterPushdown {
		l.residual = expr
		return
	}
	c := filter.Compile(expr, l.def, l.logger)
	c.Rebind(l.ignored)
	l.constraints = c
	if !c.Complete() {
		l.residual = expr
	}
}

// SetAttributeFilterJSON parses a JSON filter document and installs it.
func (l *Layer) SetAttributeFilterJSON(data []byte) error {
	expr, err := filter.Parse(data)
	if err != nil {
		return err
	}
	l.SetAttributeFilter(expr)
	return nil
}

// SetIgnoredFields marks the named attribute and geometry fields as ignored:
// they materialize as nil and their columns drop out of exported batches.
// Constraints on ignored fields are disabled. Unknown names error without
// changing the ignore set.
func (l *Layer) SetIgnoredFields(names ...string) error {
	ignored := map[int]bool{}
	ignoredGeom := map[int]bool{}
	for _, n := range names {
		if i := l.def.FieldIndex(n); i >= 0 {
			ignored[i] = true
			continue
		}
		if i := l.def.GeomFieldIndex(n); i >= 0 {
			ignoredGeom[i] = true
			continue
		}
		return fmt.Errorf("%w: %s", ErrUnknownField, n)
	}
	l.ignored = ignored
	l.ignoredGeom = ignoredGeom
	l.ignoredCols = ignoredColumns(l.def, ignored, ignoredGeom)
	if l.constraints != nil {
		l.constraints.Rebind(ignored)
	}
	return nil
}

// ignoredColumns lists the top-level columns every reader of which is
// ignored. The identifier column always stays.
func ignoredColumns(def *schema.Definition, ignored, ignoredGeom map[int]bool) map[int]bool {
	total := map[int]int{}
	hidden := map[int]int{}
	for i := range def.Fields {
		c := def.Fields[i].Column()
		total[c]++
		if ignored[i] {
			hidden[c]++
		}
	}
	for i := range def.GeomFields {
		c := def.GeomFields[i].Column
		total[c]++
		if ignoredGeom[i] {
			hidden[c]++
		}
	}
	cols := map[int]bool{}
	for c, n := range total {
		if n > 0 && hidden[c] == n && c != def.FIDColumn {
			cols[c] = true
		}
	}
	return cols
}

// columnVisibilityConsistent reports whether every top-level column is
// either fully visible or fully ignored. Struct columns shared by a mix of
// ignored and visible fields cannot be projected column-wise.
func (l *Layer) columnVisibilityConsistent() bool {
	total := map[int]int{}
	hidden := map[int]int{}
	for i := range l.def.Fields {
		c := l.def.Fields[i].Column()
		total[c]++
		if l.ignored[i] {
			hidden[c]++
		}
	}
	for c, n := range total {
		if hidden[c] != 0 && hidden[c] != n {
			return false
		}
	}
	return true
}

// Extent returns the bounds of geometry field geomIdx. Resolution order:
// cached result, the extent declared in the column metadata, then a scan
// over all batches using the envelope fast paths. force skips the caches
// and the declared extent and always scans.
func (l *Layer) Extent(ctx context.Context, geomIdx int, force bool) (geometry.Envelope, error) {
	if geomIdx < 0 || geomIdx >= len(l.def.GeomFields) {
		return geometry.Envelope{}, fmt.Errorf("%w: geometry field %d", ErrUnknownField, geomIdx)
	}
	if !force {
		if e := l.extents[geomIdx]; e != nil {
			return *e, nil
		}
		if !l.cfg.DisableBBoxAcceleration {
			if e := l.def.GeomFields[geomIdx].Extent; e != nil {
				return *e, nil
			}
		}
	}
	env, err := l.scanExtent(ctx, geomIdx)
	if err != nil {
		return geometry.Envelope{}, err
	}
	l.extents[geomIdx] = &env
	return env, nil
}

func (l *Layer) scanExtent(ctx context.Context, geomIdx int) (geometry.Envelope, error) {
	r, err := l.source.Open(ctx)
	if err != nil {
		return geometry.Envelope{}, err
	}
	defer r.Release()

	g := l.def.GeomFields[geomIdx]
	codec := geometry.NewCodec(g.Encoding, g.Kind, g.Layout)
	env := geometry.NewEnvelope()
	for r.Next() {
		if err := ctx.Err(); err != nil {
			return geometry.Envelope{}, err
		}
		rec := r.Record()
		col := rec.Column(g.Column)
		for row := 0; row < int(rec.NumRows()); row++ {
			if col.IsNull(row) {
				continue
			}
			e, err := codec.Envelope(col, row)
			if err != nil {
				l.logger.Debug("extent scan skipping unreadable geometry", "error", err)
				continue
			}
			env.Merge(e)
		}
	}
	if err := r.Err(); err != nil {
		return geometry.Envelope{}, err
	}
	return env, nil
}

// FeatureCount returns the number of features the layer yields. Without
// filters it sums batch row counts. With filters it returns -1 unless force
// is set, in which case it runs a full filtered scan on a private cursor.
func (l *Layer) FeatureCount(ctx context.Context, force bool) (int64, error) {
	if l.spatial == nil && l.attrExpr == nil {
		r, err := l.source.Open(ctx)
		if err != nil {
			return 0, err
		}
		defer r.Release()
		var n int64
		for r.Next() {
			n += r.Record().NumRows()
		}
		if err := r.Err(); err != nil {
			return 0, err
		}
		return n, nil
	}
	if !force {
		return -1, nil
	}
	sub := l.clone()
	var n int64
	for sub.Next(ctx) {
		n++
	}
	sub.Reset()
	if err := sub.Err(); err != nil {
		return 0, err
	}
	return n, nil
}

// FieldDomain returns the coded-value domain of the named field, filling
// the codes from the first batch's dictionary on first use.
func (l *Layer) FieldDomain(ctx context.Context, name string) (*schema.Domain, error) {
	idx := l.def.FieldIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	dn := l.def.Fields[idx].Domain
	if dn == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoDomain, name)
	}
	dom := l.def.Domains[dn]
	if len(dom.Values) > 0 {
		return dom, nil
	}

	r, err := l.source.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Release()
	if !r.Next() {
		return dom, r.Err()
	}
	col, ok := resolveColumn(r.Record(), l.def.Fields[idx].Path)
	if !ok {
		return dom, nil
	}
	dict, ok := col.(*array.Dictionary)
	if !ok {
		return dom, nil
	}
	switch values := dict.Dictionary().(type) {
	case *array.String:
		for i := 0; i < values.Len(); i++ {
			dom.Values = append(dom.Values, schema.CodedValue{Code: int64(i), Value: values.Value(i)})
		}
	case *array.LargeString:
		for i := 0; i < values.Len(); i++ {
			dom.Values = append(dom.Values, schema.CodedValue{Code: int64(i), Value: values.Value(i)})
		}
	}
	return dom, nil
}

// clone returns a fresh cursor over the same source with the same filters
// and ignore set. Compiled constraints are shared; they are read-only after
// rebinding.
func (l *Layer) clone() *Layer {
	c := &Layer{
		source:      l.source,
		def:         l.def,
		cfg:         l.cfg,
		mem:         l.mem,
		logger:      l.logger,
		spatial:     l.spatial,
		spatialIdx:  l.spatialIdx,
		attrExpr:    l.attrExpr,
		constraints: l.constraints,
		residual:    l.residual,
		ignored:     l.ignored,
		ignoredGeom: l.ignoredGeom,
		ignoredCols: l.ignoredCols,
		extents:     make([]*geometry.Envelope, len(l.def.GeomFields)),
	}
	for _, g := range l.def.GeomFields {
		c.codecs = append(c.codecs, geometry.NewCodec(g.Encoding, g.Kind, g.Layout))
	}
	return c
}

func (l *Layer) disjointExtent() bool {
	ext := l.extents[l.spatialIdx]
	if ext == nil && !l.cfg.DisableBBoxAcceleration {
		ext = l.def.GeomFields[l.spatialIdx].Extent
	}
	return ext != nil && !ext.Intersects(*l.spatial)
}

func (l *Layer) releaseBatch() {
	if l.batch != nil {
		l.batch.Release()
		l.batch = nil
	}
}

func (l *Layer) exhaust() {
	l.releaseBatch()
	if l.reader != nil {
		l.reader.Release()
		l.reader = nil
	}
	l.state = stateExhausted
}
