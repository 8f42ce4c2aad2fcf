// Package store is the reference "downstream consumer" collaborator
// from spec §6: it reads a peak.List after a frame has been processed
// and persists it as a TileDB sparse array, keyed by (frame_index,
// peak_index). The core never calls into this package; it only ever
// produces the PeakList this package consumes.
//
// The schema is built from struct tags on PeakRow the same way the
// teacher's GSF-to-TileDB writer builds ping/beam schemas from struct
// tags on its record types (github.com/yuin/stagparser), just scaled
// down to the handful of fields a peak record carries.
package store

import (
	"reflect"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	stgpsr "github.com/yuin/stagparser"

	"github.com/xrd-imaging/peakscan/errs"
)

// PeakRow is the TileDB-schema-tagged row shape one peak.Record is
// flattened into. Dimensions are tagged ftype=dim and excluded from
// attribute construction; everything else becomes a compressed
// attribute.
type PeakRow struct {
	FrameIndex int32 `tiledb:"dtype=int32,ftype=dim"`
	PeakIndex  int32 `tiledb:"dtype=int32,ftype=dim"`

	ComFs        float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	ComSs        float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	LinearIndex  int32   `tiledb:"dtype=int32,ftype=attr" filters:"zstd(level=16)"`
	Intensity    float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	MaxIntensity float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	Sigma        float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	SNR          float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	PixelCount   int32   `tiledb:"dtype=int32,ftype=attr" filters:"zstd(level=16)"`
	Panel        int32   `tiledb:"dtype=int32,ftype=attr" filters:"zstd(level=16)"`
}

// schemaAttrs walks every non-dimension field of PeakRow and attaches a
// TileDB attribute + filter pipeline built from its tags (mirrors the
// teacher's schemaAttrs in shape, scaled to one row type instead of a
// family of sensor-specific records).
func schemaAttrs(schema *tiledb.ArraySchema, ctx *tiledb.Context) error {
	var row PeakRow
	values := reflect.ValueOf(&row).Elem()
	types := values.Type()

	filtDefs, _ := stgpsr.ParseStruct(&row, "filters")
	tdbDefs, _ := stgpsr.ParseStruct(&row, "tiledb")

	for i := 0; i < values.NumField(); i++ {
		name := types.Field(i).Name

		fieldTdbDefs := make(map[string]stgpsr.Definition)
		for _, v := range tdbDefs[name] {
			fieldTdbDefs[v.Name()] = v
		}

		def, ok := fieldTdbDefs["ftype"]
		if !ok {
			return errs.ErrCreateAttribute
		}
		ftype, _ := def.Attribute("ftype")
		if ftype == "dim" {
			continue // dimensions are carved out into the domain, not attributes
		}

		if err := createAttr(name, filtDefs[name], fieldTdbDefs, schema, ctx); err != nil {
			return err
		}
	}

	return nil
}

// createAttr builds one TileDB attribute and its compression filter
// pipeline from tag definitions, the same dtype/filter grammar the
// teacher's CreateAttr supports, trimmed to the filters actually useful
// for small fixed-width numeric peak fields (zstd, gzip, lz4).
func createAttr(fieldName string, filterDefs []stgpsr.Definition, tiledbDefs map[string]stgpsr.Definition, schema *tiledb.ArraySchema, ctx *tiledb.Context) error {
	def, ok := tiledbDefs["dtype"]
	if !ok {
		return errs.ErrCreateAttribute
	}
	dtype, _ := def.Attribute("dtype")

	tdbDtype, err := dtypeFromTag(dtype.(string))
	if err != nil {
		return err
	}

	attrFilts, err := tiledb.NewFilterList(ctx)
	if err != nil {
		return errs.ErrCreateFilterList
	}
	defer attrFilts.Free()

	for _, filter := range filterDefs {
		filt, err := buildFilter(ctx, filter)
		if err != nil {
			return err
		}
		if err := attrFilts.AddFilter(filt); err != nil {
			filt.Free()
			return errs.ErrAddFilter
		}
		filt.Free()
	}

	attr, err := tiledb.NewAttribute(ctx, fieldName, tdbDtype)
	if err != nil {
		return errs.ErrCreateAttribute
	}
	defer attr.Free()

	if err := attr.SetFilterList(attrFilts); err != nil {
		return errs.ErrAddFilter
	}

	if err := schema.AddAttributes(attr); err != nil {
		return errs.ErrAddAttribute
	}

	return nil
}

func dtypeFromTag(dtype string) (tiledb.Datatype, error) {
	switch dtype {
	case "int32":
		return tiledb.TILEDB_INT32, nil
	case "uint32":
		return tiledb.TILEDB_UINT32, nil
	case "float32":
		return tiledb.TILEDB_FLOAT32, nil
	case "float64":
		return tiledb.TILEDB_FLOAT64, nil
	default:
		return 0, errs.ErrUnsupportedDtype
	}
}

func buildFilter(ctx *tiledb.Context, filter stgpsr.Definition) (*tiledb.Filter, error) {
	level, _ := filter.Attribute("level")
	lvl := int32(16)
	if level != nil {
		lvl = int32(level.(int64))
	}

	switch filter.Name() {
	case "zstd":
		return newCompressionFilter(ctx, tiledb.TILEDB_FILTER_ZSTD, lvl)
	case "gzip":
		return newCompressionFilter(ctx, tiledb.TILEDB_FILTER_GZIP, lvl)
	case "lz4":
		return newCompressionFilter(ctx, tiledb.TILEDB_FILTER_LZ4, lvl)
	default:
		return nil, errs.ErrCreateFilter
	}
}

func newCompressionFilter(ctx *tiledb.Context, kind tiledb.FilterType, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, kind)
	if err != nil {
		return nil, errs.ErrCreateFilter
	}
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, errs.ErrCreateFilter
	}
	return filt, nil
}

// peakSparseSchema builds the sparse array schema: two int32
// dimensions (frame_index, peak_index) and the PeakRow attributes.
func peakSparseSchema(ctx *tiledb.Context, maxFrames, maxPeaksPerFrame int32) (*tiledb.ArraySchema, error) {
	domain, err := tiledb.NewDomain(ctx)
	if err != nil {
		return nil, errs.ErrCreateDim
	}
	defer domain.Free()

	frameDim, err := tiledb.NewDimension(ctx, "frame_index", tiledb.TILEDB_INT32, []int32{0, maxFrames - 1}, int32(1))
	if err != nil {
		return nil, errs.ErrCreateDim
	}
	defer frameDim.Free()

	peakDim, err := tiledb.NewDimension(ctx, "peak_index", tiledb.TILEDB_INT32, []int32{0, maxPeaksPerFrame - 1}, int32(1))
	if err != nil {
		return nil, errs.ErrCreateDim
	}
	defer peakDim.Free()

	if err := domain.AddDimensions(frameDim, peakDim); err != nil {
		return nil, errs.ErrCreateDim
	}

	schema, err := tiledb.NewArraySchema(ctx, tiledb.TILEDB_SPARSE)
	if err != nil {
		return nil, errs.ErrCreateSchema
	}

	if err := schema.SetDomain(domain); err != nil {
		return nil, errs.ErrCreateSchema
	}
	if err := schema.SetCellOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, errs.ErrCreateSchema
	}
	if err := schema.SetTileOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, errs.ErrCreateSchema
	}

	if err := schemaAttrs(schema, ctx); err != nil {
		return nil, err
	}

	return schema, nil
}
