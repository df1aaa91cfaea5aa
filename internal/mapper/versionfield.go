package mapper

import (
	"fmt"
	"math"
	"strconv"

	"github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/internal/index"
	"github.com/stratadb/strata/internal/query"
	"github.com/stratadb/strata/pkg/types"
)

// VersionFieldName is the reserved name of the mapping version field. It
// is not user-assignable; filter, sort, and range requests naming it are
// routed to the VersionFieldType descriptor.
const VersionFieldName = "_mapping_version"

// VersionFields is the dual physical representation of one mapping
// version stamp: an indexed point entry for exact/set/range search and a
// column entry for per-document retrieval. Both always encode the same
// value and are always attached together.
//
// A VersionFields is created once per logical document at the start of
// parsing, attached to the root record immediately, and copied onto every
// nested record once parsing completes. It is immutable.
type VersionFields struct {
	point  types.Field
	column types.Field
}

// NewVersionFields builds the point/column pair for a stamp value.
// Construction cannot fail.
func NewVersionFields(value int64) VersionFields {
	return VersionFields{
		point:  types.Field{Name: VersionFieldName, Kind: types.KindPoint, Value: value},
		column: types.Field{Name: VersionFieldName, Kind: types.KindColumn, Value: value},
	}
}

// EmptyVersion returns the default zero-valued stamp used when the
// pipeline has not supplied one.
func EmptyVersion() VersionFields {
	return NewVersionFields(0)
}

// Tombstone returns the stamp attached to deletion tombstones. It is the
// zero stamp; tombstoned documents are recognized by the deletion
// pipeline, not by a distinguishable version value.
func Tombstone() VersionFields {
	return NewVersionFields(0)
}

// Value returns the encoded stamp.
func (f VersionFields) Value() int64 {
	return f.point.Value
}

// AddTo attaches both physical fields to a record.
func (f VersionFields) AddTo(rec *types.Record) {
	rec.Add(f.point)
	rec.Add(f.column)
}

// Propagate attaches both physical fields to every record in records.
// Used to copy the root's stamp onto the nested records of the same
// logical document after parsing completes.
func (f VersionFields) Propagate(records []*types.Record) {
	for _, rec := range records {
		f.AddTo(rec)
	}
}

// VersionFieldType is the query-facing descriptor for the mapping version
// field. It is immutable after construction and shared by reference
// across all query-construction call sites of an index.
//
// The field exists purely for internal filtering and sorting support:
// it has no configurable options and cannot be fetched back for display.
type VersionFieldType struct {
	name      string
	hasColumn bool
}

// NewVersionFieldType returns the canonical descriptor, with both the
// point and the column representation declared.
func NewVersionFieldType() *VersionFieldType {
	return newVersionFieldType(true)
}

func newVersionFieldType(hasColumn bool) *VersionFieldType {
	return &VersionFieldType{name: VersionFieldName, hasColumn: hasColumn}
}

// Name returns the reserved field name.
func (t *VersionFieldType) Name() string {
	return t.name
}

// maxInt64AsFloat is the smallest float64 strictly greater than every
// int64; math.MaxInt64 rounds up to 2^63 when converted to float64.
const maxInt64AsFloat = float64(math.MaxInt64)

// Parse normalizes a term to a signed 64-bit integer.
//
// Integer terms pass through. Float terms must be inside the 64-bit
// signed domain and integral. Byte terms decode as UTF-8 and fall through
// to string parsing. String terms parse as base-10 signed integers.
func (t *VersionFieldType) Parse(term Term) (int64, error) {
	switch term.Kind {
	case TermInt:
		return term.Int, nil

	case TermFloat:
		f := term.Float
		if f < math.MinInt64 || f >= maxInt64AsFloat {
			return 0, errors.NewArgumentError(errors.CodeOutOfRange,
				fmt.Sprintf("value [%v] is out of range for a long", f))
		}
		if math.Trunc(f) != f {
			return 0, errors.NewArgumentError(errors.CodeDecimalPart,
				fmt.Sprintf("value [%v] has a decimal part", f))
		}
		return int64(f), nil

	case TermBytes:
		return t.parseString(string(term.Bytes))

	default:
		return t.parseString(term.Str)
	}
}

func (t *VersionFieldType) parseString(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.NewArgumentError(errors.CodeNumericFormat,
			fmt.Sprintf("cannot parse [%s] as a 64-bit integer", s))
	}
	return v, nil
}

// FetchValue always fails: the mapping version field exists only for
// internal predicate construction and cannot be fetched for display.
func (t *VersionFieldType) FetchValue(types.DocID) (int64, error) {
	return 0, errors.NewUnsupportedOperationError(
		fmt.Sprintf("cannot fetch values for internal field [%s]", t.name))
}

// TermQuery builds a point equality predicate over the parsed term.
func (t *VersionFieldType) TermQuery(term Term) (query.Query, error) {
	v, err := t.Parse(term)
	if err != nil {
		return nil, err
	}
	return &query.PointExact{Field: t.name, Value: v}, nil
}

// TermsQuery builds a point set-membership predicate over the parsed
// terms. Input order is irrelevant and duplicates are harmless.
func (t *VersionFieldType) TermsQuery(terms []Term) (query.Query, error) {
	vs := make([]int64, 0, len(terms))
	for _, term := range terms {
		v, err := t.Parse(term)
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return &query.PointSet{Field: t.name, Values: vs}, nil
}

// RangeQuery builds an inclusive point range predicate. Nil bounds widen
// to the full signed 64-bit domain. Exclusive bounds adjust inward by
// one; when the adjustment would overflow the domain no integer can
// satisfy the range, and a MatchNone predicate is returned instead.
func (t *VersionFieldType) RangeQuery(lower, upper *Term, includeLower, includeUpper bool) (query.Query, error) {
	l := int64(math.MinInt64)
	u := int64(math.MaxInt64)

	if lower != nil {
		v, err := t.Parse(*lower)
		if err != nil {
			return nil, err
		}
		l = v
		if !includeLower {
			if l == math.MaxInt64 {
				return &query.MatchNone{}, nil
			}
			l++
		}
	}

	if upper != nil {
		v, err := t.Parse(*upper)
		if err != nil {
			return nil, err
		}
		u = v
		if !includeUpper {
			if u == math.MinInt64 {
				return &query.MatchNone{}, nil
			}
			u--
		}
	}

	return &query.PointRange{Field: t.name, Lower: l, Upper: u}, nil
}

// ColumnAccessor returns the sorted numeric column reader used for
// sorting and aggregation. It fails if the descriptor was declared
// without the column representation.
func (t *VersionFieldType) ColumnAccessor(seg *index.Segment) (*index.SortedColumn, error) {
	if !t.hasColumn {
		return nil, errors.NewConfigurationError(errors.CodeMissingColumn,
			fmt.Sprintf("field [%s] was declared without a column representation", t.name))
	}
	return seg.Column(t.name), nil
}

// VersionFieldMapper owns the version field's parsing hooks and its
// field-type descriptor. One instance is constructed per index at schema
// initialization and shared; it holds no mutable state.
type VersionFieldMapper struct {
	fieldType *VersionFieldType
}

// NewVersionFieldMapper constructs the mapper with the canonical
// two-representation field type.
func NewVersionFieldMapper() *VersionFieldMapper {
	return &VersionFieldMapper{fieldType: NewVersionFieldType()}
}

// Name returns the reserved field name.
func (m *VersionFieldMapper) Name() string {
	return VersionFieldName
}

// FieldType returns the shared query-facing descriptor.
func (m *VersionFieldMapper) FieldType() *VersionFieldType {
	return m.fieldType
}

// PreParse creates the document's version fields from the context's
// stamp, registers them on the context, and attaches them to the root
// record. Runs before any user field is parsed.
func (m *VersionFieldMapper) PreParse(ctx *ParseContext) {
	version := NewVersionFields(ctx.Stamp())
	ctx.SetVersion(&version)
	version.AddTo(ctx.Doc())
}

// PostParse copies the document's version fields onto every nested
// record. It fails if parsing has not finished: the stamp must be final
// and the record tree complete before propagation.
func (m *VersionFieldMapper) PostParse(ctx *ParseContext) error {
	if !ctx.Parsed() {
		return errors.NewInternalError("post-parse hook invoked before parsing finished", nil)
	}
	version := ctx.Version()
	if version == nil {
		return errors.NewInternalError("parse context has no version fields", nil)
	}
	version.Propagate(ctx.NonRootDocuments())
	return nil
}
