// Package pipeline turns raw JSON document source into logical documents
// and drives the metadata-mapper parse hooks around the parse.
package pipeline

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/golang/snappy"

	"github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/internal/mapper"
	"github.com/stratadb/strata/pkg/types"
)

// Parser parses one JSON object per call into a LogicalDocument. Numeric
// integral values are indexed under both physical representations; arrays
// of objects materialize nested records; everything else is carried by
// the stored source only.
//
// A Parser is stateless across documents and safe to use concurrently.
type Parser struct {
	version *mapper.VersionFieldMapper
}

// NewParser creates a parser wired to the index's version field mapper.
func NewParser(version *mapper.VersionFieldMapper) *Parser {
	return &Parser{version: version}
}

// Parse parses source into a logical document stamped with the given
// mapping version. The stamp is attached to the root record before user
// fields are parsed and copied onto every nested record once the record
// tree is complete.
func (p *Parser) Parse(source []byte, stamp int64) (*types.LogicalDocument, error) {
	if len(source) == 0 {
		return nil, errors.New(errors.ErrCategoryValidation, errors.CodeEmptyDocument,
			"document source is empty")
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(source, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCategoryValidation, errors.CodeInvalidDocument,
			"document source is not a JSON object", err)
	}

	root := &types.Record{Source: snappy.Encode(nil, source)}
	ctx := mapper.NewParseContext(root, stamp)
	p.version.PreParse(ctx)

	for _, key := range sortedKeys(doc) {
		switch value := doc[key].(type) {
		case float64:
			addLong(root, key, value)

		case map[string]interface{}:
			// Single nested objects flatten onto the root record.
			for _, sub := range sortedKeys(value) {
				if f, ok := value[sub].(float64); ok {
					addLong(root, key+"."+sub, f)
				}
			}

		case []interface{}:
			// Arrays of objects materialize one nested record each.
			for _, elem := range value {
				obj, ok := elem.(map[string]interface{})
				if !ok {
					continue
				}
				nested := &types.Record{}
				for _, sub := range sortedKeys(obj) {
					if f, ok := obj[sub].(float64); ok {
						addLong(nested, key+"."+sub, f)
					}
				}
				if err := ctx.AddNested(nested); err != nil {
					return nil, err
				}
			}
		}
	}

	ctx.FinishParsing()
	if err := p.version.PostParse(ctx); err != nil {
		return nil, err
	}

	return &types.LogicalDocument{Root: root, Nested: ctx.NonRootDocuments()}, nil
}

// addLong indexes an integral in-range JSON number under both physical
// representations. Fractional and out-of-range values stay source-only.
func addLong(rec *types.Record, name string, f float64) {
	if math.Trunc(f) != f || f < math.MinInt64 || f >= float64(math.MaxInt64) {
		return
	}
	v := int64(f)
	rec.Add(types.Field{Name: name, Kind: types.KindPoint, Value: v})
	rec.Add(types.Field{Name: name, Kind: types.KindColumn, Value: v})
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
