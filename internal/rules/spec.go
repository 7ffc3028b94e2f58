// internal/rules/spec.go
package rules

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/solatis/querykit/internal/types"
)

/*
 * Query spec decoding.
 *
 * A types.QuerySpec arrives as YAML (spec files) or as a generic map (structpb
 * requests). Both go through one mapstructure decode so operator, link and
 * direction names are parsed by their UnmarshalText methods in either case.
 * Scalar values are weakly typed (`value: 5` is the text "5"). Unknown keys
 * are rejected.
 */

// DecodeSpecMap decodes a generic map into a QuerySpec.
func DecodeSpecMap(m map[string]any) (types.QuerySpec, error) {
	var spec types.QuerySpec
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &spec,
	})
	if err != nil {
		return types.QuerySpec{}, err
	}
	if err := dec.Decode(m); err != nil {
		return types.QuerySpec{}, fmt.Errorf("%w: %v", types.ErrInvalidFilterInput, err)
	}
	if spec.Limit < 0 {
		return types.QuerySpec{}, fmt.Errorf("%w: negative limit %d", types.ErrInvalidFilterInput, spec.Limit)
	}
	return spec, nil
}

// DecodeSpecYAML decodes a YAML document into a QuerySpec. An empty document
// yields an empty spec.
func DecodeSpecYAML(data []byte) (types.QuerySpec, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return types.QuerySpec{}, fmt.Errorf("%w: %v", types.ErrInvalidFilterInput, err)
	}
	return DecodeSpecMap(m)
}

// QueryOf is the Where input carried by spec.
func QueryOf(spec types.QuerySpec) Query {
	return Query{
		Conditions: spec.Conditions,
		Group:      spec.Group,
		Search:     spec.Search,
		Mappings:   spec.Mappings,
	}
}

// RunSpec runs spec over records: filter, sort, then truncate to spec.Limit
// when it is positive.
func RunSpec[T any](e *Engine, records []T, spec types.QuerySpec) ([]T, error) {
	out, err := Run(e, records, QueryOf(spec), spec.Sort)
	if err != nil {
		return nil, err
	}
	if spec.Limit > 0 && len(out) > spec.Limit {
		out = out[:spec.Limit]
	}
	return out, nil
}
