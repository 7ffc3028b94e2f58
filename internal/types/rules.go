// internal/types/rules.go
package types

/*
 * Filter and sort rule shapes.
 *
 * Plain data consumed by internal/rules. These types carry no behavior beyond
 * text decoding so they can travel over any wire format (YAML spec files,
 * structpb requests) and be decoded with mapstructure.
 *
 * Key types:
 *   - Condition: one (member path, operator, raw text) triple
 *   - Group: AND/OR tree of conditions, arbitrary depth
 *   - SortCondition: one (member path, direction) pair
 *   - Mappings: logical name -> ordered real member paths
 *   - FilterField: one slot of a filter object
 */

// Condition is a single filter condition.
// Value is raw text; "|" separates the members of a ContainedIn set.
type Condition struct {
	Field    string   `json:"field" yaml:"field" mapstructure:"field"`
	Operator Operator `json:"operator" yaml:"operator" mapstructure:"operator"`
	Value    string   `json:"value" yaml:"value" mapstructure:"value"`
}

// Group is a node of a filter tree.
// A leaf carries Condition; an inner node links Groups with Link.
type Group struct {
	Link      LinkOperator `json:"link,omitempty" yaml:"link,omitempty" mapstructure:"link"`
	Condition *Condition   `json:"condition,omitempty" yaml:"condition,omitempty" mapstructure:"condition"`
	Groups    []Group      `json:"groups,omitempty" yaml:"groups,omitempty" mapstructure:"groups"`
}

// IsLeaf reports whether the group wraps a single condition.
func (g Group) IsLeaf() bool {
	return g.Condition != nil
}

// SortCondition is one sort key; list order is key precedence.
type SortCondition struct {
	Field     string    `json:"field" yaml:"field" mapstructure:"field"`
	Direction Direction `json:"direction" yaml:"direction" mapstructure:"direction"`
}

// Mappings maps a logical field name to one or more real member paths.
// Multiple paths are OR-combined by the predicate builder.
type Mappings map[string][]string

// Lookup returns the mapped paths for name, or nil when name is not mapped.
func (m Mappings) Lookup(name string) []string {
	if m == nil {
		return nil
	}
	return m[name]
}

// FilterField is one slot of a filter object: an operator and raw text.
// A zero FilterField (OpNone) contributes nothing.
type FilterField struct {
	Operator Operator `json:"operator" yaml:"operator" mapstructure:"operator"`
	Value    string   `json:"value" yaml:"value" mapstructure:"value"`
}

// QuerySpec is a complete query as plain data, as read from YAML spec files
// and structpb requests. Dataset names the record set to query where the
// caller serves more than one.
type QuerySpec struct {
	Dataset    string          `json:"dataset,omitempty" yaml:"dataset,omitempty" mapstructure:"dataset"`
	Conditions []Condition     `json:"conditions,omitempty" yaml:"conditions,omitempty" mapstructure:"conditions"`
	Group      *Group          `json:"group,omitempty" yaml:"group,omitempty" mapstructure:"group"`
	Search     string          `json:"search,omitempty" yaml:"search,omitempty" mapstructure:"search"`
	Sort       []SortCondition `json:"sort,omitempty" yaml:"sort,omitempty" mapstructure:"sort"`
	Mappings   Mappings        `json:"mappings,omitempty" yaml:"mappings,omitempty" mapstructure:"mappings"`
	Limit      int             `json:"limit,omitempty" yaml:"limit,omitempty" mapstructure:"limit"`
}
