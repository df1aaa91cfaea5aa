package types

// Mapping defines the field structure of an index.
type Mapping struct {
	// Version tracks mapping evolution. Assigned by the mapping
	// registry; zero means "no mapping registered yet".
	Version int64 `json:"version"`

	// Fields defines the user fields in the mapping. Internal metadata
	// fields are not listed here; they are fixed by the engine.
	Fields []FieldDef `json:"fields"`
}

// FieldDef defines a single user field in the mapping.
type FieldDef struct {
	// Name is the field name.
	Name string `json:"name"`

	// Type is the logical field type: "long" is the only numeric type
	// the index stores natively.
	Type string `json:"type"`

	// Indexed indicates whether the field gets a point representation.
	Indexed bool `json:"indexed"`

	// Column indicates whether the field gets a column representation.
	Column bool `json:"column"`
}

// Equal compares two mappings for structural equality, ignoring the
// version number.
func (m Mapping) Equal(other Mapping) bool {
	if len(m.Fields) != len(other.Fields) {
		return false
	}
	for i := range m.Fields {
		if m.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}
