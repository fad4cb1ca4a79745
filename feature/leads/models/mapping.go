package models

// Target is the destination of one remote field. Either Field names a scalar
// local field, or Nested maps a remote sub-key of a compound remote value
// (e.g. {"name": ..., "id": ...}) onto a local field.
type Target struct {
	Field  string
	Nested map[string]string
}

// Scalar builds a scalar mapping target.
func Scalar(field string) Target {
	return Target{Field: field}
}

// Sub builds a nested mapping target projecting one sub-key.
func Sub(subKey, field string) Target {
	return Target{Nested: map[string]string{subKey: field}}
}

// Mapping translates remote field names to local field targets. Remote keys
// absent from the mapping are remote-side-only metadata and are ignored by
// design.
type Mapping map[string]Target
