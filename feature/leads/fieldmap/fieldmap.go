package fieldmap

import (
	"strings"
	"time"

	"leadsync/core/utils"
	"leadsync/feature/leads/models"
)

// timeLayouts are tried in order when a remote value lands on a time field.
// The remote side sends either a bare date or a timestamp, sometimes with a
// fractional-second suffix that gets stripped first.
var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime converts a remote date or datetime string to time.Time.
func ParseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "Z")
	if dot := strings.IndexByte(raw, '.'); dot >= 0 {
		raw = raw[:dot]
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// isFalsy reports whether a nested compound value is absent-equivalent.
// Remote compound cells arrive as nil, empty map, or empty string when the
// cell was cleared.
func isFalsy(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	case bool:
		return !val
	case float64:
		return val == 0
	case int:
		return val == 0
	default:
		return false
	}
}

// Decode translates one remote record's fields to local field values using
// the table mapping. Scalar targets carry the remote value verbatim when the
// key is present; nested targets project sub-keys out of compound values and
// skip falsy compounds entirely. Remote keys absent from the mapping are
// ignored.
func Decode(mapping models.Mapping, remote map[string]any) models.FieldValues {
	out := make(models.FieldValues)
	for remoteField, target := range mapping {
		raw, present := remote[remoteField]
		if !present {
			continue
		}
		if target.Nested == nil {
			out[target.Field] = raw
			continue
		}
		if isFalsy(raw) {
			continue
		}
		compound, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		for subKey, local := range target.Nested {
			if sub, found := compound[subKey]; found {
				out[local] = sub
			}
		}
	}
	return out
}

// Encode translates local field values to a remote field payload using the
// table mapping. Nested targets emit a compound {subKey: value} object.
// Fields on the deny list are skipped by the caller, not here.
func Encode(table *models.Table, fields models.FieldValues) map[string]any {
	out := make(map[string]any)
	for remoteField, target := range table.Mapping {
		if target.Nested == nil {
			if v, ok := fields[target.Field]; ok {
				out[remoteField] = v
			}
			continue
		}
		compound := make(map[string]any)
		for subKey, local := range target.Nested {
			if v, ok := fields[local]; ok && v != nil {
				compound[subKey] = v
			}
		}
		if len(compound) > 0 {
			out[remoteField] = compound
		}
	}
	return out
}

// DiffRemote keeps only the encoded push values that differ from the remote
// row's current fields. Nested compound cells are excluded here; the owner
// cell has its own push path. Comparison is kind-aware so a remote 42.0
// never re-sends a local 42.
func DiffRemote(table *models.Table, encoded, remoteFields map[string]any) map[string]any {
	out := make(map[string]any)
	for remoteField, value := range encoded {
		target, mapped := table.Mapping[remoteField]
		if mapped && target.Nested != nil {
			continue
		}
		kind := models.KindString
		if mapped {
			if spec, known := table.Registry.Lookup(target.Field); known {
				kind = spec.Kind
			}
		}
		if current, ok := remoteFields[remoteField]; ok && equal(kind, current, value) {
			continue
		}
		out[remoteField] = value
	}
	return out
}

// equal compares an incoming value against the current one under the field's
// declared kind, so that a remote 42.0 does not register as a change against
// a local 42.
func equal(kind models.Kind, current, incoming any) bool {
	if current == nil || incoming == nil {
		return current == nil && incoming == nil
	}
	switch kind {
	case models.KindInt:
		return utils.ToInt(current) == utils.ToInt(incoming)
	case models.KindFloat:
		return utils.ToFloat(current) == utils.ToFloat(incoming)
	case models.KindBool:
		return utils.ToBool(current) == utils.ToBool(incoming)
	case models.KindTime:
		ct, cok := coerceTime(current)
		it, iok := coerceTime(incoming)
		if !cok || !iok {
			return utils.ToString(current) == utils.ToString(incoming)
		}
		return ct.Equal(it)
	default:
		return utils.ToString(current) == utils.ToString(incoming)
	}
}

func coerceTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		return ParseTime(t)
	default:
		return time.Time{}, false
	}
}

// normalize converts an incoming raw value to the field's declared kind.
func normalize(kind models.Kind, raw any) any {
	if raw == nil {
		return nil
	}
	switch kind {
	case models.KindInt:
		return utils.ToInt(raw)
	case models.KindFloat:
		return utils.ToFloat(raw)
	case models.KindBool:
		return utils.ToBool(raw)
	case models.KindTime:
		if t, ok := coerceTime(raw); ok {
			return t
		}
		return nil
	default:
		return utils.ToString(raw)
	}
}

// ApplyChanges folds incoming field values into a record and returns the set
// of fields that actually changed.
//
// The null rules come first: a null incoming value on a field with a declared
// default is replaced by that default before comparison, while a null on a
// field without one never overwrites the current value. Unknown field names
// are tolerated and skipped. Comparison is kind-aware, so cross-type numeric
// noise from JSON decoding does not produce spurious changes.
func ApplyChanges(registry *models.Registry, record *models.Record, incoming models.FieldValues) (map[string]struct{}, bool) {
	changed := make(map[string]struct{})
	for field, raw := range incoming {
		spec, known := registry.Lookup(field)
		if !known {
			continue
		}
		if raw == nil {
			def, ok := registry.DefaultFor(field)
			if !ok {
				continue
			}
			raw = def
		}
		value := normalize(spec.Kind, raw)
		if value == nil {
			continue
		}
		current, set := record.Get(field)
		if set && equal(spec.Kind, current, value) {
			continue
		}
		record.Set(field, value)
		changed[field] = struct{}{}
	}
	return changed, len(changed) > 0
}
