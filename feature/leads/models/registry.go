package models

// Kind is the declared type of a registered domain field.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
)

// FieldSpec declares one domain field of a record variant: its name, its
// kind, and its default-on-absent policy. The registry replaces runtime
// attribute probing; every ingestion path consults it instead.
type FieldSpec struct {
	Name       string
	Kind       Kind
	HasDefault bool
	Default    any
}

// Registry is the enumeration of domain fields for one record variant.
type Registry struct {
	specs map[string]FieldSpec
	order []string
}

// NewRegistry builds a registry from field specs. Order is preserved for
// deterministic encoding.
func NewRegistry(specs ...FieldSpec) *Registry {
	r := &Registry{specs: make(map[string]FieldSpec, len(specs))}
	for _, spec := range specs {
		if _, dup := r.specs[spec.Name]; dup {
			continue
		}
		r.specs[spec.Name] = spec
		r.order = append(r.order, spec.Name)
	}
	return r
}

// Lookup returns the spec for a field name.
func (r *Registry) Lookup(name string) (FieldSpec, bool) {
	spec, ok := r.specs[name]
	return spec, ok
}

// Has reports whether the field is part of this variant's attribute set.
func (r *Registry) Has(name string) bool {
	_, ok := r.specs[name]
	return ok
}

// DefaultFor returns the declared default for a field, if any. A field
// without a declared default reports false, which means an incoming null
// must never overwrite its current value.
func (r *Registry) DefaultFor(name string) (any, bool) {
	spec, ok := r.specs[name]
	if !ok || !spec.HasDefault {
		return nil, false
	}
	return spec.Default, true
}

// Fields returns the field names in declaration order.
func (r *Registry) Fields() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
