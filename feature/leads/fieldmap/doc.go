// Package fieldmap translates between remote field payloads and local field
// values, and builds minimal change sets with kind-aware comparison and
// default-on-null handling.
package fieldmap
