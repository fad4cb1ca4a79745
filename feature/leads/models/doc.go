// Package models defines the synchronized record variants, their field
// registries, and the remote-to-local field mappings shared by every sync
// path.
package models
