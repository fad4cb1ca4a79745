// Package store persists lead records and the identity-conflict queue,
// one relational table per record variant.
package store
