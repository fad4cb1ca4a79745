// Package database manages the relational store connection for lead records.
//
// It wraps GORM with sane pool defaults and a silent logger (the zap logger
// owns all output). MySQL is the production driver; sqlite is supported for
// tests and local development.
//
// The inspector helpers (GetTableColumns, HasTable) are used as a startup
// preflight so a sync cycle never runs against a half-provisioned schema.
package database
