// Package utils provides common utility functions for leadsync.
// It includes helper functions for type conversion and batch chunking that
// don't fit into domain-specific packages.
package utils
