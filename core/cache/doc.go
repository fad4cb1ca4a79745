// Package cache wraps the shared Redis key-value store.
//
// Three concerns live here, all read-mostly:
//   - the user-identity name → id cache populated during classification and
//     consulted during remote push-back
//   - the per-table webhook schema snapshots (field id → field name)
//   - the notification queue drained at the end of each sync cycle
//
// Writers do not coordinate beyond SetIfNotExists; a lost update writing the
// same idempotent value twice is harmless.
package cache
