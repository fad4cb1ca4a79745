// Package remote provides the client for the external spreadsheet-style
// table service that lead records are reconciled against.
//
// The Client interface is deliberately narrow: listing, batched create/update,
// base schema retrieval, and the change-webhook endpoints. The HTTP
// implementation rate-limits outbound requests and chunks batches to the
// service's per-request record cap.
//
// WithRetry wraps individual outbound calls with bounded fixed-backoff
// retries. Exhaustion escalates to the caller; a failed call is a hard failure
// for that record or cycle only, never process-wide.
package remote
