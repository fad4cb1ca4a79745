// Package resolve classifies pulled remote batches against local snapshots:
// creations, updates, detachments, enrichment scheduling, and identity
// conflicts, strictly in batch order.
package resolve
