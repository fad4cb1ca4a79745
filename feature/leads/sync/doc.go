// Package sync drives the reconciliation cycle: pull remote rows, classify
// them against the local snapshot, enrich behind a barrier, write local
// outcomes, push locally-discovered records, and report.
package sync
