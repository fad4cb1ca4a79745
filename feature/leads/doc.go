// Package leads is the reconciliation feature: it exposes the sync, refresh,
// and conflict endpoints and wires the cycle engine into the HTTP server.
package leads
