// Package webhooks receives change pings from the remote table service,
// verifies their signatures, and drains the incremental payload stream into
// local records using cached schema snapshots.
package webhooks
