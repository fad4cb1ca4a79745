// Package identity caches the display-name to remote-user-id associations
// observed in pulled owner cells, so pushes can rebuild compound owner
// payloads by id.
package identity
