package models

import (
	"time"
)

// FieldValues holds a record's domain fields keyed by registered field name.
// It is persisted as a single JSON column; the registry, not the schema,
// defines which keys are legal.
type FieldValues map[string]any

// Record is a local lead row, instantiated as one of the table variants
// (Projects, Proposals, Leads, DeclinedInvites).
//
// RemoteID is the remote system's identifier; unique when present but null
// for locally-discovered records awaiting remote creation. IdentityURL is the
// natural key joining local and remote records when RemoteID is absent or
// ambiguous; it is unique at all times.
type Record struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	ModifiedAt time.Time `gorm:"column:modified_at;index;autoUpdateTime" json:"modified_at"`

	RemoteID    *string `gorm:"column:remote_id;size:32;uniqueIndex" json:"remote_id"`
	IdentityURL string  `gorm:"column:identity_url;size:512;uniqueIndex;not null" json:"identity_url"`

	Keyword string `gorm:"size:100" json:"keyword"`

	Invalid   bool `gorm:"default:false" json:"invalid"`
	Removed   bool `gorm:"default:false" json:"removed"`
	Private   bool `gorm:"default:false" json:"private"`
	Enriched  bool `gorm:"default:false" json:"enriched"`
	Duplicate bool `gorm:"default:false" json:"duplicate"`

	RemovedDate *time.Time `gorm:"column:removed_date" json:"removed_date"`

	Fields FieldValues `gorm:"serializer:json" json:"fields"`
}

// Get returns the value of a domain field and whether it was ever set.
func (r *Record) Get(field string) (any, bool) {
	if r.Fields == nil {
		return nil, false
	}
	v, ok := r.Fields[field]
	return v, ok
}

// Set assigns a domain field value.
func (r *Record) Set(field string, value any) {
	if r.Fields == nil {
		r.Fields = make(FieldValues)
	}
	r.Fields[field] = value
}

// Snapshot renders the record's identity, flags, and fields for conflict
// logs. The surrogate primary key stays local and is never exposed remotely,
// but operators need it to find the row.
func (r *Record) Snapshot() map[string]any {
	snap := map[string]any{
		"id":           r.ID,
		"identity_url": r.IdentityURL,
		"invalid":      r.Invalid,
		"removed":      r.Removed,
		"private":      r.Private,
		"enriched":     r.Enriched,
	}
	if r.RemoteID != nil {
		snap["remote_id"] = *r.RemoteID
	}
	for field, value := range r.Fields {
		snap[field] = value
	}
	return snap
}

// Snapshot indexes the current local rows of one table by both join keys.
type Snapshot struct {
	ByIdentityURL map[string]*Record
	ByRemoteID    map[string]*Record
}

// Conflict is a persisted same-url-different-remote-id collision awaiting
// manual resolution. Ambiguous identity is never silently resolved; the row
// sits in this queue until an operator clears it.
type Conflict struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	TableRef    string `gorm:"column:table_ref;size:100;index" json:"table"`
	IdentityURL string `gorm:"column:identity_url;size:512" json:"identity_url"`
	RemoteID    string `gorm:"column:remote_id;size:32" json:"remote_id"`

	// OldSnapshot and NewSnapshot are JSON field dumps of the colliding
	// local record and the incoming remote record.
	OldSnapshot string `gorm:"type:text" json:"old_snapshot"`
	NewSnapshot string `gorm:"type:text" json:"new_snapshot"`

	Resolved bool `gorm:"default:false;index" json:"resolved"`
}

// TableName maps Conflict to its fixed table.
func (Conflict) TableName() string {
	return "sync_conflicts"
}
