package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetTableColumns(t *testing.T) {
	cfg := Config{
		Driver: "sqlite",
		Name:   ":memory:",
	}
	db, err := Connect(cfg)
	assert.NoError(t, err)
	assert.NotNil(t, db)

	err = db.Exec("CREATE TABLE proposals (id INTEGER PRIMARY KEY, identity_url TEXT, remote_id TEXT)").Error
	assert.NoError(t, err)

	columns, err := GetTableColumns(db, "proposals")
	assert.NoError(t, err)
	assert.Len(t, columns, 3)

	colMap := make(map[string]string)
	for _, col := range columns {
		colMap[col.Field] = col.Type
	}

	assert.Equal(t, "integer", colMap["id"])
	assert.Equal(t, "text", colMap["identity_url"])
	assert.Equal(t, "text", colMap["remote_id"])

	// PRAGMA table_info returns an empty result for a missing table.
	cols, err := GetTableColumns(db, "non_existent")
	assert.NoError(t, err)
	assert.Empty(t, cols)

	ok, err := HasTable(db, "proposals")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasTable(db, "non_existent")
	assert.NoError(t, err)
	assert.False(t, ok)
}
