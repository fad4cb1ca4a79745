package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db, mock
}

func TestGetTableColumnsMySQL(t *testing.T) {
	db, mock := setupMockDB(t)

	rows := sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}).
		AddRow("ID", "INT", "NO", "PRI", nil, "auto_increment").
		AddRow("Identity_URL", "VARCHAR(512)", "NO", "UNI", nil, "").
		AddRow("Remote_ID", "VARCHAR(32)", "YES", "UNI", nil, "")
	mock.ExpectQuery("SHOW COLUMNS FROM `proposals`").WillReturnRows(rows)

	columns, err := GetTableColumns(db, "proposals")
	require.NoError(t, err)
	require.Len(t, columns, 3)

	// Field names and types are normalized to lower case.
	assert.Equal(t, "id", columns[0].Field)
	assert.Equal(t, "int", columns[0].Type)
	assert.Equal(t, "identity_url", columns[1].Field)
	assert.Equal(t, "varchar(512)", columns[1].Type)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasTableMySQL(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery("SHOW COLUMNS FROM `proposals`").
		WillReturnRows(sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}).
			AddRow("id", "int", "NO", "PRI", nil, ""))

	ok, err := HasTable(db, "proposals")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
