package dbsql

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMySQLMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gormDB, mock
}

func TestForMigration_TableOptions(t *testing.T) {
	mysqlDB, _ := setupMySQLMock(t)
	opts, ok := ForMigration(mysqlDB).Get("gorm:table_options")
	require.True(t, ok)
	assert.Equal(t, MySQLTableOptions, opts)

	sqliteDB, cleanup, err := NewDatabase(sqliteConfig())
	require.NoError(t, err)
	defer cleanup()
	_, ok = ForMigration(sqliteDB).Get("gorm:table_options")
	assert.False(t, ok)
}

func TestForMigration_ReactionsTableIsBinaryCollated(t *testing.T) {
	db, mock := setupMySQLMock(t)

	mock.ExpectExec("CREATE TABLE `reactions` .*idx_reactions_message_user_emoji.*\\)\\s*ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, ForMigration(db).Migrator().CreateTable(&Reaction{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureBinaryCollation(t *testing.T) {
	collationQuery := regexp.QuoteMeta("SELECT TABLE_COLLATION FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?")
	alter := regexp.QuoteMeta("ALTER TABLE `reactions` CONVERT TO CHARACTER SET utf8mb4 COLLATE utf8mb4_bin")

	tests := []struct {
		name      string
		current   string
		wantAlter bool
	}{
		{name: "already binary", current: "utf8mb4_bin"},
		{name: "mysql 5.7 default", current: "utf8mb4_general_ci", wantAlter: true},
		{name: "mariadb default", current: "utf8mb4_unicode_ci", wantAlter: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMySQLMock(t)

			mock.ExpectQuery(collationQuery).
				WithArgs("reactions").
				WillReturnRows(sqlmock.NewRows([]string{"TABLE_COLLATION"}).AddRow(tt.current))
			if tt.wantAlter {
				mock.ExpectExec(alter).WillReturnResult(sqlmock.NewResult(0, 0))
			}

			require.NoError(t, EnsureBinaryCollation(db, "reactions"))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
