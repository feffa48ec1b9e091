package dbsql

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"slackclone/internal/common"
	"slackclone/internal/config"

	_ "github.com/lib/pq" // registers the "postgres" database/sql driver
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialector picks the gorm dialect for the configured driver. Postgres goes
// through lib/pq rather than pgx.
func Dialector(cnf *config.Config) (gorm.Dialector, error) {
	dsn := cnf.DSN()
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is not set")
	}

	switch cnf.Database.Driver {
	case "", "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.New(postgres.Config{DriverName: "postgres", DSN: dsn}), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cnf.Database.Driver)
	}
}

func LogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info", "debug":
		return logger.Info
	default:
		return logger.Warn
	}
}

// NewDatabase opens the configured database, applies pool settings and
// returns a cleanup that closes the pool.
func NewDatabase(cnf *config.Config) (*gorm.DB, func(), error) {
	dialector, err := Dialector(cnf)
	if err != nil {
		return nil, nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(LogLevel(cnf.Database.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("cannot connect to %s: %w", cnf.Database.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("sql.DB error: %w", err)
	}

	if isMemorySQLite(cnf) {
		// every pooled connection would otherwise get its own empty database
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cnf.Database.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cnf.Database.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	log.Printf("✅ Connected to %s successfully", cnf.Database.Driver)

	cleanup := func() {
		if err := sqlDB.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}
	return db, cleanup, nil
}

func isMemorySQLite(cnf *config.Config) bool {
	return cnf.Database.Driver == "sqlite" && strings.Contains(cnf.DSN(), ":memory:")
}

// MySQLTableOptions pins MySQL tables to a binary collation. Under the
// _general_ci and _unicode_ci defaults every supplementary-plane emoji
// compares equal and user ids compare case-insensitively, which would make
// distinct reactions collide on idx_reactions_message_user_emoji.
const MySQLTableOptions = "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin"

const mysqlCollation = "utf8mb4_bin"

// ForMigration returns db with the dialect's table options applied.
func ForMigration(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "mysql" {
		return db.Set("gorm:table_options", MySQLTableOptions)
	}
	return db
}

func Migrate(db *gorm.DB) error {
	if err := ForMigration(db).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if db.Dialector.Name() == "mysql" {
		return EnsureBinaryCollation(db, "reactions")
	}
	return nil
}

// EnsureBinaryCollation converts a table created before the binary collation
// was pinned.
func EnsureBinaryCollation(db *gorm.DB, table string) error {
	var collation string
	err := db.Raw("SELECT TABLE_COLLATION FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?", table).
		Scan(&collation).Error
	if err != nil {
		return fmt.Errorf("failed to read collation of %s: %w", table, err)
	}
	if collation == mysqlCollation {
		return nil
	}

	log.Printf("Converting %s from %s to %s", table, collation, mysqlCollation)
	if err := db.Exec(fmt.Sprintf("ALTER TABLE `%s` CONVERT TO CHARACTER SET utf8mb4 COLLATE %s", table, mysqlCollation)).Error; err != nil {
		return fmt.Errorf("failed to convert %s to %s: %w", table, mysqlCollation, err)
	}
	return nil
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("sql.DB error: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	return nil
}
