package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/iliyamo/task-manager/internal/config"
)

// Open connects to the configured SQL backend and verifies the connection.
func Open(cfg config.DBConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "", "mysql":
		return OpenMySQL(cfg.User, cfg.Pass, cfg.Host, cfg.Port, cfg.Name)
	case "sqlite3":
		return OpenSQLite(cfg.Path)
	default:
		return nil, errors.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

// OpenMySQL connects to MySQL and verifies the connection.
func OpenMySQL(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	// clientFoundRows=true -> RowsAffected counts matched rows, not changed ones
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	return db, ping(db)
}

// OpenSQLite opens (creating if needed) a SQLite database file. Foreign keys
// are switched on so deleting an account cascades to its tasks.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// one writer at a time; avoids SQLITE_BUSY under parallel requests
	db.SetMaxOpenConns(1)
	return db, ping(db)
}

// ping verifies the connection with a timeout and closes the pool on failure.
func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return errors.Wrap(err, "ping database")
	}
	return nil
}
