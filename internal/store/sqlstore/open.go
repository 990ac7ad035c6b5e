package sqlstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations
var migrations embed.FS

// backend describes how to open and migrate one database engine.
type backend struct {
	driver  string // database/sql driver name
	dialect dialect
	pool    func(*sql.DB)
	migrate func(*sql.DB) (database.Driver, error)
}

var postgresBackend = backend{
	driver:  "postgres",
	dialect: postgresDialect,
	pool: func(db *sql.DB) {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	},
	migrate: func(db *sql.DB) (database.Driver, error) {
		return postgres.WithInstance(db, &postgres.Config{})
	},
}

// SQLite has a single writer; one pooled connection also serializes ticks,
// since a transaction holds it for its whole run.
var sqliteBackend = backend{
	driver:  "sqlite3",
	dialect: sqliteDialect,
	pool: func(db *sql.DB) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	},
	migrate: func(db *sql.DB) (database.Driver, error) {
		return sqlite3.WithInstance(db, &sqlite3.Config{})
	},
}

// OpenPostgres connects to the PostgreSQL database at databaseURL and runs
// pending migrations.
func OpenPostgres(databaseURL string) (*SQLStore, error) {
	return open(postgresBackend, databaseURL)
}

// OpenSQLite opens, creating if needed, the SQLite database at path and
// runs pending migrations. Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLStore, error) {
	dsn := path + "?_foreign_keys=on&_busy_timeout=5000"
	if path != ":memory:" {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	return open(sqliteBackend, dsn)
}

func open(b backend, dsn string) (*SQLStore, error) {
	db, err := sql.Open(b.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", b.driver, err)
	}
	b.pool(db)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", b.driver, err)
	}
	if err := migrateUp(db, b); err != nil {
		db.Close()
		return nil, fmt.Errorf("run %s migrations: %w", b.driver, err)
	}
	return &SQLStore{db: db, dialect: b.dialect}, nil
}

// migrateUp applies the embedded migrations/<driver> scripts.
func migrateUp(db *sql.DB, b backend) error {
	dir, err := fs.Sub(migrations, "migrations/"+migrationDir(b.driver))
	if err != nil {
		return err
	}
	src, err := iofs.New(dir, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	target, err := b.migrate(db)
	if err != nil {
		return fmt.Errorf("migration target: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, b.driver, target)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func migrationDir(driver string) string {
	if driver == "sqlite3" {
		return "sqlite"
	}
	return driver
}
