package docstore

import (
	"bufio"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Store drivers accepted by Open.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Options selects and configures a store backend.
type Options struct {
	Driver string

	// MySQL connection parameters.
	Host     string
	User     string
	Password string
	Database string

	// Path of the SQLite database file.
	Path string
}

// Open creates the store selected by the options. SQLite databases get their schema
// applied on open; MySQL schemas are managed by the migration command.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverMySQL:
		sqlDB, err := OpenMySQL(opts)
		if err != nil {
			return nil, err
		}
		store, err := NewSQLStore(sqlDB, "mysql")
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		return store, nil
	case DriverSQLite:
		sqlDB, err := OpenSQLite(opts.Path)
		if err != nil {
			return nil, err
		}
		script, err := Schema(DriverSQLite)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		if err := ApplySchema(ctx, sqlx.NewDb(sqlDB, "sqlite3"), strings.NewReader(script)); err != nil {
			sqlDB.Close()
			return nil, err
		}
		store, err := NewSQLStore(sqlDB, "sqlite3")
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

// OpenMySQL returns a MySQL database handle for the options. The connection reports
// matched rather than changed rows, which the store relies on to detect missing
// documents.
func OpenMySQL(opts Options) (*sql.DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = opts.User
	cfg.Passwd = opts.Password
	cfg.Net = "tcp"
	cfg.Addr = opts.Host
	cfg.DBName = opts.Database
	cfg.ClientFoundRows = true
	cfg.ParseTime = true
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("configuring mysql connection: %w", err)
	}
	return sql.OpenDB(connector), nil
}

// OpenSQLite opens the SQLite database file at path, or a private in-memory database if
// path is empty.
func OpenSQLite(path string) (*sql.DB, error) {
	// every connection of this handle shares the named database, other handles do not
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	if path != "" {
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer at a time
	sqlDB.SetMaxOpenConns(1)
	return sqlDB, nil
}

// Schema returns the embedded schema script of a driver.
func Schema(driver string) (string, error) {
	var name string
	switch driver {
	case DriverMySQL:
		name = "schema/mysql.sql"
	case DriverSQLite:
		name = "schema/sqlite.sql"
	default:
		return "", fmt.Errorf("no schema for store driver %q", driver)
	}
	b, err := schemaFS.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ApplySchema executes the statements of a SQL script. Statements end with a line that
// contains a semicolon.
func ApplySchema(ctx context.Context, db *sqlx.DB, script io.Reader) error {
	scanner := bufio.NewScanner(script)
	scanner.Split(bufio.ScanLines)
	builder := strings.Builder{}
	for scanner.Scan() {
		line := scanner.Text()
		builder.WriteString(line)
		builder.WriteString(" ")
		if strings.Contains(line, ";") {
			if _, err := db.ExecContext(ctx, builder.String()); err != nil {
				return classify("apply schema", err)
			}
			builder = strings.Builder{}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}
	if rest := strings.TrimSpace(builder.String()); rest != "" {
		if _, err := db.ExecContext(ctx, rest); err != nil {
			return classify("apply schema", err)
		}
	}
	return nil
}
