package postgres

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// prefixPlaceholder is replaced by the table prefix in every migration file
const prefixPlaceholder = "{{prefix}}"

// Migrate applies the embedded SQL migrations for the given table prefix.
// Each prefix keeps its own migration history table.
func Migrate(databaseURL, tablePrefix string, logger *slog.Logger) error {
	source, err := iofs.New(&prefixedFS{base: migrationsFS, prefix: tablePrefix}, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbURL, err := migrateURL(databaseURL, tablePrefix)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("migrations applied",
		"version", version,
		"dirty", dirty,
		"table_prefix", tablePrefix,
	)
	return nil
}

// migrateURL rewrites a postgres:// URL for the pgx5 migrate driver
func migrateURL(databaseURL, tablePrefix string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql", "pgx5":
	default:
		return "", fmt.Errorf("unsupported database url scheme %q", u.Scheme)
	}
	u.Scheme = "pgx5"

	q := u.Query()
	q.Set("x-migrations-table", tablePrefix+"schema_migrations")
	// pgx-only options are not understood by the migrate driver
	q.Del("default_query_exec_mode")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// prefixedFS serves migration files with the table prefix substituted
type prefixedFS struct {
	base   fs.FS
	prefix string
}

func (p *prefixedFS) Open(name string) (fs.File, error) {
	if !strings.HasSuffix(name, ".sql") {
		return p.base.Open(name)
	}

	raw, err := fs.ReadFile(p.base, name)
	if err != nil {
		return nil, err
	}
	f, err := p.base.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	f.Close()
	if err != nil {
		return nil, err
	}

	rendered := bytes.ReplaceAll(raw, []byte(prefixPlaceholder), []byte(p.prefix))
	return &renderedFile{Reader: bytes.NewReader(rendered), info: info}, nil
}

func (p *prefixedFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return fs.ReadDir(p.base, name)
}

type renderedFile struct {
	*bytes.Reader
	info fs.FileInfo
}

func (f *renderedFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *renderedFile) Close() error               { return nil }
