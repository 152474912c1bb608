package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/cryptox"
	"github.com/dmitrijs2005/gophchat/internal/dbx"
	"github.com/dmitrijs2005/gophchat/internal/server/migrations"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

// Dialect carries the driver-specific pieces of SQLStore.
type Dialect struct {
	Driver        string
	GooseDialect  string
	MigrationsDir string

	existsQuery string
	getQuery    string
	insertQuery string
}

var Postgres = Dialect{
	Driver:        "pgx",
	GooseDialect:  "pgx",
	MigrationsDir: migrations.PostgresDir,

	existsQuery: `SELECT 1 FROM users WHERE username = $1`,
	getQuery:    `SELECT salt, verifier FROM users WHERE username = $1`,
	insertQuery: `INSERT INTO users (id, username, salt, verifier) VALUES ($1, $2, $3, $4)`,
}

var SQLite = Dialect{
	Driver:        "sqlite3",
	GooseDialect:  "sqlite3",
	MigrationsDir: migrations.SQLiteDir,

	existsQuery: `SELECT 1 FROM users WHERE username = ?`,
	getQuery:    `SELECT salt, verifier FROM users WHERE username = ?`,
	insertQuery: `INSERT INTO users (id, username, salt, verifier) VALUES (?, ?, ?, ?)`,
}

// gooseUpContext is replaced in tests.
var gooseUpContext = goose.UpContext

// SQLStore keeps salted argon2id verifiers in a users table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(db *sql.DB, d Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: d}
}

func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	return openSQL(ctx, Postgres, dsn)
}

func OpenSQLite(ctx context.Context, dsn string) (*SQLStore, error) {
	return openSQL(ctx, SQLite, dsn)
}

func openSQL(ctx context.Context, d Dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	s := NewSQLStore(db, d)
	if err := s.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return s, nil
}

func (s *SQLStore) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(s.dialect.GooseDialect); err != nil {
		return err
	}
	return gooseUpContext(ctx, s.db, s.dialect.MigrationsDir)
}

func (s *SQLStore) Exists(ctx context.Context, username string) (bool, error) {
	ok, err := dbx.Exists(ctx, s.db, s.dialect.existsQuery, username)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (s *SQLStore) Verify(ctx context.Context, username, password string) (bool, error) {
	var salt, verifier []byte
	err := s.db.QueryRowContext(ctx, s.dialect.getQuery, username).Scan(&salt, &verifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return cryptox.CheckPassword(password, salt, verifier), nil
}

func (s *SQLStore) Create(ctx context.Context, username, password string) error {
	if err := Validate(username); err != nil {
		return err
	}
	if err := Validate(password); err != nil {
		return err
	}

	salt, err := cryptox.NewSalt()
	if err != nil {
		return fmt.Errorf("salt: %w", err)
	}
	verifier := cryptox.HashPassword(password, salt)

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		taken, err := dbx.Exists(ctx, tx, s.dialect.existsQuery, username)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if taken {
			return common.ErrAlreadyExists
		}

		if _, err := tx.ExecContext(ctx, s.dialect.insertQuery, uuid.NewString(), username, salt, verifier); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
