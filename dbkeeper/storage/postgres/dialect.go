package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage/sqldoc"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage/sqlbuilder"
)

var schemaNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Dialect maps databases onto schemas of one PostgreSQL database and stores
// documents as JSONB.
type Dialect struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ sqldoc.Dialect = (*Dialect)(nil)

// Connect opens a pool for dsn and checks that the server answers.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*Dialect, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, dkerrors.Wrap(dkerrors.ErrConfig, "invalid postgres dsn", err)
	}
	db := stdlib.OpenDB(*cfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, dkerrors.Connect(err)
	}
	logger.Debug("postgres connected", "host", cfg.Host, "database", cfg.Database)
	return &Dialect{db: db, logger: logger}, nil
}

// Open returns a repository over the schemas reachable through dsn.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*sqldoc.Repository, error) {
	d, err := Connect(ctx, dsn, logger)
	if err != nil {
		return nil, err
	}
	return sqldoc.New(d, logger), nil
}

func (d *Dialect) Backend() storage.Backend { return storage.BackendPostgres }

func (d *Dialect) Style() sqlbuilder.PlaceholderStyle { return sqlbuilder.PlaceholderDollar }

func pathArgs(path []string) string {
	parts := make([]string, 0, len(path))
	for _, p := range path {
		parts = append(parts, sqlbuilder.QuoteLiteral(p))
	}
	return strings.Join(parts, ", ")
}

func (d *Dialect) Extract(path []string) string {
	return "jsonb_extract_path(doc, " + pathArgs(path) + ")"
}

func (d *Dialect) ExtractText(path []string) string {
	return "jsonb_extract_path_text(doc, " + pathArgs(path) + ")"
}

// TypeCheck compares jsonb_typeof, whose names match JSONKind.
func (d *Dialect) TypeCheck(path []string, kind sqldoc.JSONKind) string {
	return "jsonb_typeof(" + d.Extract(path) + ") = " + sqlbuilder.QuoteLiteral(string(kind))
}

// Literal binds v as a JSONB value so it compares with Extract.
func (d *Dialect) Literal(b *sqlbuilder.Builder, v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		raw = []byte("null")
	}
	return b.Arg(string(raw)) + "::jsonb"
}

func (d *Dialect) Regex(b *sqlbuilder.Builder, subject, pattern string, insensitive bool) string {
	op := " ~ "
	if insensitive {
		op = " ~* "
	}
	return subject + op + b.Arg(pattern) + "::text"
}

func (d *Dialect) Page(limit, offset *int64) string {
	return sqldoc.PageClause(limit, offset, false)
}

func (d *Dialect) DocumentType() string { return "JSONB" }

func (d *Dialect) DocumentParam(b *sqlbuilder.Builder, doc string) string {
	return b.Arg(doc) + "::jsonb"
}

func (d *Dialect) DocumentColumn() string { return "doc::text" }

func (d *Dialect) Table(dataBase, collection string) string {
	return sqlbuilder.QuoteIdent(dataBase) + "." + sqlbuilder.QuoteIdent(collection)
}

func (d *Dialect) Index(dataBase, name string) string {
	return sqlbuilder.QuoteIdent(dataBase) + "." + sqlbuilder.QuoteIdent(name)
}

func validSchema(name string) error {
	if !schemaNameRe.MatchString(name) {
		return dkerrors.New(dkerrors.ErrValidation,
			fmt.Sprintf("invalid postgres schema name %q (must match %s)", name, schemaNameRe.String()))
	}
	return nil
}

func (d *Dialect) DB(ctx context.Context, dataBase string) (*sql.DB, error) {
	if err := validSchema(dataBase); err != nil {
		return nil, err
	}
	return d.db, nil
}

func (d *Dialect) names(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dkerrors.Connect(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, dkerrors.Connect(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, dkerrors.Connect(err)
	}
	return out, nil
}

func (d *Dialect) DataBases(ctx context.Context) ([]string, error) {
	return d.names(ctx, `SELECT nspname FROM pg_namespace
		WHERE nspname NOT LIKE 'pg\_%' AND nspname <> 'information_schema'
		ORDER BY nspname`)
}

func (d *Dialect) CreateDataBase(ctx context.Context, name string) error {
	if err := validSchema(name); err != nil {
		return err
	}
	if _, err := d.db.ExecContext(ctx, "CREATE SCHEMA "+sqlbuilder.QuoteIdent(name)); err != nil {
		return dkerrors.Connect(err)
	}
	return nil
}

func (d *Dialect) DropDataBase(ctx context.Context, name string) error {
	if err := validSchema(name); err != nil {
		return err
	}
	if _, err := d.db.ExecContext(ctx, "DROP SCHEMA "+sqlbuilder.QuoteIdent(name)+" CASCADE"); err != nil {
		return dkerrors.Connect(err)
	}
	return nil
}

func (d *Dialect) Tables(ctx context.Context, dataBase string) ([]string, error) {
	return d.names(ctx, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, dataBase)
}

func (d *Dialect) Indexes(ctx context.Context, dataBase, collection string) ([]sqldoc.IndexInfo, error) {
	// Primary keys are owned by their constraint and cannot be dropped.
	rows, err := d.db.QueryContext(ctx, `SELECT i.relname, pg_get_indexdef(i.oid), x.indisunique
		FROM pg_index x
		JOIN pg_class i ON i.oid = x.indexrelid
		JOIN pg_class t ON t.oid = x.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE n.nspname = $1 AND t.relname = $2 AND NOT x.indisprimary
		ORDER BY i.relname`, dataBase, collection)
	if err != nil {
		return nil, dkerrors.Connect(err)
	}
	defer rows.Close()

	var out []sqldoc.IndexInfo
	for rows.Next() {
		var info sqldoc.IndexInfo
		if err := rows.Scan(&info.Name, &info.Definition, &info.Unique); err != nil {
			return nil, dkerrors.Connect(err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, dkerrors.Connect(err)
	}
	return out, nil
}

func (d *Dialect) TableSize(ctx context.Context, dataBase, collection string) (int64, error) {
	var size int64
	err := d.db.QueryRowContext(ctx, "SELECT COALESCE(pg_total_relation_size(to_regclass($1)), 0)",
		d.Table(dataBase, collection)).Scan(&size)
	if err != nil {
		return 0, dkerrors.Connect(err)
	}
	return size, nil
}

func (d *Dialect) Server(ctx context.Context) ([]storage.TableDataGroup, error) {
	var (
		version, database, user string
		started                 time.Time
		current, maxConns       int64
	)
	err := d.db.QueryRowContext(ctx, `SELECT version(), current_database(), current_user,
		pg_postmaster_start_time(),
		(SELECT count(*) FROM pg_stat_activity),
		current_setting('max_connections')::bigint`).
		Scan(&version, &database, &user, &started, &current, &maxConns)
	if err != nil {
		return nil, dkerrors.Connect(err)
	}

	general := storage.NewTableDataGroup(0, "general")
	general.Push("Version", version)
	general.Push("Database", database)
	general.Push("User", user)
	general.Push("Started", started.UTC().Format(time.RFC1123))
	uptime := time.Since(started).Round(time.Second)
	general.Push("Uptime", uptime.String())

	connection := storage.NewTableDataGroup(1, "connection")
	connection.PushTyped("Current", fmt.Sprint(current), storage.JSONNumeric)
	connection.PushTyped("Available", fmt.Sprint(max(maxConns-current, 0)), storage.JSONNumeric)
	return []storage.TableDataGroup{*general, *connection}, nil
}

func (d *Dialect) Close() error {
	return d.db.Close()
}
