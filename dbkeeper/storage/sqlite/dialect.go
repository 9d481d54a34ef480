package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	msqlite "modernc.org/sqlite"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage/sqldoc"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage/sqlbuilder"
)

const (
	driverName = "sqlite"
	fileSuffix = ".db"
	pragmas    = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
)

var dataBaseNameRe = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

// patterns caches compiled regexp() arguments across connections.
var patterns sync.Map

func init() {
	msqlite.MustRegisterDeterministicScalarFunction("regexp", 2, regexpFunc)
}

// regexpFunc implements regexp(pattern, subject). NULL on either side is NULL.
func regexpFunc(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if args[0] == nil || args[1] == nil {
		return nil, nil
	}
	pattern := fmt.Sprint(args[0])
	var subject string
	switch v := args[1].(type) {
	case string:
		subject = v
	case []byte:
		subject = string(v)
	default:
		subject = fmt.Sprint(v)
	}

	var re *regexp.Regexp
	if cached, ok := patterns.Load(pattern); ok {
		re = cached.(*regexp.Regexp)
	} else {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		patterns.Store(pattern, compiled)
		re = compiled
	}
	return re.MatchString(subject), nil
}

// Dialect keeps every database in its own file under Dir. Collections are
// tables of that file.
type Dialect struct {
	Dir string

	mu     sync.Mutex
	dbs    map[string]*sql.DB
	logger *slog.Logger
}

var _ sqldoc.Dialect = (*Dialect)(nil)

func NewDialect(dir string, logger *slog.Logger) *Dialect {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialect{Dir: dir, dbs: make(map[string]*sql.DB), logger: logger}
}

// Open returns a repository over the database files under dir, creating
// the directory when missing.
func Open(dir string, logger *slog.Logger) (*sqldoc.Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, dkerrors.Connect(err)
	}
	return sqldoc.New(NewDialect(dir, logger), logger), nil
}

func (d *Dialect) Backend() storage.Backend { return storage.BackendSQLite }

func (d *Dialect) Style() sqlbuilder.PlaceholderStyle { return sqlbuilder.PlaceholderQuestion }

// jsonPath renders $."a"."b" as a string literal.
func jsonPath(path []string) string {
	var sb strings.Builder
	sb.WriteString("$")
	for _, p := range path {
		sb.WriteString(`."` + strings.ReplaceAll(p, `"`, "") + `"`)
	}
	return sqlbuilder.QuoteLiteral(sb.String())
}

func (d *Dialect) Extract(path []string) string {
	return "json_extract(doc, " + jsonPath(path) + ")"
}

func (d *Dialect) ExtractText(path []string) string {
	return "CAST(" + d.Extract(path) + " AS TEXT)"
}

var jsonTypes = map[sqldoc.JSONKind]string{
	sqldoc.KindString:  "= 'text'",
	sqldoc.KindNumber:  "IN ('integer', 'real')",
	sqldoc.KindBoolean: "IN ('true', 'false')",
}

func (d *Dialect) TypeCheck(path []string, kind sqldoc.JSONKind) string {
	return "json_type(doc, " + jsonPath(path) + ") " + jsonTypes[kind]
}

// Literal binds v. JSON booleans come out of json_extract as 0 and 1.
func (d *Dialect) Literal(b *sqlbuilder.Builder, v any) string {
	if x, ok := v.(bool); ok {
		if x {
			return b.Arg(int64(1))
		}
		return b.Arg(int64(0))
	}
	return b.Arg(v)
}

func (d *Dialect) Regex(b *sqlbuilder.Builder, subject, pattern string, insensitive bool) string {
	if insensitive {
		pattern = "(?i)" + pattern
	}
	return "regexp(" + b.Arg(pattern) + ", " + subject + ")"
}

func (d *Dialect) Page(limit, offset *int64) string {
	return sqldoc.PageClause(limit, offset, true)
}

func (d *Dialect) DocumentType() string { return "TEXT" }

func (d *Dialect) DocumentParam(b *sqlbuilder.Builder, doc string) string { return b.Arg(doc) }

func (d *Dialect) DocumentColumn() string { return "doc" }

func (d *Dialect) Table(_, collection string) string { return sqlbuilder.QuoteIdent(collection) }

func (d *Dialect) Index(_, name string) string { return sqlbuilder.QuoteIdent(name) }

func (d *Dialect) path(name string) (string, error) {
	if !dataBaseNameRe.MatchString(name) {
		return "", dkerrors.New(dkerrors.ErrValidation, fmt.Sprintf("invalid database name %q (must match %s)", name, dataBaseNameRe.String()))
	}
	return filepath.Join(d.Dir, name+fileSuffix), nil
}

// connect opens or reuses the pool for a database file. The file must
// exist unless create is set.
func (d *Dialect) connect(ctx context.Context, name string, create bool) (*sql.DB, error) {
	file, err := d.path(name)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if db, ok := d.dbs[name]; ok {
		return db, nil
	}
	if !create {
		if _, err := os.Stat(file); err != nil {
			return nil, dkerrors.NotFoundError(fmt.Sprintf("database %q not found", name))
		}
	}

	db, err := sql.Open(driverName, file+pragmas)
	if err != nil {
		return nil, dkerrors.Connect(err)
	}
	// One writer at a time; readers wait on the same connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, dkerrors.Connect(err)
	}
	d.dbs[name] = db
	d.logger.Debug("sqlite database opened", "database", name, "file", file)
	return db, nil
}

func (d *Dialect) DB(ctx context.Context, dataBase string) (*sql.DB, error) {
	return d.connect(ctx, dataBase, false)
}

func (d *Dialect) DataBases(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, dkerrors.Connect(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), fileSuffix))
	}
	slices.Sort(names)
	return names, nil
}

func (d *Dialect) CreateDataBase(ctx context.Context, name string) error {
	file, err := d.path(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(file); err == nil {
		return dkerrors.New(dkerrors.ErrValidation, fmt.Sprintf("database %q already exists", name))
	}
	db, err := d.connect(ctx, name, true)
	if err != nil {
		return err
	}
	// The file is only written once the schema changes.
	if _, err := db.ExecContext(ctx, "PRAGMA user_version = 1"); err != nil {
		return dkerrors.Connect(err)
	}
	return nil
}

func (d *Dialect) DropDataBase(ctx context.Context, name string) error {
	file, err := d.path(name)
	if err != nil {
		return err
	}

	d.mu.Lock()
	if db, ok := d.dbs[name]; ok {
		_ = db.Close()
		delete(d.dbs, name)
	}
	d.mu.Unlock()

	if err := os.Remove(file); err != nil {
		if os.IsNotExist(err) {
			return dkerrors.NotFoundError(fmt.Sprintf("database %q not found", name))
		}
		return dkerrors.Connect(err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(file + suffix)
	}
	return nil
}

func (d *Dialect) Tables(ctx context.Context, dataBase string) ([]string, error) {
	db, err := d.DB(ctx, dataBase)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, dkerrors.Connect(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, dkerrors.Connect(err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, dkerrors.Connect(err)
	}
	return out, nil
}

func (d *Dialect) Indexes(ctx context.Context, dataBase, collection string) ([]sqldoc.IndexInfo, error) {
	db, err := d.DB(ctx, dataBase)
	if err != nil {
		return nil, err
	}
	// Automatic indexes back the primary key and cannot be dropped.
	rows, err := db.QueryContext(ctx, `SELECT name, COALESCE(sql, '') FROM sqlite_master
		WHERE type = 'index' AND tbl_name = ? AND name NOT LIKE 'sqlite_autoindex_%' ORDER BY name`, collection)
	if err != nil {
		return nil, dkerrors.Connect(err)
	}
	defer rows.Close()

	var out []sqldoc.IndexInfo
	for rows.Next() {
		var info sqldoc.IndexInfo
		if err := rows.Scan(&info.Name, &info.Definition); err != nil {
			return nil, dkerrors.Connect(err)
		}
		info.Unique = strings.HasPrefix(strings.ToUpper(info.Definition), "CREATE UNIQUE")
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, dkerrors.Connect(err)
	}
	return out, nil
}

// TableSize sums the stored text of every row.
func (d *Dialect) TableSize(ctx context.Context, dataBase, collection string) (int64, error) {
	db, err := d.DB(ctx, dataBase)
	if err != nil {
		return 0, err
	}
	var size int64
	q := "SELECT COALESCE(SUM(length(id) + length(doc)), 0) FROM " + d.Table(dataBase, collection)
	if err := db.QueryRowContext(ctx, q).Scan(&size); err != nil {
		return 0, dkerrors.Connect(err)
	}
	return size, nil
}

func (d *Dialect) Server(ctx context.Context) ([]storage.TableDataGroup, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, dkerrors.Connect(err)
	}
	defer db.Close()

	var version string
	if err := db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return nil, dkerrors.Connect(err)
	}
	names, err := d.DataBases(ctx)
	if err != nil {
		return nil, err
	}

	general := storage.NewTableDataGroup(0, "general")
	general.Push("Version", version)
	general.Push("Directory", d.Dir)
	general.PushTyped("Databases", fmt.Sprint(len(names)), storage.JSONNumeric)
	return []storage.TableDataGroup{*general}, nil
}

func (d *Dialect) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var errs *multierror.Error
	for name, db := range d.dbs {
		if err := db.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
		delete(d.dbs, name)
	}
	return errs.ErrorOrNil()
}
