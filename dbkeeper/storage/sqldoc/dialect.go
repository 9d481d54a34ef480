package sqldoc

import (
	"context"
	"database/sql"

	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage/sqlbuilder"
)

// IndexInfo describes one index of a collection table.
type IndexInfo struct {
	Name       string
	Definition string
	Unique     bool
}

// JSONKind names a JSON scalar type for TypeCheck.
type JSONKind string

const (
	KindString  JSONKind = "string"
	KindNumber  JSONKind = "number"
	KindBoolean JSONKind = "boolean"
)

// Dialect supplies what differs between SQL engines storing one JSON
// document per row. Path segments given to the expression methods are
// inlined as quoted literals.
type Dialect interface {
	Backend() storage.Backend
	Style() sqlbuilder.PlaceholderStyle

	// Extract yields the JSON value at path, comparable with Literal.
	Extract(path []string) string
	// ExtractText yields the value at path as text.
	ExtractText(path []string) string
	// TypeCheck holds when the JSON value at path is of kind.
	TypeCheck(path []string, kind JSONKind) string
	Literal(b *sqlbuilder.Builder, v any) string
	Regex(b *sqlbuilder.Builder, subject, pattern string, insensitive bool) string
	Page(limit, offset *int64) string

	// DocumentType is the column type of the doc column.
	DocumentType() string
	// DocumentParam binds a JSON text for the doc column.
	DocumentParam(b *sqlbuilder.Builder, doc string) string
	// DocumentColumn selects the doc column as JSON text.
	DocumentColumn() string
	Table(dataBase, collection string) string
	Index(dataBase, name string) string

	DB(ctx context.Context, dataBase string) (*sql.DB, error)
	DataBases(ctx context.Context) ([]string, error)
	CreateDataBase(ctx context.Context, name string) error
	DropDataBase(ctx context.Context, name string) error
	Tables(ctx context.Context, dataBase string) ([]string, error)
	Indexes(ctx context.Context, dataBase, collection string) ([]IndexInfo, error)
	TableSize(ctx context.Context, dataBase, collection string) (int64, error)
	Server(ctx context.Context) ([]storage.TableDataGroup, error)
	Close() error
}
