package sqldoc

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage/sqlbuilder"
)

const (
	statsConcurrency = 4
	// deleteBatch keeps DELETE ... IN lists under the bind-variable limits.
	deleteBatch = 1000
	msgSchemaComment = "If '_id' field is not defined it will be created with a UUID default value."
)

type queryAction int

const (
	actionFind queryAction = iota
	actionUpdate
	actionDelete
)

// Repository implements the repository contract over any Dialect. Every
// collection is a table of (id, doc) rows.
type Repository struct {
	d      Dialect
	logger *slog.Logger
}

var _ storage.Repository = (*Repository)(nil)

func New(d Dialect, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{d: d, logger: logger.With("backend", string(d.Backend()))}
}

func (r *Repository) Backend() storage.Backend { return r.d.Backend() }

func (r *Repository) Close(ctx context.Context) error {
	if err := r.d.Close(); err != nil {
		return dkerrors.Connect(err)
	}
	return nil
}

func (r *Repository) Status(ctx context.Context) error {
	_, err := r.d.DataBases(ctx)
	return err
}

func (r *Repository) Metadata(ctx context.Context) ([]storage.TableDataGroup, error) {
	return r.d.Server(ctx)
}

func (r *Repository) DataBaseFindAll(ctx context.Context) ([]string, error) {
	return r.d.DataBases(ctx)
}

func (r *Repository) DataBaseExists(ctx context.Context, q storage.DataBaseQuery) (bool, error) {
	names, err := r.d.DataBases(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(names, q.DataBase), nil
}

func (r *Repository) DataBaseCreate(ctx context.Context, q storage.GenerateDataBaseQuery) (string, error) {
	if err := r.d.CreateDataBase(ctx, q.DataBase); err != nil {
		return "", err
	}
	r.logger.Info("database created", "database", q.DataBase)
	return q.DataBase, nil
}

func (r *Repository) DataBaseDrop(ctx context.Context, q storage.GenerateDataBaseQuery) (string, error) {
	if err := r.d.DropDataBase(ctx, q.DataBase); err != nil {
		return "", err
	}
	r.logger.Info("database dropped", "database", q.DataBase)
	return q.DataBase, nil
}

type tableStats struct {
	rows int64
	size int64
}

func (r *Repository) stats(ctx context.Context, dataBase, collection string) (tableStats, error) {
	db, err := r.d.DB(ctx, dataBase)
	if err != nil {
		return tableStats{}, err
	}
	var s tableStats
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+r.d.Table(dataBase, collection)).Scan(&s.rows); err != nil {
		return tableStats{}, dkerrors.Connect(err)
	}
	if s.size, err = r.d.TableSize(ctx, dataBase, collection); err != nil {
		return tableStats{}, err
	}
	return s, nil
}

func statsGroup(all []tableStats) *storage.TableDataGroup {
	var rows, size int64
	for _, s := range all {
		rows += s.rows
		size += s.size
	}
	g := storage.NewTableDataGroup(0, "collection")
	g.PushTyped("Documents", strconv.FormatInt(rows, 10), storage.JSONNumeric)
	g.Push("Data size", humanize.Bytes(uint64(max(size, 0))))
	return g
}

func (r *Repository) DataBaseMetadata(ctx context.Context, q storage.DataBaseQuery) ([]storage.TableDataGroup, error) {
	tables, err := r.d.Tables(ctx, q.DataBase)
	if err != nil {
		return nil, err
	}

	all := make([]tableStats, len(tables))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statsConcurrency)
	for i, table := range tables {
		g.Go(func() error {
			s, err := r.stats(gctx, q.DataBase, table)
			if err != nil {
				return err
			}
			all[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	group := statsGroup(all)
	group.PushTyped("Collections", strconv.Itoa(len(tables)), storage.JSONNumeric)
	return []storage.TableDataGroup{*group}, nil
}

func (r *Repository) CollectionFindAll(ctx context.Context, q storage.DataBaseQuery) ([]string, error) {
	return r.d.Tables(ctx, q.DataBase)
}

func (r *Repository) CollectionExists(ctx context.Context, q storage.CollectionQuery) (bool, error) {
	tables, err := r.d.Tables(ctx, q.DataBase)
	if err != nil {
		return false, err
	}
	return slices.Contains(tables, q.Collection), nil
}

func (r *Repository) CollectionCreate(ctx context.Context, q storage.GenerateCollectionQuery) (string, error) {
	reqs, err := storage.IndexesFromFields(q.Fields)
	if err != nil {
		return "", err
	}
	db, err := r.d.DB(ctx, q.DataBase)
	if err != nil {
		return "", err
	}

	ddl := fmt.Sprintf("CREATE TABLE %s (id TEXT PRIMARY KEY, doc %s NOT NULL)",
		r.d.Table(q.DataBase, q.Collection), r.d.DocumentType())
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return "", dkerrors.Connect(err)
	}

	for _, req := range reqs {
		if err := r.createIndex(ctx, db, q.CollectionQuery(), req); err != nil {
			if _, dropErr := r.CollectionDrop(ctx, q); dropErr != nil {
				r.logger.Warn("cannot drop collection after index failure", "collection", q.Collection, "err", dropErr)
			}
			return "", err
		}
	}
	r.logger.Info("collection created", "database", q.DataBase, "collection", q.Collection, "indexes", len(reqs))
	return q.Collection, nil
}

func (r *Repository) CollectionDrop(ctx context.Context, q storage.GenerateCollectionQuery) (string, error) {
	db, err := r.d.DB(ctx, q.DataBase)
	if err != nil {
		return "", err
	}
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+r.d.Table(q.DataBase, q.Collection)); err != nil {
		return "", dkerrors.Connect(err)
	}
	return q.Collection, nil
}

func (r *Repository) CollectionRename(ctx context.Context, q storage.CollectionQuery, name string) (string, error) {
	db, err := r.d.DB(ctx, q.DataBase)
	if err != nil {
		return "", err
	}
	stmt := "ALTER TABLE " + r.d.Table(q.DataBase, q.Collection) + " RENAME TO " + sqlbuilder.QuoteIdent(name)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return "", dkerrors.Connect(err)
	}
	return name, nil
}

func (r *Repository) CollectionMetadata(ctx context.Context, q storage.CollectionQuery) ([]storage.TableDataGroup, error) {
	s, err := r.stats(ctx, q.DataBase, q.Collection)
	if err != nil {
		return nil, err
	}
	return []storage.TableDataGroup{*statsGroup([]tableStats{s})}, nil
}

func (r *Repository) CollectionInformation(ctx context.Context, q storage.CollectionQuery) ([]storage.TableDefinition, error) {
	indexes, err := r.d.Indexes(ctx, q.DataBase, q.Collection)
	if err != nil {
		return nil, err
	}
	table := storage.TableDefinition{Title: "Indexes"}
	if len(indexes) == 0 {
		return []storage.TableDefinition{table}, nil
	}
	var titles storage.TableRowDefinition
	titles.PushTitle("Name")
	titles.PushTitle("Definition")
	titles.PushTitle("Unique")
	table.Rows = append(table.Rows, titles)
	for _, idx := range indexes {
		var row storage.TableRowDefinition
		row.Push(idx.Name)
		row.Push(idx.Definition)
		row.Push(strconv.FormatBool(idx.Unique))
		table.Rows = append(table.Rows, row)
	}
	return []storage.TableDefinition{table}, nil
}

func (r *Repository) CollectionAcceptSchema(ctx context.Context) (storage.CollectionDefinition, error) {
	return storage.IndexedCollectionDefinition(), nil
}

func (r *Repository) CollectionExport(ctx context.Context, q storage.CollectionQuery) ([]storage.DocumentData, error) {
	data, err := r.FindAll(ctx, storage.NewDocumentQuery(q.DataBase, q.Collection))
	if err != nil {
		return nil, err
	}
	return data.Documents, nil
}

func (r *Repository) CollectionImport(ctx context.Context, q storage.CollectionQuery, documents []string) (string, error) {
	var errs *multierror.Error
	prepared := make([]storedDocument, 0, len(documents))
	for i, text := range documents {
		doc, err := parseDocument(text)
		if err == nil {
			var sd storedDocument
			if sd, err = prepare(doc, nil); err == nil {
				prepared = append(prepared, sd)
				continue
			}
		}
		errs = multierror.Append(errs, fmt.Errorf("document %d: %w", i, err))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return "", dkerrors.InvalidJSON(err)
	}
	if len(prepared) == 0 {
		return "", nil
	}

	err := r.inTx(ctx, q.DataBase, func(tx *sql.Tx) error {
		for _, sd := range prepared {
			if err := r.insertRow(ctx, tx, q, sd); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	r.logger.Info("collection imported", "database", q.DataBase, "collection", q.Collection, "documents", len(prepared))
	return fmt.Sprintf("%d documents imported.", len(prepared)), nil
}

func (r *Repository) CollectionActions(ctx context.Context, q storage.CollectionQuery) ([]storage.ActionDefinition, error) {
	indexes, err := r.d.Indexes(ctx, q.DataBase, q.Collection)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		names = append(names, idx.Name)
	}
	return storage.IndexActionDefinitions(names), nil
}

func (r *Repository) CollectionAction(ctx context.Context, q storage.CollectionQuery, code string) (*storage.ActionDefinition, error) {
	defs, err := r.CollectionActions(ctx, q)
	if err != nil {
		return nil, err
	}
	return storage.FindAction(defs, code), nil
}

func (r *Repository) CollectionExecuteAction(ctx context.Context, q storage.CollectionQuery, action storage.Action) (string, error) {
	var (
		msg string
		err error
	)
	switch action.Action {
	case storage.ActionIndexesNew:
		msg, err = r.newIndex(ctx, q, action)
	case storage.ActionIndexesDelete:
		msg, err = r.dropIndexes(ctx, q, action)
	default:
		return "", dkerrors.ActionError(storage.MsgActionUnknown)
	}
	if err != nil {
		return "", err
	}
	r.logger.Info("collection action", "collection", q.Collection, "action", action.Action, "result", msg)
	return msg, nil
}

func (r *Repository) newIndex(ctx context.Context, q storage.CollectionQuery, action storage.Action) (string, error) {
	req, err := storage.ParseIndexRequest(action)
	if err != nil {
		return "", err
	}
	if len(req.Keys) == 0 {
		return "", dkerrors.ActionError(storage.MsgFormDataNotFound)
	}
	db, err := r.d.DB(ctx, q.DataBase)
	if err != nil {
		return "", err
	}
	if err := r.createIndex(ctx, db, q, req); err != nil {
		return "", err
	}
	return storage.MsgIndexesCreated, nil
}

// IndexName derives the default name of an index: the collection followed
// by every field and direction.
func IndexName(collection string, req storage.IndexRequest) string {
	parts := []string{collection}
	for _, k := range req.Keys {
		parts = append(parts, strings.ReplaceAll(k.Field, ".", "_"), strconv.Itoa(k.Direction))
	}
	return strings.Join(parts, "_")
}

// IndexStatement renders CREATE INDEX for req. The identifier field maps
// to the id column, which is already the primary key when it stands alone.
func IndexStatement(d Dialect, q storage.CollectionQuery, req storage.IndexRequest) (string, bool) {
	if len(req.Keys) == 1 && req.Keys[0].Field == storage.IdentifierField {
		return "", false
	}
	name := req.Name
	if name == "" {
		name = IndexName(q.Collection, req)
	}
	cols := make([]string, 0, len(req.Keys))
	for _, k := range req.Keys {
		expr := "id"
		if k.Field != storage.IdentifierField {
			expr = "(" + d.Extract(strings.Split(k.Field, ".")) + ")"
		}
		dir := "ASC"
		if k.Direction < 0 {
			dir = "DESC"
		}
		cols = append(cols, expr+" "+dir)
	}
	unique := ""
	if req.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		unique, sqlbuilder.QuoteIdent(name), d.Table(q.DataBase, q.Collection), strings.Join(cols, ", ")), true
}

func (r *Repository) createIndex(ctx context.Context, db *sql.DB, q storage.CollectionQuery, req storage.IndexRequest) error {
	stmt, ok := IndexStatement(r.d, q, req)
	if !ok {
		return nil
	}
	r.logger.Debug("create index", "statement", stmt)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return dkerrors.Connect(err)
	}
	return nil
}

func (r *Repository) dropIndexes(ctx context.Context, q storage.CollectionQuery, action storage.Action) (string, error) {
	names, err := storage.ParseIndexDrop(action)
	if err != nil {
		return "", err
	}
	db, err := r.d.DB(ctx, q.DataBase)
	if err != nil {
		return "", err
	}
	var failed *multierror.Error
	for _, name := range names {
		if _, err := db.ExecContext(ctx, "DROP INDEX "+r.d.Index(q.DataBase, name)); err != nil {
			failed = multierror.Append(failed, fmt.Errorf("%s: %w", name, err))
		}
	}
	return storage.DropMessage(len(names), failed), nil
}

func (r *Repository) FilterSchema(ctx context.Context) (storage.FilterDefinition, error) {
	return storage.FilterDefinitionFor(false), nil
}

func (r *Repository) inTx(ctx context.Context, dataBase string, fn func(tx *sql.Tx) error) error {
	db, err := r.d.DB(ctx, dataBase)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return dkerrors.Connect(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return dkerrors.Connect(err)
	}
	return nil
}

func (r *Repository) insertRow(ctx context.Context, tx *sql.Tx, q storage.CollectionQuery, sd storedDocument) error {
	b := sqlbuilder.New(r.d.Style())
	stmt := "INSERT INTO " + r.d.Table(q.DataBase, q.Collection) +
		" (id, doc) VALUES (" + b.Arg(sd.id) + ", " + r.d.DocumentParam(b, sd.body) + ")"
	if _, err := tx.ExecContext(ctx, stmt, b.Args()...); err != nil {
		return dkerrors.Connect(err)
	}
	return nil
}

type row struct {
	id   string
	doc  bson.D
	data storage.DocumentData
}

// selectRows runs the translated pipeline of q and decodes every row.
func (r *Repository) selectRows(ctx context.Context, q storage.DocumentQuery) ([]row, error) {
	stages, err := storage.BuildPipeline(q)
	if err != nil {
		return nil, err
	}
	b := sqlbuilder.New(r.d.Style())
	plan, err := Translate(r.d, b, stages)
	if err != nil {
		return nil, err
	}
	db, err := r.d.DB(ctx, q.DataBase)
	if err != nil {
		return nil, err
	}

	stmt := "SELECT id, " + r.d.DocumentColumn() + " FROM " + r.d.Table(q.DataBase, q.Collection) +
		plan.WhereClause() + plan.OrderClause() + r.d.Page(plan.Limit, plan.Offset)
	r.logger.Debug("select", "database", q.DataBase, "collection", q.Collection, "sql", stmt)

	rs, err := db.QueryContext(ctx, stmt, b.Args()...)
	if err != nil {
		return nil, dkerrors.Connect(err)
	}
	defer rs.Close()

	var out []row
	for rs.Next() {
		var id, body string
		if err := rs.Scan(&id, &body); err != nil {
			return nil, dkerrors.Connect(err)
		}
		doc, err := parseDocument(body)
		if err != nil {
			return nil, err
		}
		data, err := documentData(q.DataBase, q.Collection, doc, body)
		if err != nil {
			return nil, err
		}
		out = append(out, row{id: id, doc: doc, data: data})
	}
	if err := rs.Err(); err != nil {
		return nil, dkerrors.Connect(err)
	}
	return out, nil
}

func (r *Repository) run(ctx context.Context, q storage.DocumentQuery, action queryAction, body string) (storage.CollectionData, error) {
	var replacement bson.D
	if action == actionUpdate {
		doc, err := parseDocument(body)
		if err != nil {
			return storage.CollectionData{}, err
		}
		replacement = doc
	}

	rows, err := r.selectRows(ctx, q)
	if err != nil {
		return storage.CollectionData{}, err
	}

	table := r.d.Table(q.DataBase, q.Collection)
	switch {
	case action == actionUpdate && len(rows) > 0:
		err = r.inTx(ctx, q.DataBase, func(tx *sql.Tx) error {
			for _, rw := range rows {
				original, _ := lookupIdentifier(rw.doc)
				sd, err := prepare(slices.Clone(replacement), original)
				if err != nil {
					return err
				}
				b := sqlbuilder.New(r.d.Style())
				stmt := "UPDATE " + table + " SET id = " + b.Arg(sd.id) + ", doc = " + r.d.DocumentParam(b, sd.body) +
					" WHERE id = " + b.Arg(rw.id)
				if _, err := tx.ExecContext(ctx, stmt, b.Args()...); err != nil {
					return dkerrors.Connect(err)
				}
			}
			return nil
		})
	case action == actionDelete && len(rows) > 0:
		err = r.inTx(ctx, q.DataBase, func(tx *sql.Tx) error {
			for batch := range slices.Chunk(rows, deleteBatch) {
				ids := make([]any, 0, len(batch))
				for _, rw := range batch {
					ids = append(ids, rw.id)
				}
				b := sqlbuilder.New(r.d.Style())
				if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE id IN "+b.List(ids), b.Args()...); err != nil {
					return dkerrors.Connect(err)
				}
			}
			return nil
		})
	}
	if err != nil {
		return storage.CollectionData{}, err
	}

	db, err := r.d.DB(ctx, q.DataBase)
	if err != nil {
		return storage.CollectionData{}, err
	}
	var total int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&total); err != nil {
		return storage.CollectionData{}, dkerrors.Connect(err)
	}

	documents := make([]storage.DocumentData, 0, len(rows))
	for _, rw := range rows {
		documents = append(documents, rw.data)
	}
	return storage.CollectionData{
		Total:     uint64(max(total, 0)),
		Limit:     q.Limit,
		Offset:    q.Skip,
		Documents: documents,
	}, nil
}

func (r *Repository) FindQuery(ctx context.Context, q storage.DocumentQuery) (storage.CollectionData, error) {
	return r.run(ctx, q, actionFind, "")
}

func (r *Repository) FindAll(ctx context.Context, q storage.DocumentQuery) (storage.CollectionData, error) {
	return r.FindQuery(ctx, q.WithoutFilter())
}

func (r *Repository) Find(ctx context.Context, q storage.DocumentQuery) (*storage.DocumentData, error) {
	data, err := r.FindQuery(ctx, q.WithoutPage().WithLimit(1))
	if err != nil {
		return nil, err
	}
	if len(data.Documents) == 0 {
		return nil, nil
	}
	doc := data.Documents[0]
	return &doc, nil
}

func (r *Repository) Schema(ctx context.Context, q storage.CollectionQuery) (storage.DocumentSchema, error) {
	return storage.DocumentSchema{Comments: []string{msgSchemaComment}, Fields: []storage.FieldData{}}, nil
}

func (r *Repository) Insert(ctx context.Context, q storage.CollectionQuery, document string) (storage.DocumentData, error) {
	doc, err := parseDocument(document)
	if err != nil {
		return storage.DocumentData{}, err
	}
	sd, err := prepare(doc, nil)
	if err != nil {
		return storage.DocumentData{}, err
	}
	if err := r.inTx(ctx, q.DataBase, func(tx *sql.Tx) error {
		return r.insertRow(ctx, tx, q, sd)
	}); err != nil {
		return storage.DocumentData{}, err
	}
	return documentData(q.DataBase, q.Collection, sd.doc, sd.body)
}

func (r *Repository) Update(ctx context.Context, q storage.DocumentQuery, document string) ([]storage.DocumentData, error) {
	data, err := r.run(ctx, q, actionUpdate, document)
	if err != nil {
		return nil, err
	}
	return data.Documents, nil
}

func (r *Repository) Delete(ctx context.Context, q storage.DocumentQuery) ([]storage.DocumentData, error) {
	data, err := r.run(ctx, q, actionDelete, "")
	if err != nil {
		return nil, err
	}
	return data.Documents, nil
}
