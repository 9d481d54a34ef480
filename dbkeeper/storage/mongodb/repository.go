package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/sync/errgroup"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
)

const (
	adminDataBase        = "admin"
	tempCollectionPrefix = "TEMP_"
	statsConcurrency     = 4

	msgSchemaComment = "If '_id' field is not defined it will be created with an ObjectId default value."
)

type queryAction int

const (
	actionFind queryAction = iota
	actionUpdate
	actionDelete
)

// Repository binds the repository contract to a MongoDB deployment.
type Repository struct {
	client *mongo.Client
	logger *slog.Logger
}

var _ storage.Repository = (*Repository)(nil)

// Open connects to uri and pings the primary.
func Open(ctx context.Context, uri string, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, dkerrors.Connect(err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, dkerrors.Connect(err)
	}
	return &Repository{client: client, logger: logger.With("backend", string(storage.BackendMongoDB))}, nil
}

func (r *Repository) Backend() storage.Backend { return storage.BackendMongoDB }

func (r *Repository) collection(dataBase, collection string) *mongo.Collection {
	return r.client.Database(dataBase).Collection(collection)
}

func (r *Repository) Close(ctx context.Context) error {
	if err := r.client.Disconnect(ctx); err != nil {
		return dkerrors.Connect(err)
	}
	return nil
}

func (r *Repository) Status(ctx context.Context) error {
	_, err := r.DataBaseFindAll(ctx)
	return err
}

func (r *Repository) Metadata(ctx context.Context) ([]storage.TableDataGroup, error) {
	status, err := r.client.Database(adminDataBase).RunCommand(ctx, bson.D{{Key: "serverStatus", Value: 1}}).Raw()
	if err != nil {
		return nil, dkerrors.Connect(err)
	}
	return serverGroups(status, time.Now()), nil
}

func (r *Repository) DataBaseFindAll(ctx context.Context) ([]string, error) {
	names, err := r.client.ListDatabaseNames(ctx, bson.D{})
	if err != nil {
		return nil, dkerrors.Connect(err)
	}
	return names, nil
}

func (r *Repository) DataBaseExists(ctx context.Context, q storage.DataBaseQuery) (bool, error) {
	names, err := r.DataBaseFindAll(ctx)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if name == q.DataBase {
			return true, nil
		}
	}
	return false, nil
}

// DataBaseCreate materialises a database by creating a placeholder
// collection in it; MongoDB has no explicit database creation.
func (r *Repository) DataBaseCreate(ctx context.Context, q storage.GenerateDataBaseQuery) (string, error) {
	for {
		temp := storage.CollectionQuery{DataBase: q.DataBase, Collection: tempCollectionPrefix + uuid.NewString()}
		exists, err := r.CollectionExists(ctx, temp)
		if err != nil {
			return "", err
		}
		if exists {
			continue
		}
		if _, err := r.CollectionCreate(ctx, temp.Generate()); err != nil {
			return "", err
		}
		r.logger.Info("database created", "database", q.DataBase, "placeholder", temp.Collection)
		return q.DataBase, nil
	}
}

func (r *Repository) DataBaseDrop(ctx context.Context, q storage.GenerateDataBaseQuery) (string, error) {
	if err := r.client.Database(q.DataBase).Drop(ctx); err != nil {
		return "", dkerrors.Connect(err)
	}
	r.logger.Info("database dropped", "database", q.DataBase)
	return q.DataBase, nil
}

func (r *Repository) collStats(ctx context.Context, dataBase, collection string) (bson.Raw, error) {
	stats, err := r.client.Database(dataBase).RunCommand(ctx, bson.D{{Key: "collStats", Value: collection}}).Raw()
	if err != nil {
		return nil, dkerrors.Connect(err)
	}
	return stats, nil
}

func (r *Repository) DataBaseMetadata(ctx context.Context, q storage.DataBaseQuery) ([]storage.TableDataGroup, error) {
	collections, err := r.CollectionFindAll(ctx, q)
	if err != nil {
		return nil, err
	}

	stats := make([]bson.Raw, len(collections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statsConcurrency)
	for i, name := range collections {
		g.Go(func() error {
			s, err := r.collStats(gctx, q.DataBase, name)
			if err != nil {
				return err
			}
			stats[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	group := collectionGroup(stats)
	group.PushTyped("Collections", fmt.Sprint(len(collections)), storage.JSONNumeric)
	return []storage.TableDataGroup{*group}, nil
}

func (r *Repository) CollectionFindAll(ctx context.Context, q storage.DataBaseQuery) ([]string, error) {
	names, err := r.client.Database(q.DataBase).ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, dkerrors.Connect(err)
	}
	return names, nil
}

func (r *Repository) CollectionExists(ctx context.Context, q storage.CollectionQuery) (bool, error) {
	names, err := r.client.Database(q.DataBase).ListCollectionNames(ctx, bson.D{{Key: "name", Value: q.Collection}})
	if err != nil {
		return false, dkerrors.Connect(err)
	}
	return len(names) > 0, nil
}

func (r *Repository) CollectionCreate(ctx context.Context, q storage.GenerateCollectionQuery) (string, error) {
	reqs, err := storage.IndexesFromFields(q.Fields)
	if err != nil {
		return "", err
	}

	db := r.client.Database(q.DataBase)
	if err := db.CreateCollection(ctx, q.Collection); err != nil {
		return "", dkerrors.Connect(err)
	}

	if len(reqs) > 0 {
		if _, err := db.Collection(q.Collection).Indexes().CreateMany(ctx, indexModels(reqs)); err != nil {
			if _, dropErr := r.CollectionDrop(ctx, q); dropErr != nil {
				r.logger.Warn("cannot drop collection after index failure", "collection", q.Collection, "err", dropErr)
			}
			return "", dkerrors.Connect(err)
		}
	}
	r.logger.Info("collection created", "database", q.DataBase, "collection", q.Collection, "indexes", len(reqs))
	return q.Collection, nil
}

func (r *Repository) CollectionDrop(ctx context.Context, q storage.GenerateCollectionQuery) (string, error) {
	if err := r.collection(q.DataBase, q.Collection).Drop(ctx); err != nil {
		return "", dkerrors.Connect(err)
	}
	return q.Collection, nil
}

func (r *Repository) CollectionRename(ctx context.Context, q storage.CollectionQuery, name string) (string, error) {
	cmd := bson.D{
		{Key: "renameCollection", Value: q.DataBase + "." + q.Collection},
		{Key: "to", Value: q.DataBase + "." + name},
	}
	if err := r.client.Database(adminDataBase).RunCommand(ctx, cmd).Err(); err != nil {
		return "", dkerrors.Connect(err)
	}
	return name, nil
}

func (r *Repository) CollectionMetadata(ctx context.Context, q storage.CollectionQuery) ([]storage.TableDataGroup, error) {
	stats, err := r.collStats(ctx, q.DataBase, q.Collection)
	if err != nil {
		return nil, err
	}
	return []storage.TableDataGroup{*collectionGroup([]bson.Raw{stats})}, nil
}

func (r *Repository) CollectionInformation(ctx context.Context, q storage.CollectionQuery) ([]storage.TableDefinition, error) {
	indexes, err := listIndexes(ctx, r.collection(q.DataBase, q.Collection))
	if err != nil {
		return nil, err
	}
	return []storage.TableDefinition{indexTable(indexes)}, nil
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

// CollectionImport parses every document before inserting any of them.
func (r *Repository) CollectionImport(ctx context.Context, q storage.CollectionQuery, documents []string) (string, error) {
	var errs *multierror.Error
	parsed := make([]any, 0, len(documents))
	for i, raw := range documents {
		doc, err := parseDocument(raw)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("document %d: %w", i, err))
			continue
		}
		parsed = append(parsed, doc)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return "", dkerrors.InvalidJSON(err)
	}
	if len(parsed) == 0 {
		return "", nil
	}

	if _, err := r.collection(q.DataBase, q.Collection).InsertMany(ctx, parsed); err != nil {
		return "", dkerrors.Connect(err)
	}
	r.logger.Info("collection imported", "database", q.DataBase, "collection", q.Collection, "documents", len(parsed))
	return fmt.Sprintf("%d documents imported.", len(parsed)), nil
}

func (r *Repository) CollectionActions(ctx context.Context, q storage.CollectionQuery) ([]storage.ActionDefinition, error) {
	indexes, err := listIndexes(ctx, r.collection(q.DataBase, q.Collection))
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
	msg, err := executeAction(ctx, r.collection(q.DataBase, q.Collection), action)
	if err != nil {
		return "", err
	}
	r.logger.Info("collection action", "collection", q.Collection, "action", action.Action, "result", msg)
	return msg, nil
}

func (r *Repository) FilterSchema(ctx context.Context) (storage.FilterDefinition, error) {
	return storage.FilterDefinitionFor(true), nil
}

func (r *Repository) cursor(ctx context.Context, q storage.DocumentQuery) (*mongo.Cursor, error) {
	stages, err := storage.BuildPipeline(q)
	if err != nil {
		return nil, err
	}
	pipeline := mongo.Pipeline(stages)
	if pipeline == nil {
		pipeline = mongo.Pipeline{}
	}
	r.logger.Debug("aggregate", "database", q.DataBase, "collection", q.Collection, "stages", len(pipeline))

	cur, err := r.collection(q.DataBase, q.Collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, dkerrors.Connect(err)
	}
	return cur, nil
}

// run walks the documents selected by q. Updates replace every match with
// body; deletes remove all matches in one call after the walk.
func (r *Repository) run(ctx context.Context, q storage.DocumentQuery, action queryAction, body string) (storage.CollectionData, error) {
	var replacement bson.D
	if action == actionUpdate {
		doc, err := parseDocument(body)
		if err != nil {
			return storage.CollectionData{}, err
		}
		replacement = doc
	}

	coll := r.collection(q.DataBase, q.Collection)
	cur, err := r.cursor(ctx, q)
	if err != nil {
		return storage.CollectionData{}, err
	}
	defer cur.Close(ctx)

	var documents []storage.DocumentData
	var ids bson.A
	for cur.Next(ctx) {
		// Current is only valid until the next call to Next.
		raw := bson.Raw(append([]byte(nil), cur.Current...))
		data, err := documentData(q.DataBase, q.Collection, raw)
		if err != nil {
			return storage.CollectionData{}, err
		}
		documents = append(documents, data)

		id := raw.Lookup(storage.IdentifierField)
		ids = append(ids, id)

		if action == actionUpdate {
			filter := bson.D{{Key: storage.IdentifierField, Value: id}}
			if _, err := coll.ReplaceOne(ctx, filter, replacement); err != nil {
				return storage.CollectionData{}, dkerrors.Connect(err)
			}
		}
	}
	if err := cur.Err(); err != nil {
		return storage.CollectionData{}, dkerrors.Connect(err)
	}

	if action == actionDelete && len(ids) > 0 {
		filter := bson.D{{Key: storage.IdentifierField, Value: bson.D{{Key: "$in", Value: ids}}}}
		if _, err := coll.DeleteMany(ctx, filter); err != nil {
			return storage.CollectionData{}, dkerrors.Connect(err)
		}
	}

	total, err := coll.EstimatedDocumentCount(ctx)
	if err != nil {
		return storage.CollectionData{}, dkerrors.Connect(err)
	}
	if total < 0 {
		total = 0
	}
	return storage.CollectionData{
		Total:     uint64(total),
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
	res, err := r.collection(q.DataBase, q.Collection).InsertOne(ctx, doc)
	if err != nil {
		return storage.DocumentData{}, dkerrors.Wrap(dkerrors.ErrConnect, "could not insert into database", err)
	}

	raw, err := bson.Marshal(withIdentifier(doc, res.InsertedID))
	if err != nil {
		return storage.DocumentData{}, dkerrors.Connect(err)
	}
	return documentData(q.DataBase, q.Collection, raw)
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
