package mongodb

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
)

func indexModel(req storage.IndexRequest) mongo.IndexModel {
	keys := make(bson.D, 0, len(req.Keys))
	for _, k := range req.Keys {
		keys = append(keys, bson.E{Key: k.Field, Value: int32(k.Direction)})
	}
	opts := options.Index()
	if req.Name != "" {
		opts.SetName(req.Name)
	}
	// the server rejects a unique option on the _id index
	if !identifierOnly(req) {
		opts.SetUnique(req.Unique)
	}
	return mongo.IndexModel{Keys: keys, Options: opts}
}

func identifierOnly(req storage.IndexRequest) bool {
	return len(req.Keys) == 1 && req.Keys[0].Field == storage.IdentifierField
}

func indexModels(reqs []storage.IndexRequest) []mongo.IndexModel {
	out := make([]mongo.IndexModel, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, indexModel(r))
	}
	return out
}

type indexSummary struct {
	Name    string
	Columns []string
	Version int32
}

func listIndexes(ctx context.Context, coll *mongo.Collection) ([]indexSummary, error) {
	specs, err := coll.Indexes().ListSpecifications(ctx)
	if err != nil {
		return nil, dkerrors.Connect(err)
	}
	out := make([]indexSummary, 0, len(specs))
	for _, spec := range specs {
		columns, err := indexColumns(spec.KeysDocument)
		if err != nil {
			return nil, err
		}
		out = append(out, indexSummary{Name: spec.Name, Columns: columns, Version: spec.Version})
	}
	return out, nil
}

// indexColumns renders every key of an index as "field - ASC|DSC". Special
// index types such as "text" keep their type name.
func indexColumns(keys bson.Raw) ([]string, error) {
	elems, err := keys.Elements()
	if err != nil {
		return nil, dkerrors.Connect(err)
	}
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		out = append(out, fmt.Sprintf("%s - %s", e.Key(), keyDirection(e.Value())))
	}
	return out, nil
}

func keyDirection(v bson.RawValue) string {
	if s, ok := v.StringValueOK(); ok {
		return strings.ToUpper(s)
	}
	if rawNumber(v) > 0 {
		return "ASC"
	}
	return "DSC"
}

func indexTable(indexes []indexSummary) storage.TableDefinition {
	table := storage.TableDefinition{Title: "Indexes"}
	if len(indexes) == 0 {
		return table
	}

	var titles storage.TableRowDefinition
	titles.PushTitle("Name")
	titles.PushTitle("Columns")
	titles.PushTitle("Version")
	table.Rows = append(table.Rows, titles)

	for _, idx := range indexes {
		var row storage.TableRowDefinition
		row.Push(idx.Name)
		row.Push(strings.Join(idx.Columns, ", "))
		row.Push(fmt.Sprint(idx.Version))
		table.Rows = append(table.Rows, row)
	}
	return table
}
