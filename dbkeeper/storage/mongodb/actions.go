package mongodb

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.mongodb.org/mongo-driver/mongo"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
)

func executeAction(ctx context.Context, coll *mongo.Collection, a storage.Action) (string, error) {
	switch a.Action {
	case storage.ActionIndexesNew:
		return createIndex(ctx, coll, a)
	case storage.ActionIndexesDelete:
		return dropIndexes(ctx, coll, a)
	default:
		return "", dkerrors.ActionError(storage.MsgActionUnknown)
	}
}

func createIndex(ctx context.Context, coll *mongo.Collection, a storage.Action) (string, error) {
	req, err := storage.ParseIndexRequest(a)
	if err != nil {
		return "", err
	}
	if _, err := coll.Indexes().CreateOne(ctx, indexModel(req)); err != nil {
		return "", dkerrors.Connect(err)
	}
	return storage.MsgIndexesCreated, nil
}

func dropIndexes(ctx context.Context, coll *mongo.Collection, a storage.Action) (string, error) {
	names, err := storage.ParseIndexDrop(a)
	if err != nil {
		return "", err
	}
	var failed *multierror.Error
	for _, name := range names {
		if _, err := coll.Indexes().DropOne(ctx, name); err != nil {
			failed = multierror.Append(failed, fmt.Errorf("%s: %w", name, err))
		}
	}
	return storage.DropMessage(len(names), failed), nil
}
