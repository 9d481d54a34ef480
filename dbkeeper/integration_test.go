//go:build integration

package dbkeeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
)

func openMongo(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.Run(ctx, "mongo:7",
		testcontainers.WithExposedPorts("27017/tcp"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("27017/tcp").WithStartupTimeout(2*time.Minute)),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	uri, err := ctr.PortEndpoint(ctx, "27017/tcp", "mongodb")
	require.NoError(t, err)

	svc, err := Open(ctx, OpenOptions{Backend: storage.BackendMongoDB, URI: uri})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc
}

func TestMongoChainRoundTrip(t *testing.T) {
	svc := openMongo(t)
	ctx := context.Background()
	cq := storage.CollectionQuery{DataBase: "shop", Collection: "users"}

	_, err := svc.CollectionCreate(ctx, storage.GenerateCollectionQuery{DataBase: cq.DataBase, Collection: cq.Collection})
	require.NoError(t, err)

	inserted, err := svc.Insert(ctx, cq, `{"name": "ada"}`)
	require.NoError(t, err)
	chain := inserted.Chain()
	require.Regexp(t, `^_id=[0-9a-f]{24}$`, chain)

	doc, err := svc.FindByChain(ctx, cq, chain)
	require.NoError(t, err)
	assert.Equal(t, "ada", docName(t, doc))

	updated, err := svc.UpdateByChain(ctx, cq, chain, `{"name": "ada lovelace"}`)
	require.NoError(t, err)
	assert.Len(t, updated, 1)

	deleted, err := svc.DeleteByChain(ctx, cq, chain)
	require.NoError(t, err)
	assert.Len(t, deleted, 1)

	_, err = svc.FindByChain(ctx, cq, chain)
	assert.True(t, IsKind(err, ErrNotFound))
}
