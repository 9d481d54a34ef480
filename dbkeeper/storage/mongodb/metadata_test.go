package mongodb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
)

func value(t *testing.T, g storage.TableDataGroup, name string) string {
	t.Helper()
	v, ok := g.Get(name)
	require.True(t, ok, "missing %s in %s", name, g.Name)
	return v
}

func TestServerGroups(t *testing.T) {
	status := marshal(t, bson.D{
		{Key: "host", Value: "mongo-1"},
		{Key: "version", Value: "7.0.4"},
		{Key: "uptimeMillis", Value: int64(3723000)},
		{Key: "connections", Value: bson.D{
			{Key: "current", Value: int32(5)},
			{Key: "available", Value: int32(100)},
			{Key: "rejected", Value: int32(0)},
			{Key: "active", Value: int32(2)},
		}},
		{Key: "globalLock", Value: bson.D{
			{Key: "currentQueue", Value: bson.D{{Key: "total", Value: int32(1)}, {Key: "readers", Value: int32(0)}, {Key: "writers", Value: int32(1)}}},
			{Key: "activeClients", Value: bson.D{{Key: "total", Value: int32(3)}, {Key: "readers", Value: int32(2)}, {Key: "writers", Value: int32(1)}}},
		}},
		{Key: "opcounters", Value: bson.D{
			{Key: "insert", Value: int64(10)},
			{Key: "query", Value: int64(20)},
			{Key: "update", Value: int64(30)},
			{Key: "delete", Value: int64(40)},
		}},
	})
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	groups := serverGroups(status, now)
	require.Len(t, groups, 4)
	assert.Equal(t, []string{"general", "connection", "global_lock", "operation"},
		[]string{groups[0].Name, groups[1].Name, groups[2].Name, groups[3].Name})

	assert.Equal(t, "mongo-1", value(t, groups[0], "Hostname"))
	assert.Equal(t, "7.0.4", value(t, groups[0], "Version"))
	assert.Equal(t, "1:2:3", value(t, groups[0], "Uptime"))
	assert.Equal(t, now.Add(-3723*time.Second).Format(time.RFC1123), value(t, groups[0], "Started"))

	assert.Equal(t, "5", value(t, groups[1], "Current"))
	assert.Equal(t, "3", value(t, groups[2], "Active Clients"))
	assert.Equal(t, "1", value(t, groups[2], "Queued Operations"))
	assert.Equal(t, "40", value(t, groups[3], "Total Deletes"))
}

func TestServerGroupsTolerateMissingSections(t *testing.T) {
	groups := serverGroups(marshal(t, bson.D{{Key: "host", Value: "h"}}), time.Now())
	require.Len(t, groups, 4)
	assert.Empty(t, groups[1].Fields)
	assert.Empty(t, groups[2].Fields)
	assert.Empty(t, groups[3].Fields)
}

func TestCollectionGroupSums(t *testing.T) {
	a := marshal(t, bson.D{{Key: "count", Value: int32(2)}, {Key: "size", Value: int32(1000)}, {Key: "nindexes", Value: int32(1)}})
	b := marshal(t, bson.D{{Key: "count", Value: int64(3)}, {Key: "size", Value: float64(1000)}, {Key: "nindexes", Value: int32(2)}})

	g := collectionGroup([]bson.Raw{a, b})
	assert.Equal(t, "collection", g.Name)
	assert.Equal(t, "5", value(t, *g, "Documents"))
	assert.Equal(t, "2.0 kB", value(t, *g, "Data size"))
	assert.Equal(t, "3", value(t, *g, "Indexes Count"))
	assert.Equal(t, "0 B", value(t, *g, "Index size"))
}

func TestRawText(t *testing.T) {
	raw := marshal(t, bson.D{{Key: "s", Value: "x"}, {Key: "n", Value: int32(4)}, {Key: "b", Value: true}})
	assert.Equal(t, "x", rawText(raw.Lookup("s")))
	assert.Equal(t, "4", rawText(raw.Lookup("n")))
	assert.Equal(t, "true", rawText(raw.Lookup("b")))
	assert.Equal(t, "", rawText(raw.Lookup("missing")))
}
