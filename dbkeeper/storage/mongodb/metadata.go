package mongodb

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
)

func rawNumber(v bson.RawValue) int64 {
	if n, ok := v.AsInt64OK(); ok {
		return n
	}
	if s, ok := v.StringValueOK(); ok {
		n, _ := strconv.ParseInt(s, 10, 64)
		return n
	}
	return 0
}

// rawText renders a scalar without Extended JSON decoration.
func rawText(v bson.RawValue) string {
	if v.IsZero() {
		return ""
	}
	if s, ok := v.StringValueOK(); ok {
		return s
	}
	if v.IsNumber() {
		if n, ok := v.AsInt64OK(); ok {
			return strconv.FormatInt(n, 10)
		}
	}
	if b, ok := v.BooleanOK(); ok {
		return strconv.FormatBool(b)
	}
	return v.String()
}

// serverGroups extracts the general, connection, global_lock and operation
// groups from a serverStatus reply.
func serverGroups(status bson.Raw, now time.Time) []storage.TableDataGroup {
	return []storage.TableDataGroup{
		generalGroup(status, now),
		connectionGroup(status),
		lockGroup(status),
		operationGroup(status),
	}
}

func generalGroup(status bson.Raw, now time.Time) storage.TableDataGroup {
	g := storage.NewTableDataGroup(0, "general")

	uptime := time.Duration(rawNumber(status.Lookup("uptimeMillis"))) * time.Millisecond
	started := now.Add(-uptime)
	hours := int64(uptime / time.Hour)
	minutes := int64(uptime/time.Minute) % 60
	seconds := int64(uptime/time.Second) % 60

	g.Push("Hostname", rawText(status.Lookup("host")))
	g.Push("Version", rawText(status.Lookup("version")))
	g.Push("Started", started.Format(time.RFC1123))
	g.Push("Uptime", fmt.Sprintf("%d:%d:%d", hours, minutes, seconds))
	return *g
}

func connectionGroup(status bson.Raw) storage.TableDataGroup {
	g := storage.NewTableDataGroup(1, "connection")
	conns, ok := status.Lookup("connections").DocumentOK()
	if !ok {
		return *g
	}
	g.PushTyped("Current", rawText(conns.Lookup("current")), storage.JSONNumeric)
	g.PushTyped("Available", rawText(conns.Lookup("available")), storage.JSONNumeric)
	g.PushTyped("Rejected", rawText(conns.Lookup("rejected")), storage.JSONNumeric)
	g.PushTyped("Active", rawText(conns.Lookup("active")), storage.JSONNumeric)
	return *g
}

func lockGroup(status bson.Raw) storage.TableDataGroup {
	g := storage.NewTableDataGroup(2, "global_lock")
	queue, ok := status.Lookup("globalLock", "currentQueue").DocumentOK()
	if !ok {
		return *g
	}
	active, ok := status.Lookup("globalLock", "activeClients").DocumentOK()
	if !ok {
		active = queue
	}
	g.PushTyped("Active Clients", rawText(active.Lookup("total")), storage.JSONNumeric)
	g.PushTyped("Queued Operations", rawText(queue.Lookup("total")), storage.JSONNumeric)
	g.PushTyped("Clients Reading", rawText(active.Lookup("readers")), storage.JSONNumeric)
	g.PushTyped("Clients Writing", rawText(active.Lookup("writers")), storage.JSONNumeric)
	g.PushTyped("Read Lock Queue", rawText(queue.Lookup("readers")), storage.JSONNumeric)
	g.PushTyped("Write Lock Queue", rawText(queue.Lookup("writers")), storage.JSONNumeric)
	return *g
}

func operationGroup(status bson.Raw) storage.TableDataGroup {
	g := storage.NewTableDataGroup(3, "operation")
	ops, ok := status.Lookup("opcounters").DocumentOK()
	if !ok {
		return *g
	}
	g.PushTyped("Total Inserts", rawText(ops.Lookup("insert")), storage.JSONNumeric)
	g.PushTyped("Total Queries", rawText(ops.Lookup("query")), storage.JSONNumeric)
	g.PushTyped("Total Updates", rawText(ops.Lookup("update")), storage.JSONNumeric)
	g.PushTyped("Total Deletes", rawText(ops.Lookup("delete")), storage.JSONNumeric)
	return *g
}

// collectionGroup sums collStats replies into one "collection" group.
func collectionGroup(stats []bson.Raw) *storage.TableDataGroup {
	var count, size, storageSize, avgObjSize, nindexes, indexSize, totalSize int64
	for _, s := range stats {
		count += rawNumber(s.Lookup("count"))
		size += rawNumber(s.Lookup("size"))
		storageSize += rawNumber(s.Lookup("storageSize"))
		avgObjSize += rawNumber(s.Lookup("avgObjSize"))
		nindexes += rawNumber(s.Lookup("nindexes"))
		indexSize += rawNumber(s.Lookup("totalIndexSize"))
		totalSize += rawNumber(s.Lookup("totalSize"))
	}

	g := storage.NewTableDataGroup(0, "collection")
	g.PushTyped("Documents", strconv.FormatInt(count, 10), storage.JSONNumeric)
	g.Push("Data size", bytesText(size))
	g.Push("Storage size", bytesText(storageSize))
	g.Push("Average Object size", bytesText(avgObjSize))
	g.PushTyped("Indexes Count", strconv.FormatInt(nindexes, 10), storage.JSONNumeric)
	g.Push("Index size", bytesText(indexSize))
	g.Push("Total Size", bytesText(totalSize))
	return g
}

func bytesText(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
