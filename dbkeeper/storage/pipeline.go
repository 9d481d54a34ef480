package storage

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/nonibytes/dbkeeper/dbkeeper/planner"
)

// BuildPipeline compiles the query filter and appends paging as separate
// $skip and $limit stages.
func BuildPipeline(q DocumentQuery) ([]bson.D, error) {
	var stages []bson.D
	if q.Filter != nil {
		compiled, err := planner.Compile(*q.Filter)
		if err != nil {
			return nil, err
		}
		stages = compiled
	}
	if q.Skip != nil {
		stages = append(stages, bson.D{{Key: planner.StageSkip, Value: int64(*q.Skip)}})
	}
	if q.Limit != nil {
		stages = append(stages, bson.D{{Key: planner.StageLimit, Value: int64(*q.Limit)}})
	}
	return stages, nil
}
