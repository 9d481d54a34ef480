package planner

import (
	"go.mongodb.org/mongo-driver/bson"
)

// StagesJSON renders stages as relaxed Extended JSON, one document per entry.
func StagesJSON(stages []bson.D) ([]string, error) {
	out := make([]string, 0, len(stages))
	for _, s := range stages {
		b, err := bson.MarshalExtJSON(s, false, false)
		if err != nil {
			return nil, err
		}
		out = append(out, string(b))
	}
	return out, nil
}

// StageName returns the operator of a single-key stage document.
func StageName(stage bson.D) string {
	if len(stage) == 0 {
		return ""
	}
	return stage[0].Key
}
