package graph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ============================================================================
// Record Helpers
// ============================================================================

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getInt64FromRecord(record *neo4j.Record, key string) int64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return i
	}
	if i, ok := val.(int); ok {
		return int64(i)
	}
	return 0
}

func getTimeFromRecord(record *neo4j.Record, key string) time.Time {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return time.Time{}
	}
	// Neo4j datetime values come back as time.Time
	if t, ok := val.(time.Time); ok {
		return t
	}
	if s, ok := val.(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func getStringSliceFromRecord(record *neo4j.Record, key string) []string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return []string{}
	}
	if slice, ok := val.([]interface{}); ok {
		result := make([]string, 0, len(slice))
		for _, v := range slice {
			if str, ok := v.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return []string{}
}

// topicFromRecord builds a Topic from the standard topic projection
// (see topicReturn in topic_queries.go).
func topicFromRecord(record *neo4j.Record) Topic {
	return Topic{
		ID:                 getStringFromRecord(record, "id"),
		Name:               getStringFromRecord(record, "name"),
		Description:        getStringFromRecord(record, "description"),
		Classes:            getStringSliceFromRecord(record, "classes"),
		ImgURL:             getStringFromRecord(record, "imgUrl"),
		SubscriptionsCount: getInt64FromRecord(record, "subscriptionsCount"),
		PublishedAt:        getTimeFromRecord(record, "publishedAt"),
		UpdatedAt:          getTimeFromRecord(record, "updatedAt"),
	}
}
