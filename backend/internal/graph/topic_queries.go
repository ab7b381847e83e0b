package graph

import (
	"context"
	"fmt"
	"time"

	apperrors "topichub/backend/pkg/errors"
)

// RootTopicName is the name of the catalog's root topic. Subtree listings
// start here when no root is given.
const RootTopicName = "「根话题」"

// topicReturn is the standard topic projection shared by every query in
// this file; topicFromRecord is its inverse.
const topicReturn = `
	RETURN t.id AS id,
	       t.name AS name,
	       t.description AS description,
	       labels(t) AS classes,
	       t.imgUrl AS imgUrl,
	       coalesce(t.subscriptionsCount, 0) AS subscriptionsCount,
	       t.publishedAt AS publishedAt,
	       t.updatedAt AS updatedAt
`

// ChildrenOf returns topics reachable by a hierarchical relation from any
// of parentIDs, excluding excludeIDs, optionally restricted to topics
// updated after since, ordered by recency descending and windowed by
// offset/limit.
func (r *Repository) ChildrenOf(ctx context.Context, parentIDs, excludeIDs []string, since *time.Time, offset, limit int) ([]Topic, error) {
	query := fmt.Sprintf(`
		MATCH (p:Topic)-[:%s]->(t:Topic)
		WHERE p.id IN $parentIds
		  AND NOT t.id IN $excludeIds
		  AND ($since IS NULL OR t.updatedAt > datetime($since))
		WITH DISTINCT t
		%s
		ORDER BY t.updatedAt DESC
		SKIP $offset LIMIT $limit
	`, hierarchyTypes, topicReturn)

	return r.runTopicQuery(ctx, "children_of", query, map[string]interface{}{
		"parentIds":  stringList(parentIDs),
		"excludeIds": stringList(excludeIDs),
		"since":      sinceParam(since),
		"offset":     offset,
		"limit":      limit,
	})
}

// Hottest returns topics ranked by subscription count descending, with the
// same exclusion and windowing semantics as ChildrenOf but no parent
// restriction.
func (r *Repository) Hottest(ctx context.Context, excludeIDs []string, since *time.Time, offset, limit int) ([]Topic, error) {
	query := `
		MATCH (t:Topic)
		WHERE NOT t.id IN $excludeIds
		  AND ($since IS NULL OR t.updatedAt > datetime($since))
	` + topicReturn + `
		ORDER BY coalesce(t.subscriptionsCount, 0) DESC, t.updatedAt DESC
		SKIP $offset LIMIT $limit
	`

	return r.runTopicQuery(ctx, "hottest", query, map[string]interface{}{
		"excludeIds": stringList(excludeIDs),
		"since":      sinceParam(since),
		"offset":     offset,
		"limit":      limit,
	})
}

// Newest returns topics ranked by publication recency descending.
func (r *Repository) Newest(ctx context.Context, excludeIDs []string, since *time.Time, offset, limit int) ([]Topic, error) {
	query := `
		MATCH (t:Topic)
		WHERE NOT t.id IN $excludeIds
		  AND ($since IS NULL OR t.publishedAt > datetime($since))
	` + topicReturn + `
		ORDER BY t.publishedAt DESC
		SKIP $offset LIMIT $limit
	`

	return r.runTopicQuery(ctx, "newest", query, map[string]interface{}{
		"excludeIds": stringList(excludeIDs),
		"since":      sinceParam(since),
		"offset":     offset,
		"limit":      limit,
	})
}

// ChildrenCount returns the unwindowed total matching the ChildrenOf
// filter, used for summary-mode metadata.
func (r *Repository) ChildrenCount(ctx context.Context, parentIDs, excludeIDs []string) (int64, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (p:Topic)-[:%s]->(t:Topic)
		WHERE p.id IN $parentIds
		  AND NOT t.id IN $excludeIds
		RETURN count(DISTINCT t) AS total
	`, hierarchyTypes)

	result, err := session.Run(ctx, query, map[string]interface{}{
		"parentIds":  stringList(parentIDs),
		"excludeIds": stringList(excludeIDs),
	})
	if err != nil {
		return 0, apperrors.NewGraphQueryFailed("children_count", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return 0, apperrors.NewGraphQueryFailed("children_count", err)
	}

	return getInt64FromRecord(record, "total"), nil
}

// Search finds topics whose name contains key, capped at limit.
func (r *Repository) Search(ctx context.Context, key string, limit int) ([]Topic, error) {
	query := `
		MATCH (t:Topic)
		WHERE t.name CONTAINS $key
	` + topicReturn + `
		LIMIT $limit
	`

	return r.runTopicQuery(ctx, "search", query, map[string]interface{}{
		"key":   key,
		"limit": limit,
	})
}

// FindGraph returns the subtree reachable from the named root topic within
// maxDepth hierarchical hops, together with the relations connecting
// topics inside the subtree. An empty rootName starts at the catalog root.
func (r *Repository) FindGraph(ctx context.Context, rootName string, maxDepth int) ([]Topic, []Relation, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	if rootName == "" {
		rootName = RootTopicName
	}
	if maxDepth < 1 {
		maxDepth = 1
	}
	if maxDepth > 10 {
		maxDepth = 10
	}

	query := fmt.Sprintf(`
		MATCH (root:Topic {name: $rootName})
		MATCH (root)-[:%s*0..%d]->(t:Topic)
		WITH collect(DISTINCT t) AS topics
		UNWIND topics AS t
		OPTIONAL MATCH (t)-[rel:%s]->(c:Topic)
		WHERE c IN topics
		%s,
		       collect({id: rel.id, to: c.id, type: type(rel), order: rel.order}) AS relations
	`, hierarchyTypes, maxDepth, hierarchyTypes, topicReturn)

	result, err := session.Run(ctx, query, map[string]interface{}{
		"rootName": rootName,
	})
	if err != nil {
		return nil, nil, apperrors.NewGraphQueryFailed("find_graph", err)
	}

	var topics []Topic
	var relations []Relation
	for result.Next(ctx) {
		record := result.Record()
		topics = append(topics, topicFromRecord(record))

		rels, _ := record.Get("relations")
		relList, ok := rels.([]interface{})
		if !ok {
			continue
		}
		from := getStringFromRecord(record, "id")
		for _, raw := range relList {
			relMap, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			id, _ := relMap["id"].(string)
			if id == "" {
				// OPTIONAL MATCH misses produce a null-filled entry
				continue
			}
			to, _ := relMap["to"].(string)
			relType, _ := relMap["type"].(string)
			order, _ := relMap["order"].(int64)
			relations = append(relations, Relation{
				ID:    id,
				From:  from,
				To:    to,
				Type:  RelationType(relType),
				Order: order,
			})
		}
	}
	if err := result.Err(); err != nil {
		return nil, nil, apperrors.NewGraphQueryFailed("find_graph", err)
	}

	return topics, relations, nil
}

// runTopicQuery executes a query built around the standard topic
// projection and collects the result rows.
func (r *Repository) runTopicQuery(ctx context.Context, operation, query string, params map[string]interface{}) ([]Topic, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed(operation, err)
	}

	var topics []Topic
	for result.Next(ctx) {
		topics = append(topics, topicFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewGraphQueryFailed(operation, err)
	}

	return topics, nil
}

// stringList keeps empty id sets as empty Cypher lists instead of null,
// so `IN $list` predicates behave.
func stringList(ids []string) []interface{} {
	list := make([]interface{}, len(ids))
	for i, id := range ids {
		list[i] = id
	}
	return list
}

func sinceParam(since *time.Time) interface{} {
	if since == nil {
		return nil
	}
	return since.UTC().Format(time.RFC3339)
}
