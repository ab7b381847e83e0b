package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "topichub/backend/pkg/errors"
)

// ============================================================================
// Batch Mutation
// ============================================================================

// BatchOperation is the wire form of one entry in a mutation batch.
type BatchOperation struct {
	EntityType string                 `json:"entityType"`
	Action     string                 `json:"action"`
	ID         string                 `json:"id,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Operation is one validated batch entry. The set is closed: TopicSave,
// TopicDelete, RelationSave, RelationDelete.
type Operation interface {
	isOperation()
}

// TopicAttrs are the mutable topic fields. Nil fields are left untouched
// on an existing node.
type TopicAttrs struct {
	Name        *string
	Description *string
	ImgURL      *string
}

// TopicSave upserts a topic node, merging the given attributes into an
// existing node or creating a new one.
type TopicSave struct {
	ID    string
	Attrs TopicAttrs
}

// TopicDelete removes a topic node and its edges. Absence is not an error.
type TopicDelete struct {
	ID string
}

// RelationSave upserts a typed, ordered edge between two existing topics.
type RelationSave struct {
	ID    string
	From  string
	To    string
	Type  RelationType
	Order int64
}

// RelationDelete removes an edge by id. Absence is not an error.
type RelationDelete struct {
	ID string
}

func (TopicSave) isOperation()      {}
func (TopicDelete) isOperation()    {}
func (RelationSave) isOperation()   {}
func (RelationDelete) isOperation() {}

// MutationResult is the serialized entity returned for a save operation.
type MutationResult struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id"`
	Attributes map[string]interface{} `json:"attributes"`
}

// ParseBatch validates a wire batch and produces typed operations. It
// fails on the first malformed entry, before any store call is made.
func ParseBatch(ops []BatchOperation) ([]Operation, error) {
	parsed := make([]Operation, 0, len(ops))

	for i, op := range ops {
		switch op.EntityType {
		case "topic":
			switch op.Action {
			case "save":
				if op.ID == "" {
					return nil, apperrors.NewMalformedBatch(i, "topic save requires an id")
				}
				parsed = append(parsed, TopicSave{ID: op.ID, Attrs: topicAttrsFromMap(op.Attributes)})
			case "delete":
				if op.ID == "" {
					return nil, apperrors.NewMalformedBatch(i, "topic delete requires an id")
				}
				parsed = append(parsed, TopicDelete{ID: op.ID})
			default:
				return nil, apperrors.NewMalformedBatch(i, fmt.Sprintf("unknown action %q", op.Action))
			}
		case "relation":
			switch op.Action {
			case "save":
				rel, err := relationSaveFromMap(i, op)
				if err != nil {
					return nil, err
				}
				parsed = append(parsed, rel)
			case "delete":
				if op.ID == "" {
					return nil, apperrors.NewMalformedBatch(i, "relation delete requires an id")
				}
				parsed = append(parsed, RelationDelete{ID: op.ID})
			default:
				return nil, apperrors.NewMalformedBatch(i, fmt.Sprintf("unknown action %q", op.Action))
			}
		default:
			return nil, apperrors.NewMalformedBatch(i, fmt.Sprintf("unknown entity type %q", op.EntityType))
		}
	}

	return parsed, nil
}

func topicAttrsFromMap(attrs map[string]interface{}) TopicAttrs {
	var out TopicAttrs
	if v, ok := attrs["name"].(string); ok {
		out.Name = &v
	}
	if v, ok := attrs["description"].(string); ok {
		out.Description = &v
	}
	if v, ok := attrs["imgUrl"].(string); ok {
		out.ImgURL = &v
	}
	return out
}

func relationSaveFromMap(index int, op BatchOperation) (RelationSave, error) {
	from, _ := op.Attributes["from"].(string)
	to, _ := op.Attributes["to"].(string)
	relType, _ := op.Attributes["type"].(string)

	if from == "" || to == "" {
		return RelationSave{}, apperrors.NewMalformedBatch(index, "relation save requires from and to topic ids")
	}
	rt := RelationType(relType)
	if !rt.Valid() {
		return RelationSave{}, apperrors.NewMalformedBatch(index, fmt.Sprintf("unknown relation type %q", relType))
	}

	rel := RelationSave{
		ID:   op.ID,
		From: from,
		To:   to,
		Type: rt,
	}
	if rel.ID == "" {
		rel.ID = uuid.New().String()
	}
	switch v := op.Attributes["order"].(type) {
	case float64:
		rel.Order = int64(v)
	case int64:
		rel.Order = v
	case int:
		rel.Order = int64(v)
	}
	return rel, nil
}

// ApplyBatch applies an ordered batch of operations inside a single
// transaction. Every store call is issued and awaited before commit; any
// failure rolls the whole batch back and nothing in it becomes visible.
// Saves contribute their serialized entity to the result list in
// submission order; deletes apply silently.
func (r *Repository) ApplyBatch(ctx context.Context, ops []Operation) ([]MutationResult, error) {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	tx, err := session.BeginTransaction(ctx, neo4j.WithTxTimeout(r.txTimeout))
	if err != nil {
		return nil, apperrors.NewBadRequest("failed to open graph transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	results := make([]MutationResult, 0, len(ops))
	for i, op := range ops {
		switch v := op.(type) {
		case TopicSave:
			res, err := r.applyTopicSave(ctx, tx, v)
			if err != nil {
				return nil, apperrors.NewBadRequest(fmt.Sprintf("operation %d failed", i), err)
			}
			results = append(results, res)
		case TopicDelete:
			if err := r.applyTopicDelete(ctx, tx, v); err != nil {
				return nil, apperrors.NewBadRequest(fmt.Sprintf("operation %d failed", i), err)
			}
		case RelationSave:
			res, err := r.applyRelationSave(ctx, tx, v)
			if err != nil {
				return nil, apperrors.NewBadRequest(fmt.Sprintf("operation %d failed", i), err)
			}
			results = append(results, res)
		case RelationDelete:
			if err := r.applyRelationDelete(ctx, tx, v); err != nil {
				return nil, apperrors.NewBadRequest(fmt.Sprintf("operation %d failed", i), err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.NewBadRequest("failed to commit mutation batch", err)
	}
	committed = true

	r.logger.Info("Mutation batch applied",
		zap.Int("operations", len(ops)),
		zap.Int("saves", len(results)),
	)
	return results, nil
}

func (r *Repository) applyTopicSave(ctx context.Context, tx neo4j.ExplicitTransaction, op TopicSave) (MutationResult, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	props := map[string]interface{}{}
	if op.Attrs.Name != nil {
		props["name"] = *op.Attrs.Name
	}
	if op.Attrs.Description != nil {
		props["description"] = *op.Attrs.Description
	}
	if op.Attrs.ImgURL != nil {
		props["imgUrl"] = *op.Attrs.ImgURL
	}

	// SET t += $props only touches the provided keys, which gives the
	// merge semantics: absent attributes survive on an existing node.
	query := `
		MERGE (t:Topic {id: $id})
		ON CREATE SET t.publishedAt = datetime($now), t.subscriptionsCount = 0
		SET t += $props, t.updatedAt = datetime($now)
	` + topicReturn

	result, err := tx.Run(ctx, query, map[string]interface{}{
		"id":    op.ID,
		"props": props,
		"now":   now,
	})
	if err != nil {
		return MutationResult{}, fmt.Errorf("topic save: %w", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return MutationResult{}, fmt.Errorf("topic save: %w", err)
	}

	topic := topicFromRecord(record)
	return MutationResult{
		Type: "topics",
		ID:   topic.ID,
		Attributes: map[string]interface{}{
			"name":               topic.Name,
			"description":        topic.Description,
			"classes":            topic.Classes,
			"imgUrl":             topic.ImgURL,
			"subscriptionsCount": topic.SubscriptionsCount,
			"publishedAt":        topic.PublishedAt,
			"updatedAt":          topic.UpdatedAt,
		},
	}, nil
}

func (r *Repository) applyTopicDelete(ctx context.Context, tx neo4j.ExplicitTransaction, op TopicDelete) error {
	result, err := tx.Run(ctx, `
		MATCH (t:Topic {id: $id})
		DETACH DELETE t
	`, map[string]interface{}{"id": op.ID})
	if err != nil {
		return fmt.Errorf("topic delete: %w", err)
	}
	// Consume forces completion before the batch can commit
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("topic delete: %w", err)
	}
	return nil
}

func (r *Repository) applyRelationSave(ctx context.Context, tx neo4j.ExplicitTransaction, op RelationSave) (MutationResult, error) {
	// The relation type was validated against the closed enum at parse
	// time; relationship types cannot be parameterized.
	query := fmt.Sprintf(`
		MATCH (from:Topic {id: $from})
		MATCH (to:Topic {id: $to})
		MERGE (from)-[rel:%s {id: $id}]->(to)
		SET rel.order = $order
		RETURN rel.id AS id, rel.order AS order
	`, op.Type)

	result, err := tx.Run(ctx, query, map[string]interface{}{
		"from":  op.From,
		"to":    op.To,
		"id":    op.ID,
		"order": op.Order,
	})
	if err != nil {
		return MutationResult{}, fmt.Errorf("relation save: %w", err)
	}

	// Single fails when from/to matched nothing, which is exactly the
	// referential requirement: both endpoints must exist at commit time.
	record, err := result.Single(ctx)
	if err != nil {
		return MutationResult{}, fmt.Errorf("relation save: endpoints %s -> %s: %w", op.From, op.To, err)
	}

	return MutationResult{
		Type: "relations",
		ID:   getStringFromRecord(record, "id"),
		Attributes: map[string]interface{}{
			"from":  op.From,
			"to":    op.To,
			"type":  string(op.Type),
			"order": getInt64FromRecord(record, "order"),
		},
	}, nil
}

func (r *Repository) applyRelationDelete(ctx context.Context, tx neo4j.ExplicitTransaction, op RelationDelete) error {
	result, err := tx.Run(ctx, `
		MATCH (:Topic)-[rel {id: $id}]->(:Topic)
		DELETE rel
	`, map[string]interface{}{"id": op.ID})
	if err != nil {
		return fmt.Errorf("relation delete: %w", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("relation delete: %w", err)
	}
	return nil
}
