package graph

import "time"

// RelationType is the closed set of edge types between topics.
type RelationType string

const (
	// RelationStageInTime orders a topic's stages chronologically
	RelationStageInTime RelationType = "Stage_in_time"
	// RelationInclude nests a topic under a broader one
	RelationInclude RelationType = "Include"
)

// hierarchyTypes is the Cypher alternation of all hierarchical relation
// types. Relationship types cannot be parameterized, so queries splice
// this constant in directly; RelationType.Valid gates anything dynamic.
const hierarchyTypes = "Stage_in_time|Include"

// Valid reports whether rt is a known relation type
func (rt RelationType) Valid() bool {
	switch rt {
	case RelationStageInTime, RelationInclude:
		return true
	}
	return false
}

// Topic is a node in the topic graph
type Topic struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	Classes            []string  `json:"classes"`
	ImgURL             string    `json:"imgUrl,omitempty"`
	SubscriptionsCount int64     `json:"subscriptionsCount"`
	PublishedAt        time.Time `json:"publishedAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Relation is a typed, ordered edge between two topics
type Relation struct {
	ID    string       `json:"id"`
	From  string       `json:"from"`
	To    string       `json:"to"`
	Type  RelationType `json:"type"`
	Order int64        `json:"order"`
}
