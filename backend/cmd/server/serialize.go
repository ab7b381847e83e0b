package main

import (
	"github.com/gin-gonic/gin"

	"topichub/backend/internal/activity"
	"topichub/backend/internal/graph"
)

// Resource serialization for the catalog endpoints: entities go out as
// {type, id, attributes} blocks, with relations side-loaded under
// "included" for subtree listings.

func topicResource(t graph.Topic) gin.H {
	return gin.H{
		"type": "topics",
		"id":   t.ID,
		"attributes": gin.H{
			"name":               t.Name,
			"description":        t.Description,
			"classes":            t.Classes,
			"imgUrl":             t.ImgURL,
			"subscriptionsCount": t.SubscriptionsCount,
			"publishedAt":        t.PublishedAt,
			"updatedAt":          t.UpdatedAt,
		},
	}
}

func relationResource(r graph.Relation) gin.H {
	return gin.H{
		"type": "relations",
		"id":   r.ID,
		"attributes": gin.H{
			"from":  r.From,
			"to":    r.To,
			"type":  string(r.Type),
			"order": r.Order,
		},
	}
}

func serializeTopics(topics []graph.Topic) []gin.H {
	out := make([]gin.H, 0, len(topics))
	for _, t := range topics {
		out = append(out, topicResource(t))
	}
	return out
}

// serializeTopicGraph renders a subtree listing: topics with their
// outgoing relation ids under relationships, and the relations themselves
// side-loaded under included.
func serializeTopicGraph(topics []graph.Topic, relations []graph.Relation) gin.H {
	outgoing := make(map[string][]gin.H)
	for _, r := range relations {
		outgoing[r.From] = append(outgoing[r.From], gin.H{"type": "relations", "id": r.ID})
	}

	data := make([]gin.H, 0, len(topics))
	for _, t := range topics {
		resource := topicResource(t)
		if refs, ok := outgoing[t.ID]; ok {
			resource["relationships"] = gin.H{"relations": gin.H{"data": refs}}
		}
		data = append(data, resource)
	}

	included := make([]gin.H, 0, len(relations))
	for _, r := range relations {
		included = append(included, relationResource(r))
	}

	return gin.H{"data": data, "included": included}
}

func serializeMedia(media []activity.TopicMedium) []gin.H {
	out := make([]gin.H, 0, len(media))
	for _, m := range media {
		out = append(out, gin.H{
			"type": "media",
			"id":   m.ID,
			"attributes": gin.H{
				"title":       m.Title,
				"content":     m.Content,
				"link":        m.Link,
				"author":      m.Author,
				"source":      m.Source,
				"publishedAt": m.PublishedAt,
				"updatedAt":   m.UpdatedAt,
				"confirmed":   m.Confirmed,
			},
		})
	}
	return out
}

func serializeUsers(users []activity.User) []gin.H {
	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, gin.H{
			"type": "users",
			"id":   u.ID,
			"attributes": gin.H{
				"username":         u.Username,
				"preferenceTopics": u.PreferenceTopics,
			},
		})
	}
	return out
}
