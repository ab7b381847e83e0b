package feed

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"topichub/backend/internal/activity"
	"topichub/backend/internal/graph"
	apperrors "topichub/backend/pkg/errors"
	"topichub/backend/pkg/logger"
)

const (
	defaultPageSize = 10
	// maxPageSize caps the enrichment fan-out; caller-supplied sizes are
	// clamped, not trusted
	maxPageSize = 50
	// summaryLimit is the fixed per-category size in summary mode
	summaryLimit = 4
	// maxEnrichmentConcurrency bounds the per-item relational lookups
	maxEnrichmentConcurrency = 8
)

// GraphQuerier is the topic-graph query contract the aggregator consumes
type GraphQuerier interface {
	ChildrenOf(ctx context.Context, parentIDs, excludeIDs []string, since *time.Time, offset, limit int) ([]graph.Topic, error)
	Hottest(ctx context.Context, excludeIDs []string, since *time.Time, offset, limit int) ([]graph.Topic, error)
	Newest(ctx context.Context, excludeIDs []string, since *time.Time, offset, limit int) ([]graph.Topic, error)
	ChildrenCount(ctx context.Context, parentIDs, excludeIDs []string) (int64, error)
}

// ActivityReader is the relational contract the aggregator consumes
type ActivityReader interface {
	FindUser(ctx context.Context, userID string) (*activity.User, error)
	SubscribedTopicIDs(ctx context.Context, userID string) ([]string, error)
	UpdateCountBetween(ctx context.Context, topicID string, from, to time.Time) (int64, error)
}

// Aggregator orchestrates graph queries and activity enrichment into feed
// responses. All calendar-day comparisons in one request use loc and a
// single "now", so every item sees the same day boundary.
type Aggregator struct {
	graph    GraphQuerier
	activity ActivityReader
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewAggregator creates a feed aggregator using loc as the reference
// timezone for day-granularity comparisons
func NewAggregator(g GraphQuerier, a ActivityReader, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{
		graph:    g,
		activity: a,
		loc:      loc,
		now:      time.Now,
		logger:   logger.Get(),
	}
}

// More returns one windowed page of a single category.
func (a *Aggregator) More(ctx context.Context, req Request) ([]Item, error) {
	if !req.Type.Valid() {
		return nil, apperrors.NewUnknownFeedType(string(req.Type))
	}

	user, excludeIDs, err := a.resolveUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	page := normalizePage(req.Page)
	offset := (page.Number - 1) * page.Size

	var topics []graph.Topic
	switch req.Type {
	case CategoryRecommend:
		topics, err = a.graph.ChildrenOf(ctx, user.PreferenceTopics, excludeIDs, req.LastUpdated.Recommend, offset, page.Size)
	case CategoryHottest:
		topics, err = a.graph.Hottest(ctx, excludeIDs, req.LastUpdated.Hottest, offset, page.Size)
	case CategoryNewest:
		topics, err = a.graph.Newest(ctx, excludeIDs, req.LastUpdated.Newest, offset, page.Size)
	}
	if err != nil {
		return nil, apperrors.NewBadRequest("feed query failed", err)
	}

	// Empty page: respond empty, skip enrichment entirely
	if len(topics) == 0 {
		return []Item{}, nil
	}

	items := makeItems(req.Type, topics)
	if err := a.enrich(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// summaryPlan fixes the query→category pairing and the concatenation
// order of summary mode. Keeping the mapping in one table makes the
// association explicit and testable.
type summaryQuery struct {
	category Category
	fetch    func(ctx context.Context) ([]graph.Topic, error)
}

// Summary returns the fixed fan-out across all three categories plus the
// unwindowed recommend count.
func (a *Aggregator) Summary(ctx context.Context, req Request) (*Summary, error) {
	user, excludeIDs, err := a.resolveUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	plan := []summaryQuery{
		{CategoryHottest, func(ctx context.Context) ([]graph.Topic, error) {
			return a.graph.Hottest(ctx, excludeIDs, req.LastUpdated.Hottest, 0, summaryLimit)
		}},
		{CategoryNewest, func(ctx context.Context) ([]graph.Topic, error) {
			return a.graph.Newest(ctx, excludeIDs, req.LastUpdated.Newest, 0, summaryLimit)
		}},
		{CategoryRecommend, func(ctx context.Context) ([]graph.Topic, error) {
			return a.graph.ChildrenOf(ctx, user.PreferenceTopics, excludeIDs, req.LastUpdated.Recommend, 0, summaryLimit)
		}},
	}

	results := make([][]graph.Topic, len(plan))
	var totalRecommend int64

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range plan {
		g.Go(func() error {
			topics, err := q.fetch(gctx)
			if err != nil {
				return err
			}
			// Defensive re-truncation: never more than the fixed
			// per-category size, whatever the query returned
			if len(topics) > summaryLimit {
				topics = topics[:summaryLimit]
			}
			results[i] = topics
			return nil
		})
	}
	g.Go(func() error {
		count, err := a.graph.ChildrenCount(gctx, user.PreferenceTopics, excludeIDs)
		if err != nil {
			return err
		}
		totalRecommend = count
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.NewBadRequest("feed summary failed", err)
	}

	// Flatten in plan order; each category keeps its own query order
	var items []Item
	for i, q := range plan {
		items = append(items, makeItems(q.category, results[i])...)
	}

	if err := a.enrich(ctx, items); err != nil {
		return nil, err
	}

	return &Summary{
		Data: items,
		Meta: Meta{TotalRecommendUpdates: totalRecommend},
	}, nil
}

// resolveUser loads the requesting user and their subscription set. A
// user never sees a topic they already follow, so the subscribed ids are
// the exclusion set for every category query.
func (a *Aggregator) resolveUser(ctx context.Context, userID string) (*activity.User, []string, error) {
	if userID == "" {
		return nil, nil, apperrors.ErrMissingUserID
	}
	user, err := a.activity.FindUser(ctx, userID)
	if err != nil {
		return nil, nil, apperrors.NewBadRequest("failed to resolve user", err)
	}
	subscribed, err := a.activity.SubscribedTopicIDs(ctx, userID)
	if err != nil {
		return nil, nil, apperrors.NewBadRequest("failed to resolve subscriptions", err)
	}
	return user, subscribed, nil
}

// enrich attaches updatesCount and isNew to every item. Lookups run
// concurrently and are joined back by positional index; the list is never
// re-sorted in between, so counts always land on their own topic.
func (a *Aggregator) enrich(ctx context.Context, items []Item) error {
	now := a.now()
	today := dayKey(now, a.loc)
	dayStart, dayEnd := dayBounds(now, a.loc)

	counts := make([]int64, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxEnrichmentConcurrency)
	for i := range items {
		g.Go(func() error {
			count, err := a.activity.UpdateCountBetween(gctx, items[i].ID, dayStart, dayEnd)
			if err != nil {
				return err
			}
			counts[i] = count
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return apperrors.NewBadRequest("feed enrichment failed", err)
	}

	for i := range items {
		items[i].Attributes.UpdatesCount = counts[i]
		items[i].Attributes.IsNew = dayKey(items[i].Attributes.PublishedAt, a.loc) == today
	}
	return nil
}

func makeItems(category Category, topics []graph.Topic) []Item {
	items := make([]Item, 0, len(topics))
	for _, t := range topics {
		items = append(items, Item{
			Type: category.resourceType(),
			ID:   t.ID,
			Attributes: ItemAttributes{
				TopicID:            t.ID,
				Name:               t.Name,
				Description:        t.Description,
				Classes:            t.Classes,
				ImgURL:             t.ImgURL,
				SubscriptionsCount: t.SubscriptionsCount,
				PublishedAt:        t.PublishedAt,
				UpdatedAt:          t.UpdatedAt,
			},
		})
	}
	return items
}

func normalizePage(p Page) Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}
