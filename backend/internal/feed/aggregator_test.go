package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topichub/backend/internal/activity"
	"topichub/backend/internal/graph"
	apperrors "topichub/backend/pkg/errors"
)

// fakeGraph implements GraphQuerier with canned per-category results and
// records the arguments it was called with.
type fakeGraph struct {
	mu sync.Mutex

	children []graph.Topic
	hottest  []graph.Topic
	newest   []graph.Topic
	count    int64
	err      error

	childrenCalls [][]string // excludeIDs per call
	hottestCalls  [][]string
	newestCalls   [][]string
	parentsSeen   [][]string
	limitsSeen    []int
	offsetsSeen   []int
}

func (f *fakeGraph) ChildrenOf(ctx context.Context, parentIDs, excludeIDs []string, since *time.Time, offset, limit int) ([]graph.Topic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.childrenCalls = append(f.childrenCalls, excludeIDs)
	f.parentsSeen = append(f.parentsSeen, parentIDs)
	f.offsetsSeen = append(f.offsetsSeen, offset)
	f.limitsSeen = append(f.limitsSeen, limit)
	return f.children, f.err
}

func (f *fakeGraph) Hottest(ctx context.Context, excludeIDs []string, since *time.Time, offset, limit int) ([]graph.Topic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hottestCalls = append(f.hottestCalls, excludeIDs)
	f.offsetsSeen = append(f.offsetsSeen, offset)
	f.limitsSeen = append(f.limitsSeen, limit)
	return f.hottest, f.err
}

func (f *fakeGraph) Newest(ctx context.Context, excludeIDs []string, since *time.Time, offset, limit int) ([]graph.Topic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newestCalls = append(f.newestCalls, excludeIDs)
	f.offsetsSeen = append(f.offsetsSeen, offset)
	f.limitsSeen = append(f.limitsSeen, limit)
	return f.newest, f.err
}

func (f *fakeGraph) ChildrenCount(ctx context.Context, parentIDs, excludeIDs []string) (int64, error) {
	return f.count, f.err
}

// fakeActivity implements ActivityReader with a fixed user and per-topic
// counts; lookups can be artificially delayed per topic to scramble
// completion order.
type fakeActivity struct {
	user   *activity.User
	subs   []string
	counts map[string]int64
	delays map[string]time.Duration

	lookups atomic.Int64
}

func (f *fakeActivity) FindUser(ctx context.Context, userID string) (*activity.User, error) {
	if f.user == nil || f.user.ID != userID {
		return nil, apperrors.NewUserNotFound(userID)
	}
	return f.user, nil
}

func (f *fakeActivity) SubscribedTopicIDs(ctx context.Context, userID string) ([]string, error) {
	return f.subs, nil
}

func (f *fakeActivity) UpdateCountBetween(ctx context.Context, topicID string, from, to time.Time) (int64, error) {
	f.lookups.Add(1)
	if d, ok := f.delays[topicID]; ok {
		time.Sleep(d)
	}
	return f.counts[topicID], nil
}

func topicWith(id string, published time.Time) graph.Topic {
	return graph.Topic{
		ID:          id,
		Name:        "topic-" + id,
		Classes:     []string{"Topic"},
		PublishedAt: published,
		UpdatedAt:   published,
	}
}

func newTestAggregator(g GraphQuerier, a ActivityReader, now time.Time) *Aggregator {
	agg := NewAggregator(g, a, time.UTC)
	agg.now = func() time.Time { return now }
	return agg
}

func TestMore_ExclusionSetIsSubscriptions(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	g := &fakeGraph{children: []graph.Topic{topicWith("t3", now)}}
	a := &fakeActivity{
		user:   &activity.User{ID: "u1", PreferenceTopics: []string{"p1"}},
		subs:   []string{"t1", "t2"},
		counts: map[string]int64{"t3": 2},
	}
	agg := newTestAggregator(g, a, now)

	items, err := agg.More(context.Background(), Request{
		UserID: "u1", More: true, Type: CategoryRecommend,
		Page: Page{Number: 1, Size: 10},
	})
	require.NoError(t, err)

	require.Len(t, g.childrenCalls, 1)
	assert.Equal(t, []string{"t1", "t2"}, g.childrenCalls[0])
	assert.Equal(t, [][]string{{"p1"}}, g.parentsSeen)

	for _, item := range items {
		assert.NotContains(t, []string{"t1", "t2"}, item.ID)
	}
}

func TestMore_Windowing(t *testing.T) {
	now := time.Now().UTC()
	g := &fakeGraph{hottest: []graph.Topic{topicWith("t1", now)}}
	a := &fakeActivity{user: &activity.User{ID: "u1"}, counts: map[string]int64{}}
	agg := newTestAggregator(g, a, now)

	_, err := agg.More(context.Background(), Request{
		UserID: "u1", More: true, Type: CategoryHottest,
		Page: Page{Number: 3, Size: 7},
	})
	require.NoError(t, err)

	// offset = (number-1) * size
	assert.Equal(t, []int{14}, g.offsetsSeen)
	assert.Equal(t, []int{7}, g.limitsSeen)
}

func TestMore_ClampsPageSize(t *testing.T) {
	now := time.Now().UTC()
	g := &fakeGraph{}
	a := &fakeActivity{user: &activity.User{ID: "u1"}}
	agg := newTestAggregator(g, a, now)

	_, err := agg.More(context.Background(), Request{
		UserID: "u1", More: true, Type: CategoryNewest,
		Page: Page{Number: 1, Size: 500},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{maxPageSize}, g.limitsSeen)
}

func TestMore_EmptyResultSkipsEnrichment(t *testing.T) {
	now := time.Now().UTC()
	g := &fakeGraph{newest: nil}
	a := &fakeActivity{user: &activity.User{ID: "u1"}}
	agg := newTestAggregator(g, a, now)

	items, err := agg.More(context.Background(), Request{
		UserID: "u1", More: true, Type: CategoryNewest,
		Page: Page{Number: 1, Size: 10},
	})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, int64(0), a.lookups.Load(), "no enrichment lookups on an empty page")
}

func TestMore_UnknownCategory(t *testing.T) {
	agg := newTestAggregator(&fakeGraph{}, &fakeActivity{}, time.Now())

	_, err := agg.More(context.Background(), Request{UserID: "u1", More: true, Type: "weirdest"})
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeRequest))
}

func TestMore_MissingUser(t *testing.T) {
	agg := newTestAggregator(&fakeGraph{}, &fakeActivity{}, time.Now())

	_, err := agg.More(context.Background(), Request{UserID: "ghost", More: true, Type: CategoryNewest})
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeRequest))
}

func TestSummary_ShapeAndMeta(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	var hot, fresh, rec []graph.Topic
	for i := 0; i < 4; i++ {
		hot = append(hot, topicWith(fmt.Sprintf("h%d", i), now))
		fresh = append(fresh, topicWith(fmt.Sprintf("n%d", i), now))
	}
	// Query over-returns: defensive re-truncation caps recommend at 4
	for i := 0; i < 6; i++ {
		rec = append(rec, topicWith(fmt.Sprintf("r%d", i), now))
	}

	g := &fakeGraph{hottest: hot, newest: fresh, children: rec, count: 40}
	a := &fakeActivity{user: &activity.User{ID: "u1"}, counts: map[string]int64{}}
	agg := newTestAggregator(g, a, now)

	summary, err := agg.Summary(context.Background(), Request{UserID: "u1"})
	require.NoError(t, err)

	perCategory := map[string]int{}
	for _, item := range summary.Data {
		perCategory[item.Type]++
	}
	assert.Equal(t, 4, perCategory["hottestTopics"])
	assert.Equal(t, 4, perCategory["newestTopics"])
	assert.Equal(t, 4, perCategory["recommendTopics"])

	// Meta comes from the unwindowed count, not from the items returned
	assert.Equal(t, int64(40), summary.Meta.TotalRecommendUpdates)
}

func TestSummaryCategoryPairing(t *testing.T) {
	now := time.Now().UTC()
	g := &fakeGraph{
		hottest:  []graph.Topic{topicWith("hot-1", now)},
		newest:   []graph.Topic{topicWith("new-1", now)},
		children: []graph.Topic{topicWith("rec-1", now)},
	}
	a := &fakeActivity{user: &activity.User{ID: "u1"}, counts: map[string]int64{}}
	agg := newTestAggregator(g, a, now)

	summary, err := agg.Summary(context.Background(), Request{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, summary.Data, 3)

	// Concatenation order is the plan order, and every result set carries
	// the label of the query that produced it
	assert.Equal(t, "hot-1", summary.Data[0].ID)
	assert.Equal(t, "hottestTopics", summary.Data[0].Type)
	assert.Equal(t, "new-1", summary.Data[1].ID)
	assert.Equal(t, "newestTopics", summary.Data[1].Type)
	assert.Equal(t, "rec-1", summary.Data[2].ID)
	assert.Equal(t, "recommendTopics", summary.Data[2].Type)
}

func TestEnrichmentAlignment(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	var topics []graph.Topic
	counts := map[string]int64{}
	delays := map[string]time.Duration{}
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("t%d", i)
		topics = append(topics, topicWith(id, now))
		counts[id] = int64(i * 10)
		// Earlier items finish last
		delays[id] = time.Duration(5-i) * 10 * time.Millisecond
	}

	g := &fakeGraph{newest: topics}
	a := &fakeActivity{user: &activity.User{ID: "u1"}, counts: counts, delays: delays}
	agg := newTestAggregator(g, a, now)

	items, err := agg.More(context.Background(), Request{
		UserID: "u1", More: true, Type: CategoryNewest,
		Page: Page{Number: 1, Size: 10},
	})
	require.NoError(t, err)
	require.Len(t, items, 5)

	for _, item := range items {
		assert.Equal(t, counts[item.ID], item.Attributes.UpdatesCount,
			"count must attach to its own topic regardless of completion order")
	}
}

func TestIsNew_CalendarDayBoundary(t *testing.T) {
	// Fixed reference timezone; "now" is mid-day
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	lateToday := time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)
	earlyYesterday := time.Date(2026, 8, 29, 0, 1, 0, 0, time.UTC)

	g := &fakeGraph{newest: []graph.Topic{
		topicWith("today", lateToday),
		topicWith("yesterday", earlyYesterday),
	}}
	a := &fakeActivity{user: &activity.User{ID: "u1"}, counts: map[string]int64{}}
	agg := newTestAggregator(g, a, now)

	items, err := agg.More(context.Background(), Request{
		UserID: "u1", More: true, Type: CategoryNewest,
		Page: Page{Number: 1, Size: 10},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.True(t, items[0].Attributes.IsNew, "published today at 23:59 is new")
	assert.False(t, items[1].Attributes.IsNew, "published yesterday at 00:01 is not new")
}

func TestDayKey(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	// 2026-08-30 18:00 UTC is already 08-31 in Shanghai
	utcEvening := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, "20260830", dayKey(utcEvening, time.UTC))
	assert.Equal(t, "20260831", dayKey(utcEvening, loc))

	start, end := dayBounds(utcEvening, loc)
	assert.Equal(t, "20260831", dayKey(start, loc))
	assert.True(t, start.Before(utcEvening))
	assert.True(t, end.After(utcEvening))
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}
