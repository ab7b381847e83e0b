package graph

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// These tests require a running Neo4j instance and skip when one is not
// reachable. Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD to point elsewhere.

func testRepository(t *testing.T) (*Repository, neo4j.DriverWithContext) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	uri := "bolt://localhost:7687"
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth("neo4j", "password", ""))
	if err != nil {
		t.Skipf("Neo4j driver unavailable: %v", err)
	}

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		t.Skipf("Neo4j not reachable: %v", err)
	}

	t.Cleanup(func() { driver.Close(context.Background()) })
	return NewRepository(driver, 10*time.Second), driver
}

// cleanupTopics removes every topic whose name carries the test marker
func cleanupTopics(t *testing.T, driver neo4j.DriverWithContext, marker string) {
	t.Helper()
	ctx := context.Background()
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	_, _ = session.Run(ctx, "MATCH (t:Topic) WHERE t.name CONTAINS $marker DETACH DELETE t",
		map[string]interface{}{"marker": marker})
}

func strPtr(s string) *string { return &s }

func TestApplyBatch_Atomicity(t *testing.T) {
	repo, driver := testRepository(t)
	ctx := context.Background()
	marker := "atomicity-" + uuid.New().String()[:8]
	defer cleanupTopics(t, driver, marker)

	ids := []string{uuid.New().String(), uuid.New().String(), uuid.New().String()}
	ops := []Operation{
		TopicSave{ID: ids[0], Attrs: TopicAttrs{Name: strPtr(marker + "-a")}},
		TopicSave{ID: ids[1], Attrs: TopicAttrs{Name: strPtr(marker + "-b")}},
		TopicSave{ID: ids[2], Attrs: TopicAttrs{Name: strPtr(marker + "-c")}},
		// Endpoints don't exist, so this save fails at the store
		RelationSave{ID: uuid.New().String(), From: "missing-from", To: "missing-to", Type: RelationInclude},
	}

	_, err := repo.ApplyBatch(ctx, ops)
	if err == nil {
		t.Fatal("Expected batch to fail")
	}

	// None of the saves may be visible after rollback
	topics, err := repo.Search(ctx, marker, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(topics) != 0 {
		t.Errorf("Expected no topics after rollback, found %d", len(topics))
	}
}

func TestApplyBatch_MergeSemantics(t *testing.T) {
	repo, driver := testRepository(t)
	ctx := context.Background()
	marker := "merge-" + uuid.New().String()[:8]
	defer cleanupTopics(t, driver, marker)

	id := uuid.New().String()
	_, err := repo.ApplyBatch(ctx, []Operation{
		TopicSave{ID: id, Attrs: TopicAttrs{Name: strPtr(marker + "-A"), Description: strPtr("B")}},
	})
	if err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	// Update only the name; description must survive
	results, err := repo.ApplyBatch(ctx, []Operation{
		TopicSave{ID: id, Attrs: TopicAttrs{Name: strPtr(marker + "-C")}},
	})
	if err != nil {
		t.Fatalf("Second save failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if got := results[0].Attributes["name"]; got != marker+"-C" {
		t.Errorf("Expected updated name, got %v", got)
	}
	if got := results[0].Attributes["description"]; got != "B" {
		t.Errorf("Expected description preserved, got %v", got)
	}
}

func TestApplyBatch_IdempotentDeletes(t *testing.T) {
	repo, driver := testRepository(t)
	ctx := context.Background()
	marker := "idem-" + uuid.New().String()[:8]
	defer cleanupTopics(t, driver, marker)

	fromID, toID := uuid.New().String(), uuid.New().String()
	relID := uuid.New().String()
	_, err := repo.ApplyBatch(ctx, []Operation{
		TopicSave{ID: fromID, Attrs: TopicAttrs{Name: strPtr(marker + "-from")}},
		TopicSave{ID: toID, Attrs: TopicAttrs{Name: strPtr(marker + "-to")}},
		RelationSave{ID: relID, From: fromID, To: toID, Type: RelationStageInTime, Order: 1},
	})
	if err != nil {
		t.Fatalf("Setup batch failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := repo.ApplyBatch(ctx, []Operation{RelationDelete{ID: relID}}); err != nil {
			t.Fatalf("Delete round %d failed: %v", i+1, err)
		}
	}

	// Topic deletes are idempotent too
	for i := 0; i < 2; i++ {
		if _, err := repo.ApplyBatch(ctx, []Operation{TopicDelete{ID: fromID}}); err != nil {
			t.Fatalf("Topic delete round %d failed: %v", i+1, err)
		}
	}
}

func TestApplyBatch_SaveResultsInSubmissionOrder(t *testing.T) {
	repo, driver := testRepository(t)
	ctx := context.Background()
	marker := "order-" + uuid.New().String()[:8]
	defer cleanupTopics(t, driver, marker)

	a, b := uuid.New().String(), uuid.New().String()
	results, err := repo.ApplyBatch(ctx, []Operation{
		TopicSave{ID: a, Attrs: TopicAttrs{Name: strPtr(marker + "-first")}},
		TopicDelete{ID: uuid.New().String()}, // silent, no result entry
		TopicSave{ID: b, Attrs: TopicAttrs{Name: strPtr(marker + "-second")}},
	})
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results (deletes are silent), got %d", len(results))
	}
	if results[0].ID != a || results[1].ID != b {
		t.Errorf("Results out of submission order: %s, %s", results[0].ID, results[1].ID)
	}
}

func TestChildrenOf_Windowing(t *testing.T) {
	repo, driver := testRepository(t)
	ctx := context.Background()
	marker := "window-" + uuid.New().String()[:8]
	defer cleanupTopics(t, driver, marker)

	parentID := uuid.New().String()
	ops := []Operation{TopicSave{ID: parentID, Attrs: TopicAttrs{Name: strPtr(marker + "-parent")}}}
	childIDs := make([]string, 5)
	for i := range childIDs {
		childIDs[i] = uuid.New().String()
		ops = append(ops,
			TopicSave{ID: childIDs[i], Attrs: TopicAttrs{Name: strPtr(fmt.Sprintf("%s-child-%d", marker, i))}},
			RelationSave{ID: uuid.New().String(), From: parentID, To: childIDs[i], Type: RelationInclude, Order: int64(i)},
		)
	}
	if _, err := repo.ApplyBatch(ctx, ops); err != nil {
		t.Fatalf("Setup batch failed: %v", err)
	}

	all, err := repo.ChildrenOf(ctx, []string{parentID}, nil, nil, 0, 10)
	if err != nil {
		t.Fatalf("ChildrenOf failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("Expected 5 children, got %d", len(all))
	}

	window, err := repo.ChildrenOf(ctx, []string{parentID}, nil, nil, 2, 2)
	if err != nil {
		t.Fatalf("Windowed ChildrenOf failed: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("Expected window of 2, got %d", len(window))
	}
	if window[0].ID != all[2].ID || window[1].ID != all[3].ID {
		t.Errorf("Window returned wrong slice of the ordered source")
	}
}

func TestChildrenOf_Exclusion(t *testing.T) {
	repo, driver := testRepository(t)
	ctx := context.Background()
	marker := "excl-" + uuid.New().String()[:8]
	defer cleanupTopics(t, driver, marker)

	parentID := uuid.New().String()
	keepID, excludeID := uuid.New().String(), uuid.New().String()
	_, err := repo.ApplyBatch(ctx, []Operation{
		TopicSave{ID: parentID, Attrs: TopicAttrs{Name: strPtr(marker + "-parent")}},
		TopicSave{ID: keepID, Attrs: TopicAttrs{Name: strPtr(marker + "-keep")}},
		TopicSave{ID: excludeID, Attrs: TopicAttrs{Name: strPtr(marker + "-drop")}},
		RelationSave{ID: uuid.New().String(), From: parentID, To: keepID, Type: RelationInclude},
		RelationSave{ID: uuid.New().String(), From: parentID, To: excludeID, Type: RelationInclude},
	})
	if err != nil {
		t.Fatalf("Setup batch failed: %v", err)
	}

	topics, err := repo.ChildrenOf(ctx, []string{parentID}, []string{excludeID}, nil, 0, 10)
	if err != nil {
		t.Fatalf("ChildrenOf failed: %v", err)
	}
	for _, topic := range topics {
		if topic.ID == excludeID {
			t.Errorf("Excluded topic %s returned", excludeID)
		}
	}
	if len(topics) != 1 || topics[0].ID != keepID {
		t.Errorf("Expected only the kept child, got %d topics", len(topics))
	}

	count, err := repo.ChildrenCount(ctx, []string{parentID}, []string{excludeID})
	if err != nil {
		t.Fatalf("ChildrenCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected count 1, got %d", count)
	}
}
