package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"topichub/backend/internal/activity"
	"topichub/backend/internal/graph"
	"topichub/backend/pkg/config"
	"topichub/backend/pkg/logger"
)

func main() {
	userID := flag.String("user-id", "demo-user", "User id to seed")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Seeding demo catalog...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	repo := graph.NewRepository(driver, cfg.GraphTxTimeout)

	rootID := uuid.New().String()
	studyID := uuid.New().String()
	prepID := uuid.New().String()
	applyID := uuid.New().String()

	str := func(s string) map[string]interface{} { return map[string]interface{}{"name": s} }

	batch := []graph.BatchOperation{
		{EntityType: "topic", Action: "save", ID: rootID, Attributes: str(graph.RootTopicName)},
		{EntityType: "topic", Action: "save", ID: studyID, Attributes: map[string]interface{}{
			"name": "留学", "description": "出国留学",
		}},
		{EntityType: "topic", Action: "save", ID: prepID, Attributes: str("背景提升期")},
		{EntityType: "topic", Action: "save", ID: applyID, Attributes: str("申请季")},
		{EntityType: "relation", Action: "save", Attributes: map[string]interface{}{
			"from": rootID, "to": studyID, "type": "Include", "order": 1,
		}},
		{EntityType: "relation", Action: "save", Attributes: map[string]interface{}{
			"from": studyID, "to": prepID, "type": "Stage_in_time", "order": 1,
		}},
		{EntityType: "relation", Action: "save", Attributes: map[string]interface{}{
			"from": studyID, "to": applyID, "type": "Stage_in_time", "order": 2,
		}},
	}

	ops, err := graph.ParseBatch(batch)
	if err != nil {
		log.Fatal("Bad seed batch", zap.Error(err))
	}
	if _, err := repo.ApplyBatch(ctx, ops); err != nil {
		log.Fatal("Failed to seed topic graph", zap.Error(err))
	}

	store, err := activity.Open(cfg.ActivityDBPath)
	if err != nil {
		log.Fatal("Failed to open activity store", zap.Error(err))
	}
	defer store.Close()

	if err := store.UpsertUser(ctx, activity.User{
		ID:               *userID,
		Username:         "demo",
		PreferenceTopics: []string{studyID},
	}); err != nil {
		log.Fatal("Failed to seed user", zap.Error(err))
	}

	now := time.Now()
	mediumID := uuid.New().String()
	if err := store.InsertMedium(ctx, activity.Medium{
		ID:          mediumID,
		Title:       "Demo article",
		Source:      "seed",
		PublishedAt: now,
		UpdatedAt:   now,
	}); err != nil {
		log.Fatal("Failed to seed medium", zap.Error(err))
	}
	if err := store.AttachMedia(ctx, studyID, []string{mediumID}); err != nil {
		log.Fatal("Failed to attach seed medium", zap.Error(err))
	}

	log.Info("Seed complete",
		zap.String("root_topic", rootID),
		zap.String("user", *userID),
	)
	os.Exit(0)
}
