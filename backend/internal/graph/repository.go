package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"topichub/backend/pkg/logger"
)

// Repository handles all Neo4j topic-graph operations
type Repository struct {
	driver    neo4j.DriverWithContext
	txTimeout time.Duration
	logger    *zap.Logger
}

// NewRepository creates a new graph repository. txTimeout bounds each
// batch-mutation transaction server-side, so a transaction abandoned by a
// dying request is reaped instead of holding its session open.
func NewRepository(driver neo4j.DriverWithContext, txTimeout time.Duration) *Repository {
	if txTimeout <= 0 {
		txTimeout = 30 * time.Second
	}
	return &Repository{
		driver:    driver,
		txTimeout: txTimeout,
		logger:    logger.Get(),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

func (r *Repository) readSession(ctx context.Context) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
}

func (r *Repository) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
}
