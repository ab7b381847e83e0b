// Package activity provides the relational side of the catalog: users,
// subscriptions, media, and per-topic media associations.
package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	apperrors "topichub/backend/pkg/errors"
	"topichub/backend/pkg/logger"
)

// Store handles SQLite persistence for the activity side of the catalog.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// User is a registered user with their preference topic ids
type User struct {
	ID               string   `json:"id"`
	Username         string   `json:"username"`
	PreferenceTopics []string `json:"preferenceTopics"`
}

// Medium is one content item
type Medium struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content,omitempty"`
	Link        string    `json:"link,omitempty"`
	Author      string    `json:"author,omitempty"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TopicMedium is a medium joined with its per-topic confirmed flag
type TopicMedium struct {
	Medium
	Confirmed bool `json:"confirmed"`
}

// Open creates a new Store at the given database path, creating tables if
// they don't exist.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db, logger: logger.Get()}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		preference_topics TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS user_topics (
		user_id TEXT NOT NULL,
		topic_id TEXT NOT NULL,
		PRIMARY KEY (user_id, topic_id)
	);

	CREATE TABLE IF NOT EXISTS media (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT,
		link TEXT,
		author TEXT,
		source TEXT,
		published_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS topic_media (
		topic_id TEXT NOT NULL,
		medium_id TEXT NOT NULL,
		confirmed INTEGER DEFAULT 0,
		PRIMARY KEY (topic_id, medium_id)
	);

	CREATE INDEX IF NOT EXISTS idx_user_topics_topic ON user_topics(topic_id);
	CREATE INDEX IF NOT EXISTS idx_media_published ON media(published_at DESC);
	CREATE INDEX IF NOT EXISTS idx_topic_media_topic ON topic_media(topic_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// ============================================================================
// Users & Subscriptions
// ============================================================================

// FindUser loads a user record by id
func (s *Store) FindUser(ctx context.Context, userID string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, preference_topics FROM users WHERE id = ?`, userID)

	var u User
	var prefs string
	if err := row.Scan(&u.ID, &u.Username, &prefs); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewUserNotFound(userID)
		}
		return nil, apperrors.NewActivityQueryFailed("find_user", err)
	}
	if err := json.Unmarshal([]byte(prefs), &u.PreferenceTopics); err != nil {
		return nil, apperrors.NewActivityQueryFailed("find_user", fmt.Errorf("bad preference_topics for %s: %w", userID, err))
	}
	return &u, nil
}

// UpsertUser inserts or replaces a user record
func (s *Store) UpsertUser(ctx context.Context, user User) error {
	prefs, err := json.Marshal(user.PreferenceTopics)
	if err != nil {
		return apperrors.NewActivityQueryFailed("upsert_user", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, preference_topics) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET username = excluded.username, preference_topics = excluded.preference_topics`,
		user.ID, user.Username, string(prefs))
	if err != nil {
		return apperrors.NewActivityQueryFailed("upsert_user", err)
	}
	return nil
}

// SubscribedTopicIDs returns the ids of every topic the user subscribes
// to. This set is the feed's universal exclusion set.
func (s *Store) SubscribedTopicIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT topic_id FROM user_topics WHERE user_id = ?`, userID)
	if err != nil {
		return nil, apperrors.NewActivityQueryFailed("subscribed_topics", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewActivityQueryFailed("subscribed_topics", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewActivityQueryFailed("subscribed_topics", err)
	}
	return ids, nil
}

// Subscribe creates the (user, topic) subscription if it doesn't exist
func (s *Store) Subscribe(ctx context.Context, userID, topicID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_topics (user_id, topic_id) VALUES (?, ?)`,
		userID, topicID)
	if err != nil {
		return apperrors.NewActivityQueryFailed("subscribe", err)
	}
	return nil
}

// Unsubscribe removes the (user, topic) subscription
func (s *Store) Unsubscribe(ctx context.Context, userID, topicID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_topics WHERE user_id = ? AND topic_id = ?`,
		userID, topicID)
	if err != nil {
		return apperrors.NewActivityQueryFailed("unsubscribe", err)
	}
	return nil
}

// SubscribersOf returns the users subscribed to a topic, windowed
func (s *Store) SubscribersOf(ctx context.Context, topicID string, offset, limit int) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.preference_topics
		FROM user_topics ut
		JOIN users u ON u.id = ut.user_id
		WHERE ut.topic_id = ?
		ORDER BY u.id
		LIMIT ? OFFSET ?`, topicID, limit, offset)
	if err != nil {
		return nil, apperrors.NewActivityQueryFailed("subscribers_of", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var prefs string
		if err := rows.Scan(&u.ID, &u.Username, &prefs); err != nil {
			return nil, apperrors.NewActivityQueryFailed("subscribers_of", err)
		}
		_ = json.Unmarshal([]byte(prefs), &u.PreferenceTopics)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewActivityQueryFailed("subscribers_of", err)
	}
	return users, nil
}

// ============================================================================
// Media
// ============================================================================

// InsertMedium stores a content item. Timestamps are normalized to UTC so
// range queries compare consistently.
func (s *Store) InsertMedium(ctx context.Context, m Medium) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media (id, title, content, link, author, source, published_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, content = excluded.content,
			link = excluded.link, author = excluded.author,
			source = excluded.source,
			published_at = excluded.published_at,
			updated_at = excluded.updated_at`,
		m.ID, m.Title, m.Content, m.Link, m.Author, m.Source,
		m.PublishedAt.UTC().Format(time.RFC3339), m.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return apperrors.NewActivityQueryFailed("insert_medium", err)
	}
	return nil
}

// MediaForTopic returns media associated with a topic, windowed, with the
// per-topic confirmed flag joined in. Unconfirmed media sort first.
func (s *Store) MediaForTopic(ctx context.Context, topicID string, offset, limit int) ([]TopicMedium, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.title, coalesce(m.content, ''), coalesce(m.link, ''),
		       coalesce(m.author, ''), coalesce(m.source, ''),
		       m.published_at, m.updated_at, tm.confirmed
		FROM topic_media tm
		JOIN media m ON m.id = tm.medium_id
		WHERE tm.topic_id = ?
		ORDER BY tm.confirmed ASC, m.published_at DESC
		LIMIT ? OFFSET ?`, topicID, limit, offset)
	if err != nil {
		return nil, apperrors.NewActivityQueryFailed("media_for_topic", err)
	}
	defer rows.Close()

	var media []TopicMedium
	for rows.Next() {
		var tm TopicMedium
		var published, updated string
		var confirmed int
		if err := rows.Scan(&tm.ID, &tm.Title, &tm.Content, &tm.Link, &tm.Author, &tm.Source,
			&published, &updated, &confirmed); err != nil {
			return nil, apperrors.NewActivityQueryFailed("media_for_topic", err)
		}
		tm.PublishedAt, _ = time.Parse(time.RFC3339, published)
		tm.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		tm.Confirmed = confirmed != 0
		media = append(media, tm)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewActivityQueryFailed("media_for_topic", err)
	}
	return media, nil
}

// AttachMedia associates media ids with a topic as confirmed
func (s *Store) AttachMedia(ctx context.Context, topicID string, mediumIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewActivityQueryFailed("attach_media", err)
	}
	defer tx.Rollback()

	for _, mediumID := range mediumIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO topic_media (topic_id, medium_id, confirmed) VALUES (?, ?, 1)`,
			topicID, mediumID); err != nil {
			return apperrors.NewActivityQueryFailed("attach_media", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewActivityQueryFailed("attach_media", err)
	}

	s.logger.Info("Media attached",
		zap.String("topic_id", topicID),
		zap.Int("count", len(mediumIDs)),
	)
	return nil
}

// DetachMedium removes a topic/medium association
func (s *Store) DetachMedium(ctx context.Context, topicID, mediumID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM topic_media WHERE topic_id = ? AND medium_id = ?`,
		topicID, mediumID)
	if err != nil {
		return apperrors.NewActivityQueryFailed("detach_medium", err)
	}
	return nil
}

// SetConfirmed toggles the confirmed flag on a topic/medium association.
// An absent association is a not-found error.
func (s *Store) SetConfirmed(ctx context.Context, topicID, mediumID string, confirmed bool) error {
	val := 0
	if confirmed {
		val = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE topic_media SET confirmed = ? WHERE topic_id = ? AND medium_id = ?`,
		val, topicID, mediumID)
	if err != nil {
		return apperrors.NewActivityQueryFailed("set_confirmed", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewActivityQueryFailed("set_confirmed", err)
	}
	if affected == 0 {
		return apperrors.NewAssociationNotFound(topicID, mediumID)
	}
	return nil
}

// UpdateCountBetween counts the content items associated with a topic
// whose publish instant falls in [from, to). The caller supplies the day
// boundaries, computed in one fixed timezone per request.
func (s *Store) UpdateCountBetween(ctx context.Context, topicID string, from, to time.Time) (int64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT count(m.id)
		FROM topic_media tm
		JOIN media m ON m.id = tm.medium_id
		WHERE tm.topic_id = ?
		  AND m.published_at >= ?
		  AND m.published_at < ?`,
		topicID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))

	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, apperrors.NewActivityQueryFailed("update_count", err)
	}
	return count, nil
}
