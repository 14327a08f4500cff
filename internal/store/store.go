// Package store is a SQLite-backed read-through cache for platform
// identity records. Users and conversations are fetched from the platform
// API on a miss and refreshed when the cached row exceeds its TTL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"chatbridge/internal/domain"

	_ "modernc.org/sqlite"
)

// IdentityStore caches domain.User and domain.Conversation rows keyed by
// platform plus platform-native ID.
type IdentityStore struct {
	db     *sql.DB
	ttl    time.Duration
	logger *slog.Logger
}

// New opens (or creates) the cache database at dbPath.
func New(dbPath string, ttl time.Duration, logger *slog.Logger) (*IdentityStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &IdentityStore{db: db, ttl: ttl, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *IdentityStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		platform    TEXT NOT NULL,
		platform_id TEXT NOT NULL,
		payload     TEXT NOT NULL,
		fetched_at  DATETIME NOT NULL,
		PRIMARY KEY (platform, platform_id)
	);

	CREATE TABLE IF NOT EXISTS conversations (
		platform    TEXT NOT NULL,
		platform_id TEXT NOT NULL,
		payload     TEXT NOT NULL,
		fetched_at  DATETIME NOT NULL,
		PRIMARY KEY (platform, platform_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UserFetcher retrieves a user from the platform API.
type UserFetcher func(ctx context.Context, platformUserID string) (*domain.User, error)

// ConversationFetcher retrieves a conversation from the platform API.
type ConversationFetcher func(ctx context.Context, platformConversationID string) (*domain.Conversation, error)

// User returns the cached user when fresh, otherwise calls fetch and
// caches the result. A stale cached row is still returned when the fetch
// fails, so transient API outages degrade to old data instead of errors.
func (s *IdentityStore) User(ctx context.Context, platform domain.Platform, platformUserID string, fetch UserFetcher) (*domain.User, error) {
	var cached domain.User
	hit, fresh, err := s.lookup(ctx, "users", platform, platformUserID, &cached)
	if err != nil {
		return nil, err
	}
	if hit && fresh {
		return &cached, nil
	}

	user, err := fetch(ctx, platformUserID)
	if err != nil {
		if hit {
			s.logger.Warn("user fetch failed, serving stale cache",
				"platform", platform, "user", platformUserID, "err", err)
			return &cached, nil
		}
		return nil, err
	}

	if err := s.put(ctx, "users", platform, platformUserID, user); err != nil {
		s.logger.Warn("user cache write failed", "platform", platform, "user", platformUserID, "err", err)
	}
	return user, nil
}

// Conversation is the read-through lookup for conversation records.
func (s *IdentityStore) Conversation(ctx context.Context, platform domain.Platform, platformConversationID string, fetch ConversationFetcher) (*domain.Conversation, error) {
	var cached domain.Conversation
	hit, fresh, err := s.lookup(ctx, "conversations", platform, platformConversationID, &cached)
	if err != nil {
		return nil, err
	}
	if hit && fresh {
		return &cached, nil
	}

	conv, err := fetch(ctx, platformConversationID)
	if err != nil {
		if hit {
			s.logger.Warn("conversation fetch failed, serving stale cache",
				"platform", platform, "conversation", platformConversationID, "err", err)
			return &cached, nil
		}
		return nil, err
	}

	if err := s.put(ctx, "conversations", platform, platformConversationID, conv); err != nil {
		s.logger.Warn("conversation cache write failed", "platform", platform, "conversation", platformConversationID, "err", err)
	}
	return conv, nil
}

// lookup reads one cached row into out. It reports whether a row exists
// and whether it is still within the TTL window.
func (s *IdentityStore) lookup(ctx context.Context, table string, platform domain.Platform, id string, out any) (hit, fresh bool, err error) {
	var payload string
	var fetchedAt time.Time
	err = s.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM `+table+` WHERE platform = ? AND platform_id = ?`,
		string(platform), id,
	).Scan(&payload, &fetchedAt)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		// A corrupt row behaves like a miss and gets overwritten.
		s.logger.Warn("corrupt cache row", "table", table, "platform", platform, "id", id, "err", err)
		return false, false, nil
	}
	return true, time.Since(fetchedAt) < s.ttl, nil
}

func (s *IdentityStore) put(ctx context.Context, table string, platform domain.Platform, id string, record any) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO `+table+` (platform, platform_id, payload, fetched_at) VALUES (?, ?, ?, ?)`,
		string(platform), id, string(payload), time.Now(),
	)
	return err
}

// InvalidateUser drops the cached row so the next lookup refetches.
func (s *IdentityStore) InvalidateUser(ctx context.Context, platform domain.Platform, platformUserID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM users WHERE platform = ? AND platform_id = ?`, string(platform), platformUserID)
	return err
}

// InvalidateConversation drops the cached row so the next lookup refetches.
func (s *IdentityStore) InvalidateConversation(ctx context.Context, platform domain.Platform, platformConversationID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE platform = ? AND platform_id = ?`, string(platform), platformConversationID)
	return err
}

// Purge deletes every row older than the TTL. Returns rows removed.
func (s *IdentityStore) Purge(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.ttl)
	var total int64
	for _, table := range []string{"users", "conversations"} {
		res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE fetched_at < ?`, cutoff)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (s *IdentityStore) Close() error {
	return s.db.Close()
}

// CachedDirectory wraps a platform Directory with the read-through cache.
type CachedDirectory struct {
	inner    domain.Directory
	platform domain.Platform
	store    *IdentityStore
}

// NewCachedDirectory caches lookups of inner under the given platform key.
func NewCachedDirectory(inner domain.Directory, platform domain.Platform, store *IdentityStore) *CachedDirectory {
	return &CachedDirectory{inner: inner, platform: platform, store: store}
}

func (c *CachedDirectory) GetUser(ctx context.Context, platformUserID string) (*domain.User, error) {
	return c.store.User(ctx, c.platform, platformUserID, c.inner.GetUser)
}

func (c *CachedDirectory) GetConversation(ctx context.Context, platformConversationID string) (*domain.Conversation, error) {
	return c.store.Conversation(ctx, c.platform, platformConversationID, c.inner.GetConversation)
}
