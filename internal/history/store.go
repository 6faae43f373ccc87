// Package history persists chat turns in Postgres with a per-chat LRU
// cache in front. The workflow reads a bounded window for prompt
// context and scans recent response types for intent resolution.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Turn is one stored chat turn. Role is "user" or "model"; model turns
// carry the response type of the envelope they delivered.
type Turn struct {
	Role         string
	Content      string
	ResponseType string
	CreatedAt    time.Time
}

// Store reads and writes chat turns. A nil *Store is a no-op with an
// empty history, which keeps stateless callers simple.
type Store struct {
	db     *sql.DB
	cache  *lru.Cache[string, []Turn]
	logger *log.Logger
}

// Open connects to the chat database and warms an empty cache.
func Open(dsn string, cacheSize int, logger *log.Logger) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	return newStore(db, cacheSize, logger)
}

// NewFromDB wraps an existing handle, for tests.
func NewFromDB(db *sql.DB, cacheSize int, logger *log.Logger) (*Store, error) {
	return newStore(db, cacheSize, logger)
}

func newStore(db *sql.DB, cacheSize int, logger *log.Logger) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[string, []Turn](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("history: cache: %w", err)
	}
	return &Store{db: db, cache: cache, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Window returns the most recent n turns of a chat, oldest first.
func (s *Store) Window(ctx context.Context, chatID string, n int) ([]Turn, error) {
	if s == nil || n <= 0 {
		return nil, nil
	}
	turns, err := s.load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Append records a turn at the end of the chat.
func (s *Store) Append(ctx context.Context, chatID string, turn Turn) error {
	if s == nil {
		return nil
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	if s.db != nil {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO chat_turns (id, chat_id, role, content, response_type, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), chatID, turn.Role, turn.Content, turn.ResponseType, turn.CreatedAt)
		if err != nil {
			return fmt.Errorf("history: append: %w", err)
		}
	}
	// Only extend an already-loaded cache entry; a miss with a live
	// database would otherwise cache a partial chat.
	if cached, ok := s.cache.Get(chatID); ok {
		s.cache.Add(chatID, append(cached, turn))
	} else if s.db == nil {
		s.cache.Add(chatID, []Turn{turn})
	}
	return nil
}

// Clear deletes every turn of a chat.
func (s *Store) Clear(ctx context.Context, chatID string) error {
	if s == nil {
		return nil
	}
	s.cache.Remove(chatID)
	if s.db == nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_turns WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	return nil
}

// LastResponseType returns the response type of the most recent model
// turn, or "" for a fresh chat.
func (s *Store) LastResponseType(ctx context.Context, chatID string) (string, error) {
	if s == nil {
		return "", nil
	}
	turns, err := s.load(ctx, chatID)
	if err != nil {
		return "", err
	}
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == "model" && turns[i].ResponseType != "" {
			return turns[i].ResponseType, nil
		}
	}
	return "", nil
}

func (s *Store) load(ctx context.Context, chatID string) ([]Turn, error) {
	if cached, ok := s.cache.Get(chatID); ok {
		return cached, nil
	}
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, response_type, created_at
		 FROM chat_turns WHERE chat_id = $1 ORDER BY created_at ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("history: load: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var rt sql.NullString
		if err := rows.Scan(&t.Role, &t.Content, &rt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		t.ResponseType = rt.String
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: load: %w", err)
	}
	s.cache.Add(chatID, turns)
	return turns, nil
}
